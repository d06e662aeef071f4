package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const ScriptLoggerModule = "loggerScripts"

// ScriptLogger is the logger scripts see as loggerScripts. Arguments are
// joined with spaces the way console.log prints them.
type ScriptLogger struct {
	log *zap.SugaredLogger
}

func NewScriptLogger(log *zap.Logger) *ScriptLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScriptLogger{log: log.Named("scripts").Sugar()}
}

func (l *ScriptLogger) DEBUG(args ...interface{})   { l.log.Debug(joinArgs(args)) }
func (l *ScriptLogger) INFO(args ...interface{})    { l.log.Info(joinArgs(args)) }
func (l *ScriptLogger) WARNING(args ...interface{}) { l.log.Warn(joinArgs(args)) }
func (l *ScriptLogger) ERROR(args ...interface{})   { l.log.Error(joinArgs(args)) }

// Functions is the capability table installed through RegisterModule.
func (l *ScriptLogger) Functions() map[string]interface{} {
	return map[string]interface{}{
		"DEBUG":   l.DEBUG,
		"INFO":    l.INFO,
		"WARNING": l.WARNING,
		"ERROR":   l.ERROR,
	}
}

func joinArgs(args []interface{}) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprint(arg)
	}
	return strings.Join(parts, " ")
}

// installBridge puts the host capabilities every module body receives on e.
func installBridge(e Engine, log *zap.Logger) {
	e.RegisterModule(ScriptLoggerModule, NewScriptLogger(log).Functions())
}
