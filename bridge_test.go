package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestScriptLogger(t *testing.T) {
	for _, engineType := range engineTypes {
		t.Run(engineType, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			s := newTestSession(t, engineType, WithLogger(zap.New(core)))

			_, err := s.RegisterSource("/Scripts/log.js", `
loggerScripts.DEBUG("debug", 1);
loggerScripts.INFO("hello", "world");
loggerScripts.WARNING("careful");
loggerScripts.ERROR("bad", true);
`)
			require.NoError(t, err)
			_, err = s.Load("/Scripts/log.js")
			require.NoError(t, err)

			scripts := logs.Filter(func(e observer.LoggedEntry) bool { return e.LoggerName == "scripts" })
			require.Equal(t, 4, scripts.Len())
			entries := scripts.All()
			assert.Equal(t, "debug 1", entries[0].Message)
			assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
			assert.Equal(t, "hello world", entries[1].Message)
			assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
			assert.Equal(t, "bad true", entries[3].Message)
			assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
		})
	}
}

func TestScriptLoggerShadowing(t *testing.T) {
	s := newTestSession(t, TypeEngineGoja)
	_, err := s.RegisterSource("/Scripts/shadow.ts", `
const loggerScripts = { INFO: (m: string) => m }
export const out = loggerScripts.INFO("local")
`)
	require.NoError(t, err)
	exports, err := s.Load("/Scripts/shadow.ts")
	require.NoError(t, err)
	assert.Equal(t, "local", exports.Get("out").String())
}
