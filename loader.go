package engine

import (
	"path"

	"go.uber.org/zap"
)

type ModuleState int

const (
	ModulePending ModuleState = iota + 1
	ModuleReady
)

func (s ModuleState) String() string {
	switch s {
	case ModulePending:
		return "pending"
	case ModuleReady:
		return "ready"
	}
	return "absent"
}

type moduleEntry struct {
	state  ModuleState
	module Module
}

// Loader evaluates compiled modules on demand and caches them by normalized
// compiled path. A module is cached as pending before its body runs, so a
// require cycle gets the partially populated exports instead of recursing.
type Loader struct {
	fs     *VFS
	norm   Normalizer
	engine Engine
	log    *zap.Logger

	cache       map[string]*moduleEntry
	evaluations map[string]int
}

func NewLoader(fs *VFS, norm Normalizer, engine Engine, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		fs:          fs,
		norm:        norm,
		engine:      engine,
		log:         log.Named("loader"),
		cache:       make(map[string]*moduleEntry),
		evaluations: make(map[string]int),
	}
}

// Load returns the exports of the module named by spec, evaluating it and
// its dependencies at most once.
func (l *Loader) Load(spec string) (Value, error) {
	mod, err := l.require("", spec)
	if err != nil {
		return nil, err
	}
	return mod.Exports(), nil
}

func (l *Loader) require(from, spec string) (Module, error) {
	if from != "" && isRelative(spec) {
		spec = path.Join(path.Dir(from), spec)
	}
	p := l.norm.Normalize(spec, true)

	if entry, ok := l.cache[p]; ok {
		if entry.state == ModulePending {
			l.log.Debug("require cycle, returning partial exports", zap.String("path", p), zap.String("from", from))
		}
		return entry.module, nil
	}

	f, err := l.fs.File(p)
	if err != nil || !f.HasCompiled {
		l.log.Error("failed to resolve file", zap.String("path", p), zap.String("from", from))
		return nil, resolutionFailure(p)
	}

	l.log.Debug("evaluate module", zap.String("path", p))
	mod := l.engine.NewModule(p)
	entry := &moduleEntry{state: ModulePending, module: mod}
	l.cache[p] = entry
	l.evaluations[p]++

	if err := l.engine.Evaluate(mod, f.Compiled, l.require); err != nil {
		delete(l.cache, p)
		l.log.Warn("module evaluation failed", zap.String("path", p), zap.Error(err))
		return nil, &EngineError{Kind: KindEval, Path: p, Message: "module evaluation failed", Cause: err}
	}
	entry.state = ModuleReady
	return mod, nil
}

// State reports the cache state of the module named by spec, zero when it
// has never been required.
func (l *Loader) State(spec string) ModuleState {
	if entry, ok := l.cache[l.norm.Normalize(spec, true)]; ok {
		return entry.state
	}
	return 0
}

// Evaluations counts how many times the body at compiled path p has run.
func (l *Loader) Evaluations(p string) int {
	return l.evaluations[l.norm.Normalize(p, true)]
}

// Reset drops every cached module.
func (l *Loader) Reset() {
	l.cache = make(map[string]*moduleEntry)
}
