package engine

import (
	"sync"

	"go.uber.org/zap"
)

// Session owns one script pipeline: the VFS, resolver, compiler, loader and
// evaluator. Public methods are serialized; require calls made while a body
// evaluates run on the already locked path. A Value returned by Load or
// Invoke is not covered by that lock: when the session is shared between
// goroutines, run script only through Invoke and FireSignal.
type Session struct {
	mu  sync.Mutex
	cfg Config
	log *zap.Logger

	norm     Normalizer
	fs       *VFS
	compiler *Compiler
	resolver *Resolver
	loader   *Loader
	engine   Engine
	cache    *EmitCache

	scenes      map[int]*SceneInstance
	nextScene   int
	globalHooks []Hook
	globalState map[string]interface{}
}

type Option func(*Session)

func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithEmitCache shares a compile cache between sessions.
func WithEmitCache(c *EmitCache) Option {
	return func(s *Session) { s.cache = c }
}

// WithEngine evaluates on e instead of a backend built from Config.Engine.
func WithEngine(e Engine) Option {
	return func(s *Session) { s.engine = e }
}

func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:         cfg,
		scenes:      make(map[int]*SceneInstance),
		globalState: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		log, err := NewLogger(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		s.log = log
	}
	target, err := ParseTarget(cfg.Target)
	if err != nil {
		return nil, err
	}
	if s.cache == nil && cfg.CompileCacheSize > 0 {
		if s.cache, err = NewEmitCache(cfg.CompileCacheSize); err != nil {
			return nil, err
		}
	}
	if s.engine == nil {
		if s.engine, err = NewEngine(cfg.Engine); err != nil {
			return nil, err
		}
	}
	installBridge(s.engine, s.log)

	s.norm = NewNormalizer(cfg.ScriptDir, cfg.CompiledExt)
	s.fs = NewVFS(s.log)
	s.compiler = NewCompiler(s.fs, s.norm, CompilerOptions{Target: target, Cache: s.cache}, s.log)
	s.resolver = NewResolver(s.fs, s.norm, s.compiler, s.log)
	s.loader = NewLoader(s.fs, s.norm, s.engine, s.log)

	s.log.Debug("session created", zap.String("engine", s.engine.Name()), zap.String("target", cfg.Target))
	return s, nil
}

// RegisterSource adds a source file and returns the dependencies the host
// still has to register.
func (s *Session) RegisterSource(path, content string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.RegisterSource(path, content)
}

func (s *Session) UpdateSource(path, content string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.UpdateSource(path, content)
}

// Preload installs already compiled text, bypassing the compiler.
func (s *Session) Preload(path, compiled string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compiler.Preload(path, compiled)
}

// Compile runs the first full compilation pass. Later calls do nothing.
func (s *Session) Compile() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compiler.RunFullPass()
}

// Load evaluates the module named by spec, compiling first if no pass has
// run yet, and returns its exports. Calling into the returned Value runs
// script outside the session lock.
func (s *Session) Load(spec string) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(spec)
}

func (s *Session) load(spec string) (Value, error) {
	if !s.compiler.HasRun() {
		s.compiler.RunFullPass()
	}
	return s.loader.Load(spec)
}

// Invoke loads spec and calls its exported function fn.
func (s *Session) Invoke(spec, fn string, args ...interface{}) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exports, err := s.load(spec)
	if err != nil {
		return nil, err
	}
	f := exports.Get(fn)
	if !f.IsFunction() {
		return nil, &EngineError{Kind: KindNotFound, Path: s.norm.Normalize(spec, true), Message: fn + " is not an exported function"}
	}
	out, err := f.Call(args...)
	if err != nil {
		return nil, &EngineError{Kind: KindEval, Path: s.norm.Normalize(spec, true), Message: "call " + fn, Cause: err}
	}
	return out, nil
}

// ReadFile returns a copy of the file node at path.
func (s *Session) ReadFile(path string) (FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.fs.File(s.norm.Normalize(path, false))
	if err != nil {
		return FileNode{}, err
	}
	return *f, nil
}

func (s *Session) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fs.Files()
}

func (s *Session) Diagnostics(path string) []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compiler.Diagnostics(s.norm.Normalize(path, false))
}

func (s *Session) EmitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compiler.EmitCount(s.norm.Normalize(path, false))
}

func (s *Session) Evaluations(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loader.Evaluations(path)
}

func (s *Session) ModuleState(spec string) ModuleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loader.State(spec)
}

func (s *Session) CompilerState() CompilerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compiler.State()
}

func (s *Session) Normalize(raw string, wantsCompiled bool) string {
	return s.norm.Normalize(raw, wantsCompiled)
}

func (s *Session) RegisterObject(objectName string, objectPtr interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.RegisterObject(objectName, objectPtr)
}

func (s *Session) RegisterFunction(goFuncName string, goFuncPtr interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.RegisterFunction(goFuncName, goFuncPtr)
}

func (s *Session) RegisterModule(moduleName string, moduleFuncPtr map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.RegisterModule(moduleName, moduleFuncPtr)
}

func (s *Session) Logger() *zap.Logger { return s.log }

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Close()
	_ = s.log.Sync()
}
