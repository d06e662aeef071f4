package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// CompilerState has exactly one transition, NotYetRun -> Run, taken at the
// end of the first full pass.
type CompilerState int

const (
	CompilerNotYetRun CompilerState = iota
	CompilerRun
)

func (s CompilerState) String() string {
	if s == CompilerRun {
		return "run"
	}
	return "not-yet-run"
}

const (
	moduleHeader = "(function (module, exports, require, host) {\nvar loggerScripts = host.loggerScripts;\n(function () {\n"
	moduleFooter = "\n}).call(exports);\nreturn module.exports;\n})"
)

// WrapModule wraps compiled text in the module body template: a function
// scope receiving a fresh module record, evaluating the body and yielding
// module.exports.
func WrapModule(body string) string {
	return moduleHeader + body + moduleFooter
}

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a compilation message. Errors are syntactic and skip the
// emission; warnings are semantic and do not.
type Diagnostic struct {
	Path     string
	Line     int
	Column   int
	Message  string
	Severity Severity
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s %s (%d,%d): %s", d.Severity, d.Path, d.Line, d.Column, d.Message)
	}
	return fmt.Sprintf("%s %s: %s", d.Severity, d.Path, d.Message)
}

// Artifact is one emitted output file.
type Artifact struct {
	Path string
	Text string
}

type EmitOutput struct {
	Artifacts   []Artifact
	Skipped     bool
	Diagnostics []Diagnostic
}

// CompilerHost is the content access the compilation service is bound to.
type CompilerHost interface {
	ReadSource(path string) (content string, version int, err error)
	WriteArtifact(path, text string) error
}

type vfsHost struct {
	fs *VFS
}

func (h vfsHost) ReadSource(p string) (string, int, error) {
	f, err := h.fs.File(p)
	if err != nil {
		return "", 0, err
	}
	return f.Raw, f.Version, nil
}

func (h vfsHost) WriteArtifact(p, text string) error {
	_, err := h.fs.SetCompiled(p, text)
	return err
}

// EmitCache memoizes transform output by content hash. It is safe to share
// between sessions.
type EmitCache struct {
	entries *lru.Cache[string, string]
}

func NewEmitCache(size int) (*EmitCache, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &EmitCache{entries: c}, nil
}

func (c *EmitCache) get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.entries.Get(key)
}

func (c *EmitCache) add(key, code string) {
	if c == nil {
		return
	}
	c.entries.Add(key, code)
}

func (c *EmitCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es6":    api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

func ParseTarget(name string) (api.Target, error) {
	t, ok := targets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown compile target %q", name)
	}
	return t, nil
}

func loaderFor(p string) api.Loader {
	switch path.Ext(p) {
	case ".ts", ".mts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	}
	return api.LoaderJS
}

// service emits CommonJS modules through esbuild's transform API.
type service struct {
	host   CompilerHost
	norm   Normalizer
	target api.Target
	cache  *EmitCache
	log    *zap.Logger
}

func (s *service) emit(p string) EmitOutput {
	content, _, err := s.host.ReadSource(p)
	if err != nil {
		return EmitOutput{Skipped: true, Diagnostics: []Diagnostic{{Path: p, Message: err.Error()}}}
	}

	loader := loaderFor(p)
	sum := sha256.Sum256([]byte(content))
	key := fmt.Sprintf("%s|%d|%d", hex.EncodeToString(sum[:]), loader, s.target)
	out := EmitOutput{}

	code, ok := s.cache.get(key)
	if ok {
		s.log.Debug("emit cache hit", zap.String("path", p))
	} else {
		result := api.Transform(content, api.TransformOptions{
			Loader:     loader,
			Format:     api.FormatCommonJS,
			Target:     s.target,
			Sourcefile: p,
			LogLevel:   api.LogLevelSilent,
		})
		out.Diagnostics = append(out.Diagnostics, toDiagnostics(p, result.Errors, SeverityError)...)
		out.Diagnostics = append(out.Diagnostics, toDiagnostics(p, result.Warnings, SeverityWarning)...)
		if len(result.Errors) > 0 {
			out.Skipped = true
			return out
		}
		code = string(result.Code)
		if len(result.Warnings) == 0 {
			s.cache.add(key, code)
		}
	}

	out.Artifacts = append(out.Artifacts, Artifact{Path: s.norm.Normalize(p, true), Text: code})
	return out
}

func toDiagnostics(p string, msgs []api.Message, sev Severity) []Diagnostic {
	out := make([]Diagnostic, 0, len(msgs))
	for _, m := range msgs {
		d := Diagnostic{Path: p, Message: m.Text, Severity: sev}
		if m.Location != nil {
			d.Line = m.Location.Line
			d.Column = m.Location.Column + 1
		}
		out = append(out, d)
	}
	return out
}

type CompilerOptions struct {
	Target api.Target
	Cache  *EmitCache
}

// Compiler defers emission until the first full pass, then emits every new
// registration immediately.
type Compiler struct {
	fs   *VFS
	norm Normalizer
	opts CompilerOptions
	log  *zap.Logger

	state   CompilerState
	sources []string
	known   map[string]bool
	service *service

	// source version at the last successful emission
	emitted     map[string]int
	emitCount   map[string]int
	diagnostics map[string][]Diagnostic
}

func NewCompiler(fs *VFS, norm Normalizer, opts CompilerOptions, log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{
		fs:          fs,
		norm:        norm,
		opts:        opts,
		log:         log.Named("compiler"),
		known:       make(map[string]bool),
		emitted:     make(map[string]int),
		emitCount:   make(map[string]int),
		diagnostics: make(map[string][]Diagnostic),
	}
}

func (c *Compiler) State() CompilerState { return c.state }
func (c *Compiler) HasRun() bool         { return c.state == CompilerRun }

// AddSource appends p to the known sources; it reports false when p was
// already known.
func (c *Compiler) AddSource(p string) bool {
	if c.known[p] {
		return false
	}
	c.known[p] = true
	c.sources = append(c.sources, p)
	return true
}

func (c *Compiler) IsSource(p string) bool { return c.known[p] }

// Sources returns the known source paths in registration order.
func (c *Compiler) Sources() []string {
	return append([]string(nil), c.sources...)
}

func (c *Compiler) ensureService() *service {
	if c.service == nil {
		c.log.Debug("create compilation service", zap.Int("sources", len(c.sources)))
		c.service = &service{
			host:   vfsHost{fs: c.fs},
			norm:   c.norm,
			target: c.opts.Target,
			cache:  c.opts.Cache,
			log:    c.log,
		}
	}
	return c.service
}

// RunFullPass emits every known source in registration order and flips the
// compiler into its incremental state. Only the first call does anything.
// The returned diagnostics cover every file that failed to emit.
func (c *Compiler) RunFullPass() []Diagnostic {
	if c.state == CompilerRun {
		c.log.Debug("full pass already ran")
		return nil
	}
	c.log.Info("compile all registered files", zap.Int("sources", len(c.sources)))
	c.ensureService()

	var failed []Diagnostic
	for _, p := range c.sources {
		if !c.EmitOne(p) {
			failed = append(failed, c.diagnostics[p]...)
		}
	}
	c.state = CompilerRun
	return failed
}

// EmitOne compiles p and writes every wrapped artifact back into the VFS.
// Failures are recorded as diagnostics and reported through the return
// value; they never abort the caller.
func (c *Compiler) EmitOne(p string) bool {
	svc := c.ensureService()

	f, err := c.fs.File(p)
	if err == nil {
		if v, ok := c.emitted[p]; ok && v == f.Version {
			c.log.Debug("source unchanged, skip emit", zap.String("path", p))
			return true
		}
	}

	c.log.Debug("compiler evaluating source path", zap.String("path", p))
	out := svc.emit(p)
	c.diagnostics[p] = out.Diagnostics
	if out.Skipped {
		c.log.Warn("emit failed", zap.String("path", p))
		for _, d := range out.Diagnostics {
			c.log.Warn(d.String())
		}
		return false
	}
	for _, d := range out.Diagnostics {
		c.log.Debug(d.String())
	}

	for _, a := range out.Artifacts {
		c.log.Debug("emit file", zap.String("path", a.Path))
		if err := svc.host.WriteArtifact(a.Path, WrapModule(a.Text)); err != nil {
			c.diagnostics[p] = append(c.diagnostics[p], Diagnostic{Path: a.Path, Message: err.Error()})
			c.log.Warn("write artifact failed", zap.String("path", a.Path), zap.Error(err))
			return false
		}
	}
	if f != nil {
		c.emitted[p] = f.Version
	}
	c.emitCount[p]++
	return true
}

func (c *Compiler) Diagnostics(p string) []Diagnostic {
	return append([]Diagnostic(nil), c.diagnostics[p]...)
}

// EmitCount reports how many times p has actually been compiled.
func (c *Compiler) EmitCount(p string) int { return c.emitCount[p] }

// Preload stores already compiled text for p without running the compiler.
func (c *Compiler) Preload(p, compiled string) error {
	out := c.norm.Normalize(p, true)
	c.log.Debug("preload", zap.String("path", out))
	_, err := c.fs.SetCompiled(out, WrapModule(compiled))
	return err
}
