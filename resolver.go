package engine

import (
	"path"
	"strings"

	"go.uber.org/zap"
)

// DependencyEdge is one resolved import of a registered file. Edges are
// recomputed on every registration and never stored.
type DependencyEdge struct {
	From      string
	Specifier string
	Resolved  string
	Extension string
	Kind      ImportKind
}

// Resolver registers sources into the VFS and reports the dependencies the
// host still has to supply. It never fetches content itself.
type Resolver struct {
	fs       *VFS
	norm     Normalizer
	compiler *Compiler
	log      *zap.Logger
}

func NewResolver(fs *VFS, norm Normalizer, compiler *Compiler, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{fs: fs, norm: norm, compiler: compiler, log: log.Named("resolver")}
}

// RegisterSource writes a new source file and returns the normalized paths
// of its dependencies that are not in the VFS yet. Registering a known path
// is a no-op. Once the compiler's first pass has run the file is emitted
// before returning.
func (r *Resolver) RegisterSource(p, content string) ([]string, error) {
	p = r.norm.Normalize(p, false)
	if r.compiler.IsSource(p) {
		r.log.Debug("source already registered", zap.String("path", p))
		return nil, nil
	}
	r.log.Info("register file", zap.String("path", p))
	if _, err := r.fs.CreateFile(p, content); err != nil {
		return nil, err
	}
	r.compiler.AddSource(p)

	missing := r.unresolved(p, content)

	if r.compiler.HasRun() {
		r.compiler.EmitOne(p)
	}
	return missing, nil
}

// UpdateSource replaces the content of an already registered source and
// re-emits it when the first pass has run. Unknown paths are registered.
func (r *Resolver) UpdateSource(p, content string) ([]string, error) {
	p = r.norm.Normalize(p, false)
	if !r.compiler.IsSource(p) {
		return r.RegisterSource(p, content)
	}
	f, err := r.fs.CreateFile(p, content)
	if err != nil {
		return nil, err
	}
	r.log.Info("update file", zap.String("path", p), zap.Int("version", f.Version))
	missing := r.unresolved(p, content)
	if r.compiler.HasRun() {
		r.compiler.EmitOne(p)
	}
	return missing, nil
}

func (r *Resolver) unresolved(p, content string) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, edge := range r.Dependencies(p, content) {
		if seen[edge.Resolved] {
			continue
		}
		seen[edge.Resolved] = true
		if r.fs.FileExists(edge.Resolved) {
			continue
		}
		r.log.Info("depends on", zap.String("path", p), zap.String("dependency", edge.Resolved))
		missing = append(missing, edge.Resolved)
	}
	return missing
}

// Dependencies scans content and resolves every import it references.
func (r *Resolver) Dependencies(from, content string) []DependencyEdge {
	refs := ScanFile(from, content)
	edges := make([]DependencyEdge, 0, len(refs))
	for _, ref := range refs {
		edge := r.Resolve(from, ref.Specifier)
		edge.Kind = ref.Kind
		edges = append(edges, edge)
	}
	return edges
}

// Resolve maps a specifier imported by from to a normalized source path.
// It probes the VFS for the specifier as written, with each source
// extension, and as a directory index; when nothing matches it guesses the
// importing file's own extension.
func (r *Resolver) Resolve(from, spec string) DependencyEdge {
	edge := DependencyEdge{From: from, Specifier: spec}
	base := spec
	if isRelative(spec) {
		base = path.Join(path.Dir(from), spec)
	}

	for _, candidate := range r.candidates(base) {
		if r.fs.FileExists(candidate) {
			edge.Resolved = candidate
			edge.Extension = path.Ext(candidate)
			return edge
		}
	}

	guess := ""
	if !r.norm.HasKnownExtension(base) {
		guess = path.Ext(from)
		if guess == "" || !r.norm.HasKnownExtension(from) {
			guess = SourceExtensions[0]
		}
	}
	edge.Resolved = r.norm.Normalize(base+guess, false)
	edge.Extension = path.Ext(edge.Resolved)
	return edge
}

func (r *Resolver) candidates(base string) []string {
	var out []string
	if r.norm.HasKnownExtension(base) {
		out = append(out, r.norm.Normalize(base, false))
		// "./b.js" written against a b.ts source
		if strings.HasSuffix(base, r.norm.CompiledExt) {
			stem := strings.TrimSuffix(base, r.norm.CompiledExt)
			for _, ext := range SourceExtensions {
				out = append(out, r.norm.Normalize(stem+ext, false))
			}
		}
	}
	for _, ext := range SourceExtensions {
		out = append(out, r.norm.Normalize(base+ext, false))
	}
	for _, ext := range SourceExtensions {
		out = append(out, r.norm.Normalize(base+"/index"+ext, false))
	}
	return out
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}
