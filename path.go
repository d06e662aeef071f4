package engine

import (
	"path"
	"strings"
)

const (
	DefaultScriptDir   = "Scripts"
	DefaultCompiledExt = ".js"
)

// SourceExtensions are the suffixes recognized as script sources, in the
// order module resolution probes them.
var SourceExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mts", ".mjs"}

// Normalizer maps raw module specifiers to canonical absolute VFS paths.
type Normalizer struct {
	ScriptDir   string
	CompiledExt string
}

func NewNormalizer(scriptDir, compiledExt string) Normalizer {
	if scriptDir == "" {
		scriptDir = DefaultScriptDir
	}
	if compiledExt == "" {
		compiledExt = DefaultCompiledExt
	}
	return Normalizer{ScriptDir: strings.Trim(scriptDir, "/"), CompiledExt: compiledExt}
}

// NormalizePath normalizes with the default script dir and compiled extension.
func NormalizePath(raw string, wantsCompiled bool) string {
	return NewNormalizer("", "").Normalize(raw, wantsCompiled)
}

// Normalize never fails; malformed input yields a path that simply misses
// later lookups.
func (n Normalizer) Normalize(raw string, wantsCompiled bool) string {
	p := strings.TrimPrefix(raw, "/")

	if wantsCompiled {
		if ext := n.sourceExt(p); ext != "" && ext != n.CompiledExt {
			p = strings.TrimSuffix(p, ext) + n.CompiledExt
		}
	}

	if p == n.ScriptDir || strings.HasPrefix(p, n.ScriptDir+"/") {
		p = "/" + p
	}

	if wantsCompiled && n.sourceExt(p) == "" && !strings.HasSuffix(p, n.CompiledExt) {
		p += n.CompiledExt
	}

	// specifiers outside the script dir are rooted too; every VFS path is absolute
	return path.Clean("/" + strings.TrimPrefix(p, "/"))
}

// HasKnownExtension reports whether p ends in a source or compiled extension.
func (n Normalizer) HasKnownExtension(p string) bool {
	return n.sourceExt(p) != "" || strings.HasSuffix(p, n.CompiledExt)
}

func (n Normalizer) sourceExt(p string) string {
	for _, ext := range SourceExtensions {
		if strings.HasSuffix(p, ext) {
			return ext
		}
	}
	return ""
}

// SplitPath returns the directory segments of p ending with the file name.
func SplitPath(p string) []string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
