package engine

import (
	"io/fs"
	"path"
	"strings"

	"go.uber.org/zap"
)

// SourceProvider supplies source text for normalized VFS paths.
type SourceProvider interface {
	ReadSource(path string) (string, error)
}

// FSProvider reads sources from an fs.FS whose root is the VFS root, so
// "/Scripts/a.ts" is read as "Scripts/a.ts".
type FSProvider struct {
	FS fs.FS
}

func (p FSProvider) ReadSource(name string) (string, error) {
	b, err := fs.ReadFile(p.FS, strings.TrimPrefix(name, "/"))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MapProvider serves sources from memory, keyed with or without the leading
// slash.
type MapProvider map[string]string

func (m MapProvider) ReadSource(name string) (string, error) {
	if src, ok := m[name]; ok {
		return src, nil
	}
	if src, ok := m[strings.TrimPrefix(name, "/")]; ok {
		return src, nil
	}
	return "", notFound(name, "no such source")
}

// RegisterTree pulls entry and every dependency it transitively reports from
// p. A failure to read entry is returned; an unreadable dependency is logged
// and skipped so the rest of the tree still registers. Paths under
// Config.IgnorePaths are never pulled.
func (s *Session) RegisterTree(entry string, p SourceProvider) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.norm.Normalize(entry, false)
	queue := []string{root}
	seen := make(map[string]bool)
	var registered []string

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		if s.ignored(next) {
			s.log.Debug("ignore path", zap.String("path", next))
			continue
		}

		found, content, err := s.pull(next, p)
		if err != nil {
			if next == root {
				return registered, err
			}
			s.log.Warn("dependency not found", zap.String("path", next), zap.Error(err))
			continue
		}
		missing, err := s.resolver.RegisterSource(found, content)
		if err != nil {
			return registered, err
		}
		registered = append(registered, found)
		queue = append(queue, missing...)
	}
	return registered, nil
}

// pull reads p, falling back to the other source extensions since the
// resolver only guesses the extension of a file it has not seen.
func (s *Session) pull(p string, provider SourceProvider) (string, string, error) {
	content, err := provider.ReadSource(p)
	if err == nil {
		return p, content, nil
	}
	stem := strings.TrimSuffix(p, path.Ext(p))
	for _, ext := range SourceExtensions {
		alt := stem + ext
		if alt == p {
			continue
		}
		if c, altErr := provider.ReadSource(alt); altErr == nil {
			return alt, c, nil
		}
	}
	return "", "", err
}

func (s *Session) ignored(p string) bool {
	for _, prefix := range s.cfg.IgnorePaths {
		prefix = s.norm.Normalize(prefix, false)
		if p == prefix || strings.HasPrefix(p, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}
