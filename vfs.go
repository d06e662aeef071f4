package engine

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Node is either a *FileNode or a *DirNode.
type Node interface {
	Name() string
	IsDir() bool
}

type FileNode struct {
	name string
	dir  *DirNode

	Path        string
	Raw         string
	Compiled    string
	HasCompiled bool
	// Version is bumped on every raw content write; the compiler compares
	// it against the version it last emitted.
	Version int
}

func (f *FileNode) Name() string { return f.name }
func (f *FileNode) IsDir() bool { return false }
func (f *FileNode) Dir() *DirNode { return f.dir }

type DirNode struct {
	name     string
	parent   *DirNode
	children map[string]Node
}

func newDir(name string, parent *DirNode) *DirNode {
	return &DirNode{name: name, parent: parent, children: make(map[string]Node)}
}

func (d *DirNode) Name() string { return d.name }
func (d *DirNode) IsDir() bool { return true }

// Parent is a navigation link only; the root has none.
func (d *DirNode) Parent() *DirNode { return d.parent }

// Children returns the sorted names of the directory's entries.
func (d *DirNode) Children() []string {
	names := make([]string, 0, len(d.children))
	for name := range d.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VFS is an in-memory directory tree of script files. It does no locking of
// its own; Session serializes access.
type VFS struct {
	root *DirNode
	log  *zap.Logger
}

func NewVFS(log *zap.Logger) *VFS {
	if log == nil {
		log = zap.NewNop()
	}
	return &VFS{root: newDir("", nil), log: log.Named("vfs")}
}

func (v *VFS) Root() *DirNode { return v.root }

// CreateFile installs or overwrites the file at path, creating intermediate
// directories. A new file starts at version 0, an overwrite bumps it.
func (v *VFS) CreateFile(path, content string) (*FileNode, error) {
	f, created, err := v.touch(path)
	if err != nil {
		return nil, err
	}
	if !created && f.Raw != content {
		f.Version++
	}
	f.Raw = content
	return f, nil
}

// SetCompiled stores compiled text for path, creating the file when the
// artifact path has no source node of its own.
func (v *VFS) SetCompiled(path, compiled string) (*FileNode, error) {
	f, _, err := v.touch(path)
	if err != nil {
		return nil, err
	}
	f.Compiled = compiled
	f.HasCompiled = true
	return f, nil
}

// touch walks to path creating directories as needed and returns the file
// node, creating it at version 0 when absent. created reports the latter.
func (v *VFS) touch(path string) (*FileNode, bool, error) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		panic("create file with empty path")
	}
	dir := v.root
	for _, name := range segments[:len(segments)-1] {
		child, ok := dir.children[name]
		if !ok {
			next := newDir(name, dir)
			dir.children[name] = next
			dir = next
			continue
		}
		next, ok := child.(*DirNode)
		if !ok {
			return nil, false, notFound(path, "%q is a file, not a directory", name)
		}
		dir = next
	}

	name := segments[len(segments)-1]
	switch existing := dir.children[name].(type) {
	case *FileNode:
		return existing, false, nil
	case *DirNode:
		return nil, false, notFound(path, "%q is a directory", name)
	}
	f := &FileNode{name: name, dir: dir, Path: "/" + strings.Join(segments, "/")}
	dir.children[name] = f
	v.log.Debug("create file", zap.String("path", f.Path))
	return f, true, nil
}

// GetFileByPath walks segments from the root. An empty segment slice is a
// programming error and panics.
func (v *VFS) GetFileByPath(segments []string) (Node, error) {
	if len(segments) == 0 {
		panic("trying to get a file with a path array of length 0")
	}
	dir := v.root
	for i, name := range segments[:len(segments)-1] {
		child, ok := dir.children[name]
		if !ok {
			return nil, notFound("/"+strings.Join(segments, "/"), "directory %q does not exist", strings.Join(segments[:i+1], "/"))
		}
		next, ok := child.(*DirNode)
		if !ok {
			return nil, notFound("/"+strings.Join(segments, "/"), "%q is a file, not a directory", name)
		}
		dir = next
	}
	node, ok := dir.children[segments[len(segments)-1]]
	if !ok {
		return nil, notFound("/"+strings.Join(segments, "/"), "no such file")
	}
	return node, nil
}

func (v *VFS) Exists(segments []string) bool {
	if len(segments) == 0 {
		panic("trying to check a file with a path array of length 0")
	}
	dir := v.root
	for _, name := range segments[:len(segments)-1] {
		next, ok := dir.children[name].(*DirNode)
		if !ok {
			return false
		}
		dir = next
	}
	_, ok := dir.children[segments[len(segments)-1]]
	return ok
}

// File returns the file node at path or a NotFound error.
func (v *VFS) File(path string) (*FileNode, error) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return nil, notFound(path, "empty path")
	}
	node, err := v.GetFileByPath(segments)
	if err != nil {
		return nil, err
	}
	f, ok := node.(*FileNode)
	if !ok {
		return nil, notFound(path, "is a directory")
	}
	return f, nil
}

// FileExists reports whether path names a file (not a directory).
func (v *VFS) FileExists(path string) bool {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return false
	}
	node, err := v.GetFileByPath(segments)
	if err != nil {
		return false
	}
	return !node.IsDir()
}

// ReadDir lists the entries of the directory at path; "/" lists the root.
func (v *VFS) ReadDir(path string) ([]string, error) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return v.root.Children(), nil
	}
	node, err := v.GetFileByPath(segments)
	if err != nil {
		return nil, err
	}
	dir, ok := node.(*DirNode)
	if !ok {
		return nil, notFound(path, "not a directory")
	}
	return dir.Children(), nil
}

// Files returns the sorted paths of every file in the tree.
func (v *VFS) Files() []string {
	var out []string
	var walk func(d *DirNode)
	walk = func(d *DirNode) {
		for _, name := range d.Children() {
			switch n := d.children[name].(type) {
			case *FileNode:
				out = append(out, n.Path)
			case *DirNode:
				walk(n)
			}
		}
	}
	walk(v.root)
	sort.Strings(out)
	return out
}
