package entity

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
	"github.com/GriffinCanCode/entityfs/internal/shared/paths"
)

// SkipFolder may be returned by a WalkFunc to skip the contents of a folder.
var SkipFolder = errors.New("skip this folder")

// WalkFunc is called for every entity below the walk root with its path relative to the
// root, using "/" separators.
type WalkFunc func(rel string, e Entity) error

// FolderInfo describes a folder at construction time.
type FolderInfo struct {
	Name    string
	Path    string
	ModTime time.Time
}

// Folder is an immutable inner node.
type Folder struct {
	name     string
	path     string
	modTime  time.Time
	children []Entity
	byName   map[string]Entity

	// Traversal results are memoised; the tree never changes after construction.
	subOnce    sync.Once
	subfolders []*Folder
	filesOnce  sync.Once
	files      []*File
}

// NewFolder creates a folder owning children in the given order. Two children with the
// same name are rejected with *errs.NameCollisionError.
func NewFolder(info FolderInfo, children ...Entity) (*Folder, error) {
	if info.Name == "" {
		return nil, errs.InvalidPath(info.Path, "folder name is empty")
	}

	f := &Folder{
		name:     info.Name,
		path:     info.Path,
		modTime:  info.ModTime,
		children: make([]Entity, 0, len(children)),
		byName:   make(map[string]Entity, len(children)),
	}
	for _, child := range children {
		if child == nil {
			return nil, errors.New("folder child is nil")
		}
		if _, dup := f.byName[child.Name()]; dup {
			return nil, &errs.NameCollisionError{Parent: info.Path, Name: child.Name()}
		}
		f.byName[child.Name()] = child
		f.children = append(f.children, child)
	}
	return f, nil
}

func (f *Folder) Name() string            { return f.name }
func (f *Folder) Path() string            { return f.path }
func (f *Folder) LastModified() time.Time { return f.modTime }
func (f *Folder) Kind() Kind              { return KindFolder }
func (f *Folder) sealed()                 {}

// Equal reports whether both folders have the same name and path. Contents are ignored.
func (f *Folder) Equal(other *Folder) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.name == other.name && f.path == other.path
}

// ListContent returns the immediate children in construction order.
func (f *Folder) ListContent() []Entity {
	return slices.Clone(f.children)
}

// Child returns the immediate child called name.
func (f *Folder) Child(name string) (Entity, bool) {
	e, ok := f.byName[name]
	return e, ok
}

// Lookup resolves a "/"-separated path relative to f. The empty path resolves to f.
func (f *Folder) Lookup(rel string) (Entity, bool) {
	var current Entity = f
	for _, seg := range paths.Segments(rel) {
		folder, ok := current.(*Folder)
		if !ok {
			return nil, false
		}
		if current, ok = folder.Child(seg); !ok {
			return nil, false
		}
	}
	return current, true
}

// ListSubfolders returns every folder below f. For each immediate subfolder its own
// descendants come first; f's direct subfolders are appended after all of them.
func (f *Folder) ListSubfolders() []*Folder {
	f.subOnce.Do(func() {
		f.subfolders = make([]*Folder, 0)
		f.collectFolders(&f.subfolders)
	})
	return slices.Clone(f.subfolders)
}

func (f *Folder) collectFolders(out *[]*Folder) {
	for _, child := range f.children {
		if sub, ok := child.(*Folder); ok {
			sub.collectFolders(out)
		}
	}
	for _, child := range f.children {
		if sub, ok := child.(*Folder); ok {
			*out = append(*out, sub)
		}
	}
}

// ListFiles returns every file below f, in the same order as ListSubfolders: descendants
// of each subfolder first, then f's own files.
func (f *Folder) ListFiles() []*File {
	f.filesOnce.Do(func() {
		f.files = make([]*File, 0)
		f.collectFiles(&f.files)
	})
	return slices.Clone(f.files)
}

func (f *Folder) collectFiles(out *[]*File) {
	for _, child := range f.children {
		if sub, ok := child.(*Folder); ok {
			sub.collectFiles(out)
		}
	}
	for _, child := range f.children {
		if file, ok := child.(*File); ok {
			*out = append(*out, file)
		}
	}
}

// Walk visits every entity below f in pre-order, children in construction order.
func (f *Folder) Walk(fn WalkFunc) error {
	return f.walk("", fn)
}

func (f *Folder) walk(prefix string, fn WalkFunc) error {
	for _, child := range f.children {
		rel := paths.Join(prefix, child.Name())
		err := fn(rel, child)
		switch {
		case errors.Is(err, SkipFolder):
			continue
		case err != nil:
			return err
		}
		if sub, ok := child.(*Folder); ok {
			if err := sub.walk(rel, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
