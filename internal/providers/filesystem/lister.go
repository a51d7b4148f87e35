package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/spf13/afero"
)

// FsLister lists one directory per call through afero.
type FsLister struct {
	fs afero.Fs
}

// NewFsLister returns a lister reading from fsys.
func NewFsLister(fsys afero.Fs) *FsLister {
	return &FsLister{fs: fsys}
}

// ReadDir lists dir.
func (l *FsLister) ReadDir(ctx context.Context, dir string) ([]os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return afero.ReadDir(l.fs, dir)
}

// SnapshotLister serves listings from a single concurrent walk of a real directory
// tree taken at construction. Later changes on disk are not observed.
type SnapshotLister struct {
	root    string
	entries map[string][]os.FileInfo
}

// NewSnapshotLister walks root on the OS filesystem with fastwalk. Symbolic links are
// recorded but not followed. Any walk error aborts the snapshot.
func NewSnapshotLister(ctx context.Context, root string) (*SnapshotLister, error) {
	root = filepath.Clean(root)

	var mu sync.Mutex
	entries := map[string][]os.FileInfo{root: {}}

	conf := fastwalk.Config{
		Follow: false,
	}

	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		parent := filepath.Dir(path)
		mu.Lock()
		entries[parent] = append(entries[parent], info)
		if d.IsDir() {
			if _, ok := entries[path]; !ok {
				entries[path] = []os.FileInfo{}
			}
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", root, err)
	}

	for _, list := range entries {
		slices.SortFunc(list, func(a, b os.FileInfo) int {
			return strings.Compare(a.Name(), b.Name())
		})
	}
	return &SnapshotLister{root: root, entries: entries}, nil
}

// Root returns the walked directory.
func (l *SnapshotLister) Root() string {
	return l.root
}

// Len returns the number of directories in the snapshot.
func (l *SnapshotLister) Len() int {
	return len(l.entries)
}

// ReadDir returns the snapshot listing of dir.
func (l *SnapshotLister) ReadDir(ctx context.Context, dir string) ([]os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	list, ok := l.entries[filepath.Clean(dir)]
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: fs.ErrNotExist}
	}
	return slices.Clone(list), nil
}
