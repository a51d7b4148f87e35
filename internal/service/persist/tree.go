package persist

import (
	"context"
	"fmt"
	"os"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
	"github.com/GriffinCanCode/entityfs/internal/shared/paths"
)

// dirPerm for folders created while persisting a tree.
const dirPerm = 0o755

// TreeResult describes a persisted folder tree.
type TreeResult struct {
	// Root is the directory the tree was written into.
	Root  string
	Files []Result
}

// OK reports whether every file was persisted.
func (r TreeResult) OK() bool {
	for _, f := range r.Files {
		if !f.OK {
			return false
		}
	}
	return true
}

// Kept counts the files left at their destination.
func (r TreeResult) Kept() int {
	n := 0
	for _, f := range r.Files {
		if f.OK {
			n++
		}
	}
	return n
}

// Written sums the bytes of all files.
func (r TreeResult) Written() int64 {
	var n int64
	for _, f := range r.Files {
		n += f.Written
	}
	return n
}

// PersistTree writes root as a new directory inside destDir, numbered like a file when
// the name is taken, and persists every file below it against the shared signal. It
// stops at the first error; files persisted so far are kept. When the signal rejects
// every file, the new directory is removed as well. Every entity name must be a
// single segment, so nothing is written outside the new directory.
func (p *Persister) PersistTree(ctx context.Context, root *entity.Folder, destDir string, sig *Signal) (TreeResult, error) {
	if err := paths.CheckName(root.Name()); err != nil {
		return TreeResult{}, err
	}
	name, err := paths.UniqueFilename(p.Fs, destDir, root.Name(), "")
	if err != nil {
		return TreeResult{}, err
	}
	res := TreeResult{Root: paths.Join(destDir, name)}
	if err := p.Fs.MkdirAll(res.Root, dirPerm); err != nil {
		return res, fmt.Errorf("create %s: %w", res.Root, err)
	}

	err = root.Walk(func(rel string, e entity.Entity) error {
		if err := paths.CheckName(e.Name()); err != nil {
			return err
		}
		target := paths.Join(res.Root, rel)
		switch e := e.(type) {
		case *entity.Folder:
			if err := p.Fs.MkdirAll(target, dirPerm); err != nil && !os.IsExist(err) {
				return fmt.Errorf("create %s: %w", target, err)
			}
		case *entity.File:
			r, err := p.Persist(ctx, e, target, sig)
			if err != nil {
				return err
			}
			res.Files = append(res.Files, r)
		}
		return nil
	})
	if err == nil && len(res.Files) > 0 && res.Kept() == 0 {
		// Every file was discarded; drop the folder skeleton with them.
		if err := p.Fs.RemoveAll(res.Root); err != nil {
			return res, fmt.Errorf("remove %s: %w", res.Root, err)
		}
	}
	return res, err
}
