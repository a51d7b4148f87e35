package virtual

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/logging"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
	"github.com/GriffinCanCode/entityfs/internal/shared/paths"
)

// Scheme prefixes synthetic root paths.
const Scheme = "virtual://"

// DefaultRootName names the root when nothing else does.
const DefaultRootName = "root"

// Entry is one picked file and its path relative to the logical root.
type Entry struct {
	RelativePath string
	File         *entity.File
}

// Options control root naming.
type Options struct {
	// RootIncluded means every relative path starts with the root folder's own name,
	// as browsers report for directory uploads.
	RootIncluded bool
	// RootName overrides the root folder name when it cannot be derived.
	RootName string
}

// Builder builds trees and reports them to its logger and metrics.
type Builder struct {
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Build builds a tree with a zero Builder.
func Build(entries []Entry, opts Options) (*entity.Folder, error) {
	return (&Builder{}).Build(entries, opts)
}

// item references one entry by index; segs is never modified after parsing.
type item struct {
	index int
	segs  []string
}

// Build groups entries into a folder tree.
func (b *Builder) Build(entries []Entry, opts Options) (*entity.Folder, error) {
	start := time.Now()
	root, folders, err := b.build(entries, opts)
	b.Metrics.RecordTree(monitoring.SourceVirtual, err, time.Since(start), len(entries), folders)
	if err != nil {
		return nil, err
	}

	logging.OrNop(b.Logger).Debug("virtual tree built",
		zap.String("root", root.Path()),
		zap.Int("files", len(entries)),
		zap.Int("folders", folders),
	)
	return root, nil
}

func (b *Builder) build(entries []Entry, opts Options) (*entity.Folder, int, error) {
	if len(entries) == 0 {
		return nil, 0, errors.New("no entries to build a tree from")
	}

	items := make([]item, len(entries))
	for i, e := range entries {
		segs, err := parse(e)
		if err != nil {
			return nil, 0, err
		}
		items[i] = item{index: i, segs: segs}
	}

	depth := 0
	rootName := opts.RootName
	if rootName != "" {
		if err := paths.CheckName(rootName); err != nil {
			return nil, 0, err
		}
	}
	if opts.RootIncluded {
		shared := items[0].segs[0]
		for _, it := range items {
			if len(it.segs) < 2 || it.segs[0] != shared {
				return nil, 0, errs.InvalidPath(entries[it.index].RelativePath,
					fmt.Sprintf("not inside root folder %q", shared))
			}
		}
		depth = 1
		rootName = shared
	}

	rootPath, rootName := rootLocation(entries[0].File.Path(), items[0].segs[depth:], rootName)

	t := &tree{entries: entries}
	root, err := t.folder(rootName, rootPath, items, depth)
	if err != nil {
		return nil, 0, err
	}
	return root, t.folders, nil
}

func parse(e Entry) ([]string, error) {
	if e.File == nil {
		return nil, fmt.Errorf("entry %q has no file", e.RelativePath)
	}
	if strings.HasPrefix(e.RelativePath, paths.Separator) {
		return nil, errs.InvalidPath(e.RelativePath, "absolute path")
	}
	segs := paths.Segments(e.RelativePath)
	if len(segs) == 0 {
		return nil, errs.InvalidPath(e.RelativePath, "empty path")
	}
	for _, s := range segs {
		if s == "." || s == ".." {
			return nil, errs.InvalidPath(e.RelativePath, "relative segment "+s)
		}
	}
	return segs, nil
}

// rootLocation derives the root path from the first file's path by removing its
// root-relative suffix. Without any path the root gets a synthetic locator.
func rootLocation(realPath string, rel []string, name string) (string, string) {
	if realPath == "" {
		if name == "" {
			name = DefaultRootName
		}
		return Scheme + uuid.NewString() + paths.Separator + name, name
	}

	suffix := paths.Separator + strings.Join(rel, paths.Separator)
	root, ok := strings.CutSuffix(realPath, suffix)
	if !ok {
		// Real layout differs from the virtual one; climb one level per segment.
		root = realPath
		for range rel {
			root, _ = paths.Dirname(root)
		}
	}
	if root == "" {
		root = paths.Separator
	}

	if name == "" {
		name, _ = paths.Basename(root)
		if name == "" || name == paths.Separator || name == "." {
			name = DefaultRootName
		}
	}
	return root, name
}

type tree struct {
	entries []Entry
	folders int
}

// folder builds one level: items whose remaining path has a single segment become files,
// the rest are grouped by their segment at depth, in order of first appearance.
func (t *tree) folder(name, path string, items []item, depth int) (*entity.Folder, error) {
	var (
		children []entity.Entity
		order    []string
		groups   = make(map[string][]item)
		modTime  time.Time
	)

	for _, it := range items {
		if len(it.segs)-depth == 1 {
			f := t.entries[it.index].File
			children = append(children, f)
			modTime = newest(modTime, f.LastModified())
			continue
		}
		seg := it.segs[depth]
		if _, seen := groups[seg]; !seen {
			order = append(order, seg)
		}
		groups[seg] = append(groups[seg], it)
	}

	for _, seg := range order {
		sub, err := t.folder(seg, paths.Join(path, seg), groups[seg], depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, sub)
		modTime = newest(modTime, sub.LastModified())
	}

	folder, err := entity.NewFolder(entity.FolderInfo{Name: name, Path: path, ModTime: modTime}, children...)
	if err != nil {
		return nil, err
	}
	t.folders++
	return folder, nil
}

func newest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
