package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/logging"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
)

// Mounter builds entity trees mirroring real directories.
type Mounter struct {
	// Fs serves file content and the root stat. Required.
	Fs afero.Fs
	// Lister lists directories. Defaults to an FsLister over Fs.
	Lister Lister
	// Snapshot replaces a nil Lister with a SnapshotLister taken after the scope is
	// acquired. Only honoured when Fs is the OS filesystem.
	Snapshot bool
	// Scope guards the whole mount. Defaults to NoScope.
	Scope ScopeAccessor

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// NewMounter returns a Mounter over fsys with default listing and scope.
func NewMounter(fsys afero.Fs) *Mounter {
	return &Mounter{Fs: fsys}
}

type mountStats struct {
	files   int
	folders int
	skipped int
}

// Mount recursively mounts dir. The tree is a snapshot: it reflects the directory as
// listed during the call. On any error the partial tree is discarded.
func (m *Mounter) Mount(ctx context.Context, dir string) (*entity.Folder, error) {
	start := time.Now()
	log := logging.OrNop(m.Logger)

	var stats mountStats
	root, err := m.mount(ctx, dir, &stats)
	m.Metrics.RecordTree(monitoring.SourceFilesystem, err, time.Since(start), stats.files, stats.folders)
	if err != nil {
		log.Warn("mount failed", zap.String("dir", dir), zap.Error(err))
		return nil, err
	}

	log.Debug("mounted directory",
		zap.String("dir", root.Path()),
		zap.Int("files", stats.files),
		zap.Int("folders", stats.folders),
		zap.Int("skipped", stats.skipped),
		zap.Duration("duration", time.Since(start)),
	)
	return root, nil
}

func (m *Mounter) mount(ctx context.Context, dir string, stats *mountStats) (*entity.Folder, error) {
	if m.Fs == nil {
		return nil, fmt.Errorf("mounter has no filesystem")
	}
	abs, err := resolvePath(m.Fs, dir)
	if err != nil {
		return nil, err
	}

	scope := m.Scope
	if scope == nil {
		scope = NoScope{}
	}
	release, err := scope.Acquire(ctx, abs)
	m.Metrics.RecordScope(err)
	if err != nil {
		return nil, fmt.Errorf("acquire scope for %s: %w", abs, err)
	}
	defer release()

	info, err := m.Fs.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, errs.InvalidPath(abs, "not a directory")
	}

	lister, err := m.lister(ctx, abs)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(abs)
	return m.folder(ctx, lister, name, abs, info.ModTime(), stats)
}

func (m *Mounter) lister(ctx context.Context, root string) (Lister, error) {
	if m.Lister != nil {
		return m.Lister, nil
	}
	if m.Snapshot && isOsFs(m.Fs) {
		return NewSnapshotLister(ctx, root)
	}
	return NewFsLister(m.Fs), nil
}

// folder lists dir once and mounts its entries depth-first pre-order.
func (m *Mounter) folder(ctx context.Context, lister Lister, name, dir string, modTime time.Time, stats *mountStats) (*entity.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := lister.ReadDir(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	children := make([]entity.Entity, 0, len(infos))
	for _, info := range infos {
		path := filepath.Join(dir, info.Name())

		switch mode := info.Mode(); {
		case mode.IsDir():
			sub, err := m.folder(ctx, lister, info.Name(), path, info.ModTime(), stats)
			if err != nil {
				return nil, err
			}
			children = append(children, sub)

		case mode.IsRegular():
			file, err := m.file(path, info)
			if err != nil {
				return nil, err
			}
			children = append(children, file)
			stats.files++

		default:
			// Symlinks, devices, sockets and pipes.
			stats.skipped++
			logging.OrNop(m.Logger).Debug("skipping non-regular entry",
				zap.String("path", path),
				zap.String("mode", mode.String()),
			)
		}
	}

	folder, err := entity.NewFolder(entity.FolderInfo{Name: name, Path: dir, ModTime: modTime}, children...)
	if err != nil {
		return nil, err
	}
	stats.folders++
	return folder, nil
}

func (m *Mounter) file(path string, info os.FileInfo) (*entity.File, error) {
	return entity.NewFile(entity.FileInfo{
		Name:    info.Name(),
		Path:    path,
		ModTime: info.ModTime(),
		Length:  info.Size(),
	}, fileSource(m.Fs, path))
}
