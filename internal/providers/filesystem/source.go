package filesystem

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
)

// fileSource reads byte ranges of one file. Every Open returns a fresh handle.
func fileSource(fsys afero.Fs, path string) entity.Source {
	return entity.SourceFunc(func(ctx context.Context, start, end int64) (io.ReadCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := fsys.Open(path)
		if err != nil {
			return nil, err
		}
		if start > 0 {
			if _, err := f.Seek(start, io.SeekStart); err != nil {
				f.Close()
				return nil, fmt.Errorf("seek %s to %d: %w", path, start, err)
			}
		}
		if end < 0 {
			return f, nil
		}
		if end < start {
			end = start
		}
		return &limitedFile{Reader: io.LimitReader(f, end-start), Closer: f}, nil
	})
}

type limitedFile struct {
	io.Reader
	io.Closer
}
