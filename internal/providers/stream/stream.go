// Package stream adapts picker results that only offer a sequential byte stream into
// entity files with range reads and lazily computed lengths.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
	"github.com/GriffinCanCode/entityfs/internal/shared/mimetypes"
	"github.com/GriffinCanCode/entityfs/internal/shared/paths"
)

// Opener opens the whole content from the beginning. Each call returns a new stream.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Info describes a streamed file. A negative Length is computed on first use.
type Info struct {
	Name        string
	Path        string
	ContentType string
	ModTime     time.Time
	Length      int64
}

// Result is one item delivered by a picker.
type Result struct {
	Info Info
	Open Opener
	Err  error
}

// NewFile wraps open as a file. When neither a content type nor an extension is
// available, the type is sniffed from the first bytes of the stream.
func NewFile(ctx context.Context, info Info, open Opener) (*entity.File, error) {
	if open == nil {
		return nil, errors.New("stream opener is nil")
	}

	if info.ContentType == "" && paths.Ext(info.Name) == "" {
		ct, err := sniff(ctx, open)
		if err != nil {
			return nil, fmt.Errorf("sniff %s: %w", info.Name, err)
		}
		info.ContentType = ct
	}

	length := info.Length
	if length < 0 {
		length = entity.UnknownLength
	}

	return entity.NewFile(entity.FileInfo{
		Name:        info.Name,
		Path:        info.Path,
		ContentType: info.ContentType,
		ModTime:     info.ModTime,
		Length:      length,
	}, rangeSource(open))
}

func sniff(ctx context.Context, open Opener) (string, error) {
	rc, err := open(ctx)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return mimetypes.Detect(rc)
}

// rangeSource serves [start, end) by skipping start bytes of a fresh stream.
func rangeSource(open Opener) entity.Source {
	return entity.SourceFunc(func(ctx context.Context, start, end int64) (io.ReadCloser, error) {
		rc, err := open(ctx)
		if err != nil {
			return nil, err
		}
		if start > 0 {
			if _, err := io.CopyN(io.Discard, rc, start); err != nil && err != io.EOF {
				rc.Close()
				return nil, fmt.Errorf("skip to %d: %w", start, err)
			}
		}
		if end < 0 {
			return rc, nil
		}
		if end < start {
			end = start
		}
		return &limited{Reader: io.LimitReader(rc, end-start), Closer: rc}, nil
	})
}

type limited struct {
	io.Reader
	io.Closer
}

// Collect gathers picker results until results is closed. A picker that closes the
// channel without delivering anything was dismissed and yields *errs.ActionCanceledError.
func Collect(ctx context.Context, results <-chan Result) ([]*entity.File, error) {
	var files []*entity.File
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r, ok := <-results:
			if !ok {
				if len(files) == 0 {
					return nil, &errs.ActionCanceledError{Action: "pick files"}
				}
				return files, nil
			}
			if r.Err != nil {
				return nil, r.Err
			}
			f, err := NewFile(ctx, r.Info, r.Open)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	}
}

// ErrConsumed is returned by a Once opener asked for its stream a second time.
var ErrConsumed = errors.New("stream already consumed")

// Once returns an Opener that hands out r a single time, for bodies that cannot be
// rewound. Files built on it need a content type so nothing sniffs ahead of the reader.
func Once(r io.Reader) Opener {
	var used atomic.Bool
	return func(context.Context) (io.ReadCloser, error) {
		if used.Swap(true) {
			return nil, ErrConsumed
		}
		return io.NopCloser(r), nil
	}
}

// Bytes returns an Opener over an in-memory buffer.
func Bytes(data []byte) Opener {
	return func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}
