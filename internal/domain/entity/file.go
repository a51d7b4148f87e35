package entity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
	"github.com/GriffinCanCode/entityfs/internal/shared/mimetypes"
)

// DefaultChunkSize is used by Chunks when no positive size is given.
const DefaultChunkSize = 1 << 20

// UnknownLength marks a file whose length is computed on first use.
const UnknownLength int64 = -1

// Range is a half-open byte range [Start, End). End < 0 means end of file.
type Range struct {
	Start int64
	End   int64
}

// Whole covers the entire content.
var Whole = Range{Start: 0, End: -1}

func (r Range) validate() error {
	if r.Start < 0 {
		return fmt.Errorf("invalid range start %d", r.Start)
	}
	if r.End >= 0 && r.End < r.Start {
		return fmt.Errorf("invalid range [%d,%d)", r.Start, r.End)
	}
	return nil
}

// Source opens the byte range [start, end) of some content. end < 0 reads to the end.
// Every call starts an independent sequence.
type Source interface {
	Open(ctx context.Context, start, end int64) (io.ReadCloser, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, start, end int64) (io.ReadCloser, error)

// Open calls f.
func (f SourceFunc) Open(ctx context.Context, start, end int64) (io.ReadCloser, error) {
	return f(ctx, start, end)
}

// LengthFunc computes a length that is not known up front.
type LengthFunc func(ctx context.Context) (int64, error)

// FileInfo describes a file at construction time.
type FileInfo struct {
	Name string
	Path string
	// ContentType is a hint; the name's extension takes precedence.
	ContentType string
	ModTime     time.Time
	// Length is the byte count, or UnknownLength.
	Length int64
	// LengthFunc computes an unknown length. When nil the content is counted.
	LengthFunc LengthFunc
}

// File is an immutable leaf node with lazily read content.
type File struct {
	name        string
	path        string
	contentType string
	modTime     time.Time
	source      Source

	mu         sync.Mutex
	length     int64
	lengthFunc LengthFunc
}

// NewFile creates a file node reading its content from src.
func NewFile(info FileInfo, src Source) (*File, error) {
	if info.Name == "" {
		return nil, errs.InvalidPath(info.Path, "file name is empty")
	}
	if src == nil {
		return nil, errors.New("file source is nil")
	}

	length := info.Length
	if length < 0 {
		length = UnknownLength
	}

	return &File{
		name:        info.Name,
		path:        info.Path,
		contentType: mimetypes.TypeByName(info.Name, info.ContentType),
		modTime:     info.ModTime,
		source:      src,
		length:      length,
		lengthFunc:  info.LengthFunc,
	}, nil
}

func (f *File) Name() string            { return f.name }
func (f *File) Path() string            { return f.path }
func (f *File) ContentType() string     { return f.contentType }
func (f *File) LastModified() time.Time { return f.modTime }
func (f *File) Kind() Kind              { return KindFile }
func (f *File) sealed()                 {}

// Length returns the byte count. Unknown lengths are computed once and cached; a failed
// computation is retried on the next call.
func (f *File) Length(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.length >= 0 {
		return f.length, nil
	}

	var (
		n   int64
		err error
	)
	if f.lengthFunc != nil {
		n, err = f.lengthFunc(ctx)
	} else {
		n, err = f.count(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", f.name, err)
	}
	f.length = n
	return n, nil
}

func (f *File) count(ctx context.Context) (int64, error) {
	rc, err := f.source.Open(ctx, 0, -1)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return io.Copy(io.Discard, rc)
}

// Open returns a reader over rng.
func (f *File) Open(ctx context.Context, rng Range) (io.ReadCloser, error) {
	if err := rng.validate(); err != nil {
		return nil, err
	}
	rc, err := f.source.Open(ctx, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.name, err)
	}
	return rc, nil
}

// Chunks yields the content of rng in chunks of at most chunkSize bytes. The yielded slice
// is reused and only valid until the next iteration. Stopping the iteration closes the
// underlying reader; the sequence is restartable from rng.Start by ranging again.
func (f *File) Chunks(ctx context.Context, rng Range, chunkSize int) iter.Seq2[[]byte, error] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return func(yield func([]byte, error) bool) {
		rc, err := f.Open(ctx, rng)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rc.Close()

		buf := make([]byte, chunkSize)
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			n, err := io.ReadFull(rc, buf)
			if n > 0 && !yield(buf[:n], nil) {
				return
			}
			switch {
			case err == io.EOF || err == io.ErrUnexpectedEOF:
				return
			case err != nil:
				yield(nil, fmt.Errorf("read %s: %w", f.name, err))
				return
			}
		}
	}
}

// ReadAll reads the entire content.
func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	rc, err := f.Open(ctx, Whole)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.name, err)
	}
	return data, nil
}

// ReadText reads the entire content as UTF-8. Content in another charset is detected and
// converted.
func (f *File) ReadText(ctx context.Context) (string, error) {
	data, err := f.ReadAll(ctx)
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return "", fmt.Errorf("detect charset of %s: %w", f.name, err)
	}
	enc, err := htmlindex.Get(result.Charset)
	if err != nil {
		return "", fmt.Errorf("charset %s of %s: %w", result.Charset, f.name, err)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s as %s: %w", f.name, result.Charset, err)
	}
	return string(decoded), nil
}
