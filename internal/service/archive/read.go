package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
	"github.com/GriffinCanCode/entityfs/internal/providers/virtual"
	"github.com/GriffinCanCode/entityfs/internal/shared/paths"
)

// DefaultMaxSize bounds the total bytes Read keeps in memory.
const DefaultMaxSize int64 = 256 << 20

// ErrTooLarge is returned when an archive exceeds the size limit of Read.
var ErrTooLarge = errors.New("archive exceeds size limit")

// Read loads the regular files of a tar archive into memory and returns them as
// virtual entries, ready for virtual.Build. Directory entries are implied by the file
// paths; links and special files are ignored. maxSize <= 0 uses DefaultMaxSize.
func Read(r io.Reader, c Compression, maxSize int64) ([]virtual.Entry, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	dr, closeFn, err := decompressor(r, c)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var (
		entries []virtual.Entry
		total   int64
	)
	tr := tar.NewReader(dr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		total += hdr.Size
		if total > maxSize {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxSize)
		}
		data, err := io.ReadAll(io.LimitReader(tr, hdr.Size))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", hdr.Name, err)
		}

		rel := strings.TrimPrefix(hdr.Name, "./")
		name, err := paths.Basename(rel)
		if err != nil {
			return nil, err
		}
		f, err := entity.NewFile(entity.FileInfo{
			Name:    name,
			ModTime: hdr.ModTime,
			Length:  int64(len(data)),
		}, entity.BytesSource(data))
		if err != nil {
			return nil, err
		}
		entries = append(entries, virtual.Entry{RelativePath: rel, File: f})
	}
}

func decompressor(r io.Reader, c Compression) (io.Reader, func(), error) {
	switch c {
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd: %w", err)
		}
		return zr, zr.Close, nil
	case None, "":
		return r, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown compression %q", c)
	}
}
