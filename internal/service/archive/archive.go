// Package archive streams entity trees as tar archives and reads them back.
//
// Supported compression: none, gzip and zstd (klauspost/compress). File bodies are
// copied through entity.File.Chunks, so memory use is bounded by the chunk size
// regardless of file sizes.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
)

// Compression selects the stream wrapped around the tar data.
type Compression string

const (
	None Compression = "none"
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
)

const (
	dirMode  = 0o755
	fileMode = 0o644
)

// ParseCompression accepts "", "none", "gzip", "gz", "zstd" and "zst".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none", "tar":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	default:
		return "", fmt.Errorf("unknown compression %q", s)
	}
}

// Extension returns the file extension of an archive with this compression.
func (c Compression) Extension() string {
	switch c {
	case Gzip:
		return ".tar.gz"
	case Zstd:
		return ".tar.zst"
	default:
		return ".tar"
	}
}

// ContentType returns the content type of an archive with this compression.
func (c Compression) ContentType() string {
	switch c {
	case Gzip:
		return "application/gzip"
	case Zstd:
		return "application/zstd"
	default:
		return "application/x-tar"
	}
}

// Stats summarises a written archive.
type Stats struct {
	Files   int
	Folders int
	Bytes   int64
}

// Write streams root as a tar archive to w. Entries are named relative to root and
// prefixed with root's name, so the archive unpacks into a single folder.
func Write(ctx context.Context, root *entity.Folder, w io.Writer, c Compression) (Stats, error) {
	var stats Stats

	cw, err := compressor(w, c)
	if err != nil {
		return stats, err
	}
	tw := tar.NewWriter(cw)

	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     root.Name() + "/",
		Mode:     dirMode,
		ModTime:  root.LastModified(),
	}); err != nil {
		return stats, err
	}
	stats.Folders++

	err = root.Walk(func(rel string, e entity.Entity) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := root.Name() + "/" + rel

		switch e := e.(type) {
		case *entity.Folder:
			stats.Folders++
			return tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     name + "/",
				Mode:     dirMode,
				ModTime:  e.LastModified(),
			})
		case *entity.File:
			n, err := writeFile(ctx, tw, name, e)
			if err != nil {
				return err
			}
			stats.Files++
			stats.Bytes += n
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("archive %s: %w", root.Path(), err)
	}

	if err := tw.Close(); err != nil {
		return stats, err
	}
	return stats, cw.Close()
}

func writeFile(ctx context.Context, tw *tar.Writer, name string, f *entity.File) (int64, error) {
	size, err := f.Length(ctx)
	if err != nil {
		return 0, err
	}
	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     fileMode,
		Size:     size,
		ModTime:  f.LastModified(),
	}); err != nil {
		return 0, err
	}

	var written int64
	for chunk, err := range f.Chunks(ctx, entity.Whole, entity.DefaultChunkSize) {
		if err != nil {
			return written, err
		}
		n, err := tw.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("%s: %w", name, err)
		}
	}
	if written != size {
		return written, fmt.Errorf("%s: length %d but %d bytes read", name, size, written)
	}
	return written, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func compressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		return zstd.NewWriter(w)
	case None, "":
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}
