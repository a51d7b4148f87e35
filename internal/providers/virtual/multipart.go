package virtual

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
	"github.com/GriffinCanCode/entityfs/internal/shared/paths"
)

// PathsSuffix names the optional form field carrying relative paths in the same order as
// the files, for clients that cannot put them into the part's file name.
const PathsSuffix = "_paths"

// FromMultipart converts the files uploaded under field into entries. The relative path
// of each file is taken from the raw Content-Disposition file name, which browsers fill
// with the path below the picked directory. File paths are placed under one synthetic
// "virtual://<id>/" root shared by the whole upload.
func FromMultipart(form *multipart.Form, field string) ([]Entry, error) {
	if form == nil {
		return nil, &errs.ActionCanceledError{Action: "upload"}
	}
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, &errs.ActionCanceledError{Action: "upload"}
	}

	explicit := form.Value[field+PathsSuffix]
	if len(explicit) > 0 && len(explicit) != len(headers) {
		return nil, fmt.Errorf("%s: got %d paths for %d files", field+PathsSuffix, len(explicit), len(headers))
	}

	base := Scheme + uuid.NewString()
	uploaded := time.Now()

	entries := make([]Entry, 0, len(headers))
	for i, fh := range headers {
		rel := relativePath(fh)
		if len(explicit) > 0 {
			rel = explicit[i]
		}
		name, err := paths.Basename(rel)
		if err != nil {
			return nil, err
		}

		file, err := entity.NewFile(entity.FileInfo{
			Name:        name,
			Path:        paths.Join(base, rel),
			ContentType: fh.Header.Get("Content-Type"),
			ModTime:     uploaded,
			Length:      fh.Size,
		}, partSource(fh))
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{RelativePath: rel, File: file})
	}
	return entries, nil
}

// relativePath recovers the unsanitised file name; multipart.FileHeader.Filename only
// keeps the last element.
func relativePath(fh *multipart.FileHeader) string {
	_, params, err := mime.ParseMediaType(fh.Header.Get("Content-Disposition"))
	if err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return fh.Filename
}

func partSource(fh *multipart.FileHeader) entity.Source {
	return entity.SourceFunc(func(ctx context.Context, start, end int64) (io.ReadCloser, error) {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		if end < 0 || end > fh.Size {
			end = fh.Size
		}
		if start > end {
			start = end
		}
		return &sectionCloser{Reader: io.NewSectionReader(f, start, end-start), Closer: f}, nil
	})
}

type sectionCloser struct {
	io.Reader
	io.Closer
}
