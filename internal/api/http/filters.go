package http

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
	"github.com/GriffinCanCode/entityfs/internal/service/search"
)

// fileFilters narrows a search to files by extension, size and modification time.
type fileFilters struct {
	exts    []string
	minSize int64
	maxSize int64 // negative means unbounded
	since   time.Time
}

func parseFilters(c *gin.Context) (fileFilters, error) {
	ff := fileFilters{maxSize: -1}

	if v, ok := c.GetQuery("ext"); ok {
		for _, ext := range strings.Split(v, ",") {
			if ext = strings.TrimSpace(ext); ext != "" {
				ff.exts = append(ff.exts, ext)
			}
		}
		if len(ff.exts) == 0 {
			return ff, fmt.Errorf("%w: ext: no extensions given", errBadRequest)
		}
	}

	for key, dst := range map[string]*int64{"min_size": &ff.minSize, "max_size": &ff.maxSize} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return ff, fmt.Errorf("%w: %s must be a byte count: %q", errBadRequest, key, v)
		}
		*dst = n
	}
	if ff.maxSize >= 0 && ff.minSize > ff.maxSize {
		return ff, fmt.Errorf("%w: min_size exceeds max_size", errBadRequest)
	}

	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ff, fmt.Errorf("%w: since: %v", errBadRequest, err)
		}
		ff.since = t
	}
	return ff, nil
}

func (ff fileFilters) set() bool {
	return len(ff.exts) > 0 || ff.minSize > 0 || ff.maxSize >= 0 || !ff.since.IsZero()
}

// files returns the files below root passing every filter, in ListFiles order.
func (ff fileFilters) files(ctx context.Context, root *entity.Folder) ([]*entity.File, error) {
	files := slices.Clone(root.ListFiles())
	keep := func(subset []*entity.File) {
		in := make(map[*entity.File]bool, len(subset))
		for _, f := range subset {
			in[f] = true
		}
		files = slices.DeleteFunc(files, func(f *entity.File) bool { return !in[f] })
	}

	if len(ff.exts) > 0 {
		keep(search.ByExtension(root, ff.exts...))
	}
	if ff.minSize > 0 || ff.maxSize >= 0 {
		sized, err := search.BySize(ctx, root, ff.minSize, ff.maxSize)
		if err != nil {
			return nil, err
		}
		keep(sized)
	}
	if !ff.since.IsZero() {
		keep(search.ModifiedSince(root, ff.since))
	}
	return files, nil
}

// narrow keeps the glob matches that are files passing the filters. Without a glob
// every passing file is a match.
func (ff fileFilters) narrow(ctx context.Context, root *entity.Folder, matches []search.Match, globbed bool) ([]search.Match, error) {
	files, err := ff.files(ctx, root)
	if err != nil {
		return nil, err
	}

	if globbed {
		in := make(map[entity.Entity]bool, len(files))
		for _, f := range files {
			in[f] = true
		}
		return slices.DeleteFunc(matches, func(m search.Match) bool { return !in[m.Entity] }), nil
	}

	out := make([]search.Match, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root.Path(), f.Path())
		if err != nil {
			rel = f.Path()
		}
		out = append(out, search.Match{Path: filepath.ToSlash(rel), Entity: f})
	}
	return out, nil
}
