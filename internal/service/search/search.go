// Package search finds files in entity trees by pattern, extension, size, date or content.
package search

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
	"github.com/GriffinCanCode/entityfs/internal/shared/mimetypes"
	"github.com/GriffinCanCode/entityfs/internal/shared/paths"
)

// maxLineMatches limits the matches reported per file by Content.
const maxLineMatches = 100

// maxLineContent bounds the text reported for one matching line.
const maxLineContent = 4 << 10

// Match is an entity found below a root, with its "/"-separated path relative to it.
type Match struct {
	Path   string
	Entity entity.Entity
}

// LineMatch is one matching line of a text file.
type LineMatch struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// ContentMatch lists the matching lines of one file.
type ContentMatch struct {
	Path  string      `json:"path"`
	Lines []LineMatch `json:"matches"`
}

// Glob returns the entities whose relative path matches a doublestar pattern such as
// "**/*.txt", in walk order.
func Glob(root *entity.Folder, pattern string) ([]Match, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	var matches []Match
	err := root.Walk(func(rel string, e entity.Entity) error {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, Match{Path: rel, Entity: e})
		}
		return nil
	})
	return matches, err
}

// ByExtension returns the files whose extension is one of exts. Extensions are compared
// case-insensitively, with or without the leading dot.
func ByExtension(root *entity.Folder, exts ...string) []*entity.File {
	want := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		want[strings.ToLower(ext)] = true
	}

	var out []*entity.File
	for _, f := range root.ListFiles() {
		if want[strings.ToLower(paths.Ext(f.Name()))] || want[strings.ToLower(paths.ResolveExtension(f.Name(), "", true))] {
			out = append(out, f)
		}
	}
	return out
}

// BySize returns the files with minSize <= length <= maxSize. A negative maxSize means no
// upper bound.
func BySize(ctx context.Context, root *entity.Folder, minSize, maxSize int64) ([]*entity.File, error) {
	var out []*entity.File
	for _, f := range root.ListFiles() {
		n, err := f.Length(ctx)
		if err != nil {
			return nil, err
		}
		if n >= minSize && (maxSize < 0 || n <= maxSize) {
			out = append(out, f)
		}
	}
	return out, nil
}

// ModifiedSince returns the files modified at or after since.
func ModifiedSince(root *entity.Folder, since time.Time) []*entity.File {
	var out []*entity.File
	for _, f := range root.ListFiles() {
		if !f.LastModified().Before(since) {
			out = append(out, f)
		}
	}
	return out
}

// Content scans text files for lines containing query. Files with a non-text content
// type are skipped.
func Content(ctx context.Context, root *entity.Folder, query string) ([]ContentMatch, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	needle := []byte(query)

	var results []ContentMatch
	err := root.Walk(func(rel string, e entity.Entity) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, ok := e.(*entity.File)
		if !ok || !mimetypes.IsText(f.ContentType()) {
			return nil
		}

		lines, err := scan(ctx, f, needle)
		if err != nil {
			return err
		}
		if len(lines) > 0 {
			results = append(results, ContentMatch{Path: rel, Lines: lines})
		}
		return nil
	})
	return results, err
}

func scan(ctx context.Context, f *entity.File, needle []byte) ([]LineMatch, error) {
	rc, err := f.Open(ctx, entity.Whole)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var (
		lines []LineMatch
		buf   []byte
	)
	br := bufio.NewReader(rc)
	for lineNum := 1; ; lineNum++ {
		line, hit, ok, err := nextLine(br, needle, buf)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", f.Name(), err)
		}
		if !ok {
			return lines, nil
		}
		if hit {
			lines = append(lines, LineMatch{Line: lineNum, Content: string(line)})
			if len(lines) >= maxLineMatches {
				return lines, nil
			}
		}
		buf = line
	}
}

// nextLine reads one line of any length into buf, without its line ending. Only the
// first maxLineContent bytes are kept, but the whole line is tested for needle. ok is
// false at the end of input.
func nextLine(br *bufio.Reader, needle, buf []byte) (line []byte, hit, ok bool, err error) {
	line = buf[:0]
	var window []byte
	for {
		frag, err := br.ReadSlice('\n')
		if len(frag) > 0 {
			ok = true
		}
		body := bytes.TrimSuffix(frag, []byte("\n"))

		if !hit {
			// The window carries the tail of the previous fragment so matches spanning
			// two fragments are found.
			window = append(window, body...)
			hit = bytes.Contains(window, needle)
			if keep := len(needle) - 1; len(window) > keep {
				window = append(window[:0], window[len(window)-keep:]...)
			}
		}
		if room := maxLineContent - len(line); room > 0 {
			line = append(line, body[:min(room, len(body))]...)
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err != nil && !errors.Is(err, io.EOF):
			return nil, false, false, err
		}
		return bytes.TrimSuffix(line, []byte("\r")), hit, ok, nil
	}
}
