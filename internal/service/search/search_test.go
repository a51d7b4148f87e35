package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
	"github.com/GriffinCanCode/entityfs/internal/providers/virtual"
)

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func buildTree(t *testing.T, files map[string]string, order []string) *entity.Folder {
	t.Helper()
	entries := make([]virtual.Entry, len(order))
	for i, rel := range order {
		content := files[rel]
		name := rel[strings.LastIndex(rel, "/")+1:]
		f, err := entity.NewFile(entity.FileInfo{
			Name:    name,
			Path:    "/src/" + rel,
			ModTime: base.AddDate(0, 0, i),
			Length:  int64(len(content)),
		}, entity.BytesSource([]byte(content)))
		require.NoError(t, err)
		entries[i] = virtual.Entry{RelativePath: rel, File: f}
	}
	root, err := virtual.Build(entries, virtual.Options{})
	require.NoError(t, err)
	return root
}

func sampleTree(t *testing.T) *entity.Folder {
	files := map[string]string{
		"readme.md":              "# project\nsee docs\n",
		"docs/guide.txt":         "step one\nstep two\nTODO finish\n",
		"docs/img/logo.png":      "\x89PNG\r\n\x1a\n",
		"src/main.go":            "package main\n// TODO wire flags\n",
		"src/vendor/lib.tar.gz":  "gz",
		"notes/2024/january.TXT": "cold",
	}
	order := []string{"readme.md", "docs/guide.txt", "docs/img/logo.png", "src/main.go", "src/vendor/lib.tar.gz", "notes/2024/january.TXT"}
	return buildTree(t, files, order)
}

func matchPaths(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Path
	}
	return out
}

func fileNames(fs []*entity.File) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name()
	}
	return out
}

func TestGlob(t *testing.T) {
	root := sampleTree(t)

	tests := []struct {
		pattern string
		want    []string
	}{
		{"**/*.txt", []string{"docs/guide.txt"}},
		{"docs/**/*", []string{"docs/guide.txt", "docs/img", "docs/img/logo.png"}},
		{"*", []string{"readme.md", "docs", "src", "notes"}},
		{"src/*/*.{gz,zip}", []string{"src/vendor/lib.tar.gz"}},
		{"**/missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := Glob(root, tt.pattern)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, matchPaths(got))
		})
	}
}

func TestGlobBadPattern(t *testing.T) {
	_, err := Glob(sampleTree(t), "docs/[")
	assert.True(t, errors.Is(err, doublestar.ErrBadPattern))
}

func TestByExtension(t *testing.T) {
	root := sampleTree(t)

	assert.ElementsMatch(t, []string{"guide.txt", "january.TXT"}, fileNames(ByExtension(root, "txt")))
	assert.ElementsMatch(t, []string{"lib.tar.gz"}, fileNames(ByExtension(root, ".gz")))
	assert.ElementsMatch(t, []string{"lib.tar.gz"}, fileNames(ByExtension(root, ".tar.gz")))
	assert.Empty(t, ByExtension(root, "exe"))
}

func TestBySize(t *testing.T) {
	root := sampleTree(t)

	got, err := BySize(context.Background(), root, 10, -1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"readme.md", "guide.txt", "main.go"}, fileNames(got))

	got, err = BySize(context.Background(), root, 0, 4)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lib.tar.gz", "january.TXT"}, fileNames(got))
}

func TestModifiedSince(t *testing.T) {
	root := sampleTree(t)

	// Entry i was modified i days after base.
	got := ModifiedSince(root, base.AddDate(0, 0, 4))
	assert.ElementsMatch(t, []string{"lib.tar.gz", "january.TXT"}, fileNames(got))
}

func TestContent(t *testing.T) {
	root := sampleTree(t)

	results, err := Content(context.Background(), root, "TODO")
	require.NoError(t, err)
	require.Len(t, results, 2)

	byPath := map[string][]LineMatch{}
	for _, r := range results {
		byPath[r.Path] = r.Lines
	}
	assert.Equal(t, []LineMatch{{Line: 3, Content: "TODO finish"}}, byPath["docs/guide.txt"])
	assert.Equal(t, []LineMatch{{Line: 2, Content: "// TODO wire flags"}}, byPath["src/main.go"])

	_, err = Content(context.Background(), root, "")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Content(ctx, root, "TODO")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContentLongLines(t *testing.T) {
	// One 70 KiB line with the needle straddling the reader's 4 KiB buffer boundary.
	long := strings.Repeat("x", 4093) + "needle" + strings.Repeat("y", 70<<10)
	files := map[string]string{
		"bundle.js": long + "\nneedle again\n",
		"notes.txt": "hello needle",
	}
	root := buildTree(t, files, []string{"bundle.js", "notes.txt"})

	results, err := Content(context.Background(), root, "needle")
	require.NoError(t, err)
	require.Len(t, results, 2)

	bundle := results[0]
	assert.Equal(t, "bundle.js", bundle.Path)
	require.Len(t, bundle.Lines, 2)
	assert.Equal(t, 1, bundle.Lines[0].Line)
	assert.Len(t, bundle.Lines[0].Content, maxLineContent)
	assert.Equal(t, LineMatch{Line: 2, Content: "needle again"}, bundle.Lines[1])

	assert.Equal(t, ContentMatch{Path: "notes.txt", Lines: []LineMatch{{Line: 1, Content: "hello needle"}}}, results[1])
}

func TestContentCRLF(t *testing.T) {
	root := buildTree(t, map[string]string{"win.txt": "first\r\nsecond match\r\n"}, []string{"win.txt"})

	results, err := Content(context.Background(), root, "match")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []LineMatch{{Line: 2, Content: "second match"}}, results[0].Lines)
}
