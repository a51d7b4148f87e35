package http

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/entityfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/entityfs/internal/service/archive"
	"github.com/GriffinCanCode/entityfs/internal/service/manifest"
	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"docs/readme.txt":      "hello entity tree",
		"docs/guide/intro.md":  "# intro\nhello again\n",
		"docs/guide/image.png": "\x89PNG",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	h := NewHandlers(Options{
		Fs:      afero.NewOsFs(),
		Root:    root,
		Metrics: monitoring.NewMetrics(prometheus.NewRegistry()),
	})
	r := gin.New()
	h.Register(r)
	return r, root
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "metrics")
}

func TestTree(t *testing.T) {
	r, root := setupRouter(t)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/tree?path=docs", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	node, err := manifest.Decode(w.Body.Bytes(), manifest.JSON)
	require.NoError(t, err)
	assert.Equal(t, "docs", node.Name)
	assert.Equal(t, filepath.Join(root, "docs"), node.Path)
	assert.Equal(t, 3, node.Files)
	require.Len(t, node.Children, 2)
}

func TestTreeFormats(t *testing.T) {
	r, _ := setupRouter(t)

	for _, format := range []manifest.Format{manifest.YAML, manifest.TOML} {
		t.Run(string(format), func(t *testing.T) {
			w := do(r, httptest.NewRequest(http.MethodGet, "/api/tree?path=docs&format="+string(format), nil))
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			node, err := manifest.Decode(w.Body.Bytes(), format)
			require.NoError(t, err)
			assert.Equal(t, "docs", node.Name)
		})
	}

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/tree?path=docs&format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTreeErrors(t *testing.T) {
	r, _ := setupRouter(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"missing", "nope", http.StatusNotFound},
		{"file", "docs/readme.txt", http.StatusBadRequest},
		{"escape is confined to root", "../../../../etc", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, httptest.NewRequest(http.MethodGet, "/api/tree?path="+tt.path, nil))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestSearchGlob(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/search?path=docs&pattern=**/*.md", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Results []SearchResult `json:"results"`
		Count   int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, SearchResult{Path: "guide/intro.md", Kind: "file", Size: 20}, body.Results[0])
}

func TestSearchContent(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/search?path=docs&query=hello", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestSearchBadRequest(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/search?path=docs", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/api/search?path=docs&pattern=%5B", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArchive(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/archive?path=docs&compression=gzip", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="docs.tar.gz"`, w.Header().Get("Content-Disposition"))

	entries, err := archive.Read(bytes.NewReader(w.Body.Bytes()), archive.Gzip, 0)
	require.NoError(t, err)
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.RelativePath
	}
	assert.ElementsMatch(t, []string{"docs/readme.txt", "docs/guide/intro.md", "docs/guide/image.png"}, paths)

	w = do(r, httptest.NewRequest(http.MethodGet, "/api/archive?path=docs&compression=rar", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func uploadRequest(t *testing.T, url string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile(uploadField, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	r, root := setupRouter(t)

	req := uploadRequest(t, "/api/upload?dest=uploads", map[string]string{
		"photos/a.txt":     "alpha",
		"photos/sub/b.txt": "bravo!",
	})
	w := do(r, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		ID    string         `json:"id"`
		Root  string         `json:"root"`
		Files []UploadedFile `json:"files"`
		Bytes int64          `json:"bytes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "uploads/photos", body.Root)
	assert.True(t, strings.HasPrefix(body.ID, "upl_"), body.ID)
	assert.EqualValues(t, 11, body.Bytes)
	require.Len(t, body.Files, 2)
	for _, f := range body.Files {
		assert.Len(t, f.Digest, 64)
	}

	data, err := os.ReadFile(filepath.Join(root, "uploads", "photos", "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bravo!", string(data))

	// A second upload of the same folder gets a fresh name.
	req = uploadRequest(t, "/api/upload?dest=uploads", map[string]string{"photos/a.txt": "again"})
	w = do(r, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEqual(t, "uploads/photos", body.Root)
}

func TestUploadRejected(t *testing.T) {
	r, _ := setupRouter(t)

	// Files from different top-level folders cannot share an included root.
	req := uploadRequest(t, "/api/upload", map[string]string{
		"one/a.txt": "a",
		"two/b.txt": "b",
	})
	assert.Equal(t, http.StatusBadRequest, do(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/upload", nil)
	assert.Equal(t, http.StatusBadRequest, do(r, req).Code)

	req = uploadRequest(t, "/api/upload?root_included=maybe", map[string]string{"a/b.txt": "b"})
	assert.Equal(t, http.StatusBadRequest, do(r, req).Code)
}

func TestUploadRejectsNameOutsideDest(t *testing.T) {
	r, root := setupRouter(t)

	for _, name := range []string{"..", "../../escaped", "a/b"} {
		url := "/api/upload?root_included=false&name=" + neturl.QueryEscape(name)
		req := uploadRequest(t, url, map[string]string{"a.txt": "a"})
		assert.Equal(t, http.StatusBadRequest, do(r, req).Code, name)
	}

	assert.NoDirExists(t, filepath.Join(filepath.Dir(root), "escaped"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "a.txt"))
	assert.NoFileExists(t, filepath.Join(root, "a.txt"))
}

func TestSearchFilters(t *testing.T) {
	r, _ := setupRouter(t)

	type result struct {
		Count   int            `json:"count"`
		Results []SearchResult `json:"results"`
	}
	get := func(query string) (int, result) {
		w := do(r, httptest.NewRequest(http.MethodGet, "/api/search?path=docs&"+query, nil))
		var body result
		if w.Code == http.StatusOK {
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		}
		return w.Code, body
	}
	paths := func(body result) []string {
		out := make([]string, len(body.Results))
		for i, res := range body.Results {
			out[i] = res.Path
		}
		return out
	}

	code, body := get("ext=md,.png")
	require.Equal(t, http.StatusOK, code)
	assert.ElementsMatch(t, []string{"guide/intro.md", "guide/image.png"}, paths(body))

	code, body = get("min_size=10")
	require.Equal(t, http.StatusOK, code)
	assert.ElementsMatch(t, []string{"readme.txt", "guide/intro.md"}, paths(body))

	code, body = get("max_size=4")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"guide/image.png"}, paths(body))
	assert.EqualValues(t, 4, body.Results[0].Size)

	// Filters narrow a glob to files.
	code, body = get("pattern=**&ext=txt")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"readme.txt"}, paths(body))

	since := neturl.QueryEscape(time.Now().Add(-time.Hour).Format(time.RFC3339))
	code, body = get("since=" + since)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, body.Count)

	since = neturl.QueryEscape(time.Now().Add(time.Hour).Format(time.RFC3339))
	code, body = get("since=" + since)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, body.Count)

	for _, bad := range []string{"ext=,", "min_size=-1", "max_size=big", "min_size=9&max_size=2", "since=yesterday", "query=hello&ext=md"} {
		code, _ := get(bad)
		assert.Equal(t, http.StatusBadRequest, code, bad)
	}
}

func TestImport(t *testing.T) {
	r, root := setupRouter(t)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/archive?path=docs&compression=zstd", nil))
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/import?dest=restored&compression=zstd", bytes.NewReader(w.Body.Bytes()))
	w = do(r, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Root  string         `json:"root"`
		Files []UploadedFile `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "restored/docs", body.Root)
	assert.Len(t, body.Files, 3)

	data, err := os.ReadFile(filepath.Join(root, "restored", "docs", "guide", "intro.md"))
	require.NoError(t, err)
	assert.Equal(t, "# intro\nhello again\n", string(data))
}

func TestImportRejected(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/import?compression=gzip", strings.NewReader("not an archive"))
	assert.Equal(t, http.StatusBadRequest, do(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/import?compression=rar", strings.NewReader(""))
	assert.Equal(t, http.StatusBadRequest, do(r, req).Code)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/archive?path=docs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	req = httptest.NewRequest(http.MethodPost, "/api/import?root_included=false&name=..", bytes.NewReader(w.Body.Bytes()))
	assert.Equal(t, http.StatusBadRequest, do(r, req).Code)
}

func TestImportTooLarge(t *testing.T) {
	root := t.TempDir()
	h := NewHandlers(Options{Fs: afero.NewOsFs(), Root: root, MaxImport: 4})
	r := gin.New()
	h.Register(r)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "big/data.bin", Mode: 0o644, Size: 8, Typeflag: tar.TypeReg}))
	_, err := tw.Write([]byte("12345678"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(r, req).Code)
	assert.NoDirExists(t, filepath.Join(root, "big"))
}

func TestPut(t *testing.T) {
	r, root := setupRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/api/files?path=notes/today.txt", strings.NewReader("streamed body"))
	req.Header.Set("Content-Type", "text/plain")
	w := do(r, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got UploadedFile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "notes/today.txt", got.Path)
	assert.EqualValues(t, 13, got.Bytes)
	assert.Len(t, got.Digest, 64)

	data, err := os.ReadFile(filepath.Join(root, "notes", "today.txt"))
	require.NoError(t, err)
	assert.Equal(t, "streamed body", string(data))

	// An existing name is kept; the new body lands beside it.
	req = httptest.NewRequest(http.MethodPut, "/api/files?path=notes/today.txt", strings.NewReader("second"))
	w = do(r, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NotEqual(t, "notes/today.txt", got.Path)
	assert.EqualValues(t, 6, got.Bytes)
}

func TestPutRejected(t *testing.T) {
	r, root := setupRouter(t)

	for _, target := range []string{"", "/", "../"} {
		req := httptest.NewRequest(http.MethodPut, "/api/files?path="+neturl.QueryEscape(target), strings.NewReader("x"))
		assert.Equal(t, http.StatusBadRequest, do(r, req).Code, target)
	}

	// Paths are confined to the storage root.
	req := httptest.NewRequest(http.MethodPut, "/api/files?path="+neturl.QueryEscape("../../escaped.txt"), strings.NewReader("x"))
	require.Equal(t, http.StatusCreated, do(r, req).Code)
	assert.FileExists(t, filepath.Join(root, "escaped.txt"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "escaped.txt"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(&errs.NameCollisionError{Parent: "/p", Name: "x"}))
	assert.Equal(t, http.StatusNotImplemented, statusFor(&errs.UnsupportedPlatformError{Platform: "plan9"}))
	assert.Equal(t, http.StatusBadRequest, statusFor(errs.InvalidPath("", "empty")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(os.ErrPermission))
}
