package http

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/logging"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/entityfs/internal/providers/filesystem"
	"github.com/GriffinCanCode/entityfs/internal/providers/stream"
	"github.com/GriffinCanCode/entityfs/internal/providers/virtual"
	"github.com/GriffinCanCode/entityfs/internal/service/archive"
	"github.com/GriffinCanCode/entityfs/internal/service/manifest"
	"github.com/GriffinCanCode/entityfs/internal/service/persist"
	"github.com/GriffinCanCode/entityfs/internal/service/search"
	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
	"github.com/GriffinCanCode/entityfs/internal/shared/id"
	"github.com/GriffinCanCode/entityfs/internal/shared/paths"
)

// uploadField is the multipart field carrying uploaded files.
const uploadField = "files"

// Options configures Handlers.
type Options struct {
	// Fs holds the storage tree. Defaults to the OS filesystem.
	Fs afero.Fs
	// Root is the storage directory every request path is resolved against.
	Root string
	// Snapshot mounts through one concurrent walk instead of per-directory reads.
	Snapshot  bool
	Persister *persist.Persister
	// MaxImport bounds the bytes an imported archive may unpack to.
	// Zero uses archive.DefaultMaxSize.
	MaxImport int64
	Metrics   *monitoring.Metrics
	Logger    *logging.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	fs        afero.Fs
	root      string
	snapshot  bool
	persister *persist.Persister
	maxImport int64
	metrics   *monitoring.Metrics
	tracker   *HandlerMetrics
	logger    *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(opts Options) *Handlers {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	logger := logging.OrNop(opts.Logger)
	persister := opts.Persister
	if persister == nil {
		persister = persist.New(fsys)
		persister.Logger = logger
		persister.Metrics = opts.Metrics
	}

	return &Handlers{
		fs:        fsys,
		root:      filepath.Clean(opts.Root),
		snapshot:  opts.Snapshot,
		persister: persister,
		maxImport: opts.MaxImport,
		metrics:   opts.Metrics,
		tracker:   NewHandlerMetrics(opts.Metrics),
		logger:    logger,
	}
}

// Register mounts the API routes on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/tree", h.Tree)
	api.GET("/search", h.Search)
	api.GET("/archive", h.Archive)
	api.POST("/upload", h.Upload)
	api.POST("/import", h.Import)
	api.PUT("/files", h.Put)
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"storage": h.root,
		"metrics": h.metrics.GetSnapshot(),
	})
}

// resolve maps a request path onto the storage root. The result never leaves the root.
func (h *Handlers) resolve(rel string) string {
	return filepath.Join(h.root, filepath.Clean("/"+rel))
}

func (h *Handlers) mount(c *gin.Context) (*entity.Folder, error) {
	m := &filesystem.Mounter{
		Fs:       h.fs,
		Snapshot: h.snapshot,
		Logger:   h.logger,
		Metrics:  h.metrics,
	}
	return m.Mount(c.Request.Context(), h.resolve(c.Query("path")))
}

// Tree describes the folder at ?path= as a manifest in ?format= (json, yaml, toml).
func (h *Handlers) Tree(c *gin.Context) {
	done := h.tracker.Track(serviceTree, "describe")

	format, err := manifest.ParseFormat(c.Query("format"))
	if err != nil {
		err = fmt.Errorf("%w: %v", errBadRequest, err)
		done(err)
		h.fail(c, err)
		return
	}

	root, err := h.mount(c)
	if err != nil {
		done(err)
		h.fail(c, err)
		return
	}

	node, err := manifest.Build(c.Request.Context(), root)
	if err == nil {
		var data []byte
		data, err = manifest.Encode(node, format)
		if err == nil {
			done(nil)
			c.Data(http.StatusOK, format.ContentType(), data)
			return
		}
	}
	done(err)
	h.fail(c, err)
}

// SearchResult is one search hit.
type SearchResult struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
	Size int64  `json:"size,omitempty"`
}

// Search finds entities below ?path= matching the glob ?pattern=, or text files whose
// lines contain ?query=. The file filters ?ext= (comma separated), ?min_size=, ?max_size=
// and ?since= (RFC 3339) narrow a pattern search to files, or list matching files alone.
func (h *Handlers) Search(c *gin.Context) {
	done := h.tracker.Track(serviceSearch, "find")
	pattern, query := c.Query("pattern"), c.Query("query")

	filters, err := parseFilters(c)
	switch {
	case err != nil:
	case pattern == "" && query == "" && !filters.set():
		err = fmt.Errorf("%w: pattern, query or a file filter required", errBadRequest)
	case query != "" && (pattern != "" || filters.set()):
		err = fmt.Errorf("%w: query cannot be combined with pattern or file filters", errBadRequest)
	}
	if err != nil {
		done(err)
		h.fail(c, err)
		return
	}

	root, err := h.mount(c)
	if err != nil {
		done(err)
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()

	if query != "" {
		matches, err := search.Content(ctx, root, query)
		done(err)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"query": query, "results": matches, "count": len(matches)})
		return
	}

	var matches []search.Match
	if pattern != "" {
		if matches, err = search.Glob(root, pattern); err != nil {
			done(err)
			h.fail(c, err)
			return
		}
	}
	if filters.set() {
		if matches, err = filters.narrow(ctx, root, matches, pattern != ""); err != nil {
			done(err)
			h.fail(c, err)
			return
		}
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		r := SearchResult{Path: m.Path, Kind: m.Entity.Kind().String()}
		if f, ok := m.Entity.(*entity.File); ok {
			if r.Size, err = f.Length(ctx); err != nil {
				done(err)
				h.fail(c, err)
				return
			}
		}
		results = append(results, r)
	}
	done(nil)
	c.JSON(http.StatusOK, gin.H{"pattern": pattern, "results": results, "count": len(results)})
}

// Archive streams the folder at ?path= as a tar archive, compressed per ?compression=.
func (h *Handlers) Archive(c *gin.Context) {
	done := h.tracker.Track(serviceArchive, "write")

	compression, err := archive.ParseCompression(c.Query("compression"))
	if err != nil {
		err = fmt.Errorf("%w: %v", errBadRequest, err)
		done(err)
		h.fail(c, err)
		return
	}

	root, err := h.mount(c)
	if err != nil {
		done(err)
		h.fail(c, err)
		return
	}

	c.Header("Content-Type", compression.ContentType())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", root.Name()+compression.Extension()))
	c.Status(http.StatusOK)

	stats, err := archive.Write(c.Request.Context(), root, c.Writer, compression)
	done(err)
	if err != nil {
		// Headers are already sent; the truncated body is all the client gets.
		h.logger.Warn("archive aborted", zap.String("root", root.Path()), zap.Error(err))
		return
	}
	h.logger.Debug("archive sent",
		zap.String("root", root.Path()),
		zap.Int("files", stats.Files),
		zap.Int64("bytes", stats.Bytes),
	)
}

// UploadedFile describes one persisted file.
type UploadedFile struct {
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	Digest string `json:"digest"`
}

// Upload accepts a browser directory upload in the "files" field and persists it into
// the storage folder ?dest=. File names carry the path below the picked folder; with
// ?root_included=false they are relative to the upload root instead, named by ?name=.
func (h *Handlers) Upload(c *gin.Context) {
	done := h.tracker.Track(serviceUpload, "persist")

	opts, err := treeOptions(c)
	if err != nil {
		done(err)
		h.fail(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		err = &errs.ActionCanceledError{Action: "upload"}
		done(err)
		h.fail(c, err)
		return
	}
	defer form.RemoveAll()

	entries, err := virtual.FromMultipart(form, uploadField)
	if err != nil {
		done(err)
		h.fail(c, err)
		return
	}
	h.store(c, done, entries, opts)
}

// Import unpacks a tar archive sent as the request body, compressed per ?compression=,
// and persists its files into the storage folder ?dest= the way Upload does.
func (h *Handlers) Import(c *gin.Context) {
	done := h.tracker.Track(serviceUpload, "import")

	compression, err := archive.ParseCompression(c.Query("compression"))
	if err != nil {
		err = fmt.Errorf("%w: %v", errBadRequest, err)
	}
	var opts virtual.Options
	if err == nil {
		opts, err = treeOptions(c)
	}
	if err != nil {
		done(err)
		h.fail(c, err)
		return
	}

	entries, err := archive.Read(c.Request.Body, compression, h.maxImport)
	if err == nil && len(entries) == 0 {
		err = &errs.ActionCanceledError{Action: "import empty archive"}
	}
	if err != nil {
		// A malformed archive is the client's fault.
		if statusFor(err) >= http.StatusInternalServerError {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		done(err)
		h.fail(c, err)
		return
	}
	h.store(c, done, entries, opts)
}

// treeOptions reads ?root_included= (default true) and ?name=.
func treeOptions(c *gin.Context) (virtual.Options, error) {
	opts := virtual.Options{RootIncluded: true, RootName: c.Query("name")}
	if v := c.Query("root_included"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("%w: root_included: %v", errBadRequest, err)
		}
		opts.RootIncluded = b
	}
	return opts, nil
}

// store builds a tree from entries and persists it below ?dest=.
func (h *Handlers) store(c *gin.Context, done func(error), entries []virtual.Entry, opts virtual.Options) {
	builder := &virtual.Builder{Logger: h.logger, Metrics: h.metrics}
	tree, err := builder.Build(entries, opts)
	if err != nil {
		done(err)
		h.fail(c, err)
		return
	}

	dest := h.resolve(c.Query("dest"))
	if err := h.fs.MkdirAll(dest, 0o755); err != nil {
		done(err)
		h.fail(c, err)
		return
	}

	uploadID := id.NewUploadID()
	h.logger.Info("persisting upload",
		zap.String("upload_id", uploadID.String()),
		zap.String("root", tree.Name()),
		zap.Int("files", len(entries)),
		tracing.Field(c.Request.Context()),
	)

	res, err := h.persister.PersistTree(c.Request.Context(), tree, dest, nil)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}

	files := make([]UploadedFile, 0, len(res.Files))
	for _, f := range res.Files {
		files = append(files, UploadedFile{
			Path:   h.relative(f.Path),
			Bytes:  f.Written,
			Digest: f.Digest,
		})
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":    uploadID,
		"root":  h.relative(res.Root),
		"files": files,
		"bytes": res.Written(),
	})
}

// Put streams the request body into the storage file ?path=. A taken name gets a
// numbered variant. The body is read once, so the Content-Type header stands in for
// sniffing and defaults to application/octet-stream.
func (h *Handlers) Put(c *gin.Context) {
	done := h.tracker.Track(serviceUpload, "stream")

	dest := h.resolve(c.Query("path"))
	name, err := paths.Basename(h.relative(dest))
	if err == nil {
		err = paths.CheckName(name)
	}
	if err != nil {
		done(err)
		h.fail(c, err)
		return
	}

	contentType := c.ContentType()
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx := c.Request.Context()
	file, err := stream.NewFile(ctx, stream.Info{
		Name:        name,
		Path:        h.relative(dest),
		ContentType: contentType,
		ModTime:     time.Now(),
		Length:      c.Request.ContentLength,
	}, stream.Once(c.Request.Body))
	if err == nil {
		err = h.fs.MkdirAll(filepath.Dir(dest), 0o755)
	}
	if err != nil {
		done(err)
		h.fail(c, err)
		return
	}

	res, err := h.persister.Persist(ctx, file, dest, nil)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, UploadedFile{
		Path:   h.relative(res.Path),
		Bytes:  res.Written,
		Digest: res.Digest,
	})
}

// relative reports a storage path relative to the storage root.
func (h *Handlers) relative(p string) string {
	rel, err := filepath.Rel(h.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}
