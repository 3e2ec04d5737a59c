package httpserver

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dirshare/internal/byterange"
	"dirshare/internal/config"
	"dirshare/internal/delivery"
	"dirshare/internal/filecache"
	"dirshare/internal/fsutil"
	"dirshare/internal/gate"
	"dirshare/internal/listing"
	"dirshare/internal/logging"
	"dirshare/internal/metrics"
	"dirshare/internal/mimetype"
)

type Options struct {
	Config config.Config
	// FS defaults to the host filesystem.
	FS fsutil.FileSystem
}

type Server struct {
	cfg      config.Config
	fs       fsutil.FileSystem
	resolver *fsutil.Resolver
	deliver  *delivery.Deliverer
	thumbs   *filecache.Cache
	gate     *gate.Gate
	page     *template.Template
}

//go:embed web/listing.html
var embeddedWeb embed.FS

func New(opts Options) (*Server, error) {
	cfg := opts.Config
	fsys := opts.FS
	if fsys == nil {
		fsys = fsutil.OS{}
	}
	resolver, err := fsutil.NewResolver(fsys, cfg.Root)
	if err != nil {
		return nil, err
	}
	files, err := filecache.New("files", cfg.CacheEntries)
	if err != nil {
		return nil, err
	}
	d, err := delivery.New(delivery.Options{
		FS:           fsys,
		Cache:        files,
		MaxFileBytes: cfg.CacheMaxFileBytes,
		ChunkSize:    cfg.ChunkSize,
	})
	if err != nil {
		return nil, err
	}
	g, err := gate.New(cfg.MaxInFlight)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		fs:       fsys,
		resolver: resolver,
		deliver:  d,
		gate:     g,
	}
	if cfg.ThumbnailsEnabled() {
		if s.thumbs, err = filecache.New("thumbs", cfg.ThumbEntries); err != nil {
			return nil, err
		}
	}
	s.page, err = template.ParseFS(embeddedWeb, "web/listing.html")
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Root is the canonical directory being served.
func (s *Server) Root() string { return s.resolver.Root() }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// health and metrics bypass the gate
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	if s.cfg.MetricsEnabled() {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	mux.Handle("GET /{$}", s.gate.Middleware(http.HandlerFunc(s.handleRoot)))
	mux.Handle("GET /files/{path...}", s.gate.Middleware(http.HandlerFunc(s.handleFiles)))
	if s.thumbs != nil {
		mux.Handle("GET /thumb/{path...}", s.gate.Middleware(http.HandlerFunc(s.handleThumb)))
	}
	if s.cfg.WebDAV {
		mux.Handle("/dav/", s.gate.Middleware(s.davHandler()))
	}

	return logging.Middleware(metrics.Middleware(mux))
}

// --- handlers ---

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.servePath(w, r, "")
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	s.servePath(w, r, r.PathValue("path"))
}

func (s *Server) servePath(w http.ResponseWriter, r *http.Request, p string) {
	w.Header().Set("Accept-Ranges", "bytes")
	res, err := s.resolver.Resolve(p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.Info.IsDir() {
		s.serveListing(w, r, res)
		return
	}
	s.serveFile(w, r, res)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, res fsutil.Resolved) {
	key := "/files/" + res.Rel
	out, err := s.deliver.Serve(w, r, res.Abs, key)
	log := logging.WithContext(r.Context())
	switch {
	case err == nil:
		log.Debug("file served",
			logging.String("path", key),
			logging.String("strategy", out.Strategy.String()),
			logging.Int64("bytes", out.Bytes),
		)
	case out.Status == 0:
		s.fail(w, r, err)
	case errors.Is(err, context.Canceled):
		log.Debug("client went away", logging.String("path", key), logging.Int64("bytes", out.Bytes))
	default:
		// headers are gone; all we can do is drop the connection
		log.Error("stream aborted",
			logging.String("path", key),
			logging.String("strategy", out.Strategy.String()),
			logging.Int64("bytes", out.Bytes),
			logging.Err(err),
		)
	}
}

type crumb struct {
	Name string
	Href string
}

type row struct {
	Name  string
	Href  string
	Icon  string
	Size  string
	Thumb string
}

type listingPage struct {
	Title   string
	Crumbs  []crumb
	Folders []row
	Files   []row
}

func (s *Server) serveListing(w http.ResponseWriter, r *http.Request, res fsutil.Resolved) {
	folders, files, err := listing.List(s.fs, res.Abs, res.Rel)
	metrics.RecordListing(err == nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page := listingPage{
		Title:   "/" + res.Rel,
		Crumbs:  breadcrumbs(res.Rel),
		Folders: make([]row, 0, len(folders)),
		Files:   make([]row, 0, len(files)),
	}
	for _, e := range folders {
		page.Folders = append(page.Folders, row{
			Name: e.Name,
			Href: "/files/" + escapePath(e.Path),
			Icon: mimetype.Folder.Icon(),
		})
	}
	for _, e := range files {
		it := row{
			Name: e.Name,
			Href: "/files/" + escapePath(e.Path),
			Icon: mimetype.CategoryOf(e.Name).Icon(),
			Size: listing.FormatSize(e.Size),
		}
		if s.thumbs != nil && mimetype.IsThumbnailable(e.Name) {
			it.Thumb = "/thumb/" + escapePath(e.Path)
		}
		page.Files = append(page.Files, it)
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, page); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolver.Resolve(r.PathValue("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.Info.IsDir() || !mimetype.IsThumbnailable(res.Rel) {
		http.NotFound(w, r)
		return
	}

	key := "/thumb/" + res.Rel
	b, ok := s.thumbs.Get(key)
	if ok {
		metrics.RecordThumbnail("cache")
	} else {
		b, err = makeThumb(s.fs, res.Abs, thumbMaxEdge)
		if err != nil {
			metrics.RecordThumbnail("error")
			logging.WithContext(r.Context()).Debug("thumbnail failed", logging.String("path", key), logging.Err(err))
			http.NotFound(w, r)
			return
		}
		s.thumbs.Put(key, b)
		metrics.RecordThumbnail("render")
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(b)
}

// fail writes a short plain-text error. Nothing about the host filesystem
// leaks into the body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	log := logging.WithContext(r.Context())
	if code >= http.StatusInternalServerError {
		log.Error("request failed", logging.String("path", r.URL.Path), logging.Err(err))
	} else {
		log.Debug("request rejected", logging.String("path", r.URL.Path), logging.Err(err))
	}
	http.Error(w, http.StatusText(code), code)
}

func statusFor(err error) int {
	var invalid *byterange.InvalidRangeError
	switch {
	case errors.Is(err, fsutil.ErrTraversal):
		return http.StatusBadRequest
	case errors.Is(err, listing.ErrReadDir):
		return http.StatusInternalServerError
	case errors.Is(err, fsutil.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, fsutil.ErrPermission), errors.Is(err, fs.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, byterange.ErrUnsatisfiable):
		return http.StatusRequestedRangeNotSatisfiable
	case errors.Is(err, byterange.ErrUnsupportedUnit),
		errors.Is(err, byterange.ErrMalformed),
		errors.As(err, &invalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// --- helpers ---

const crumbMax = 10

// breadcrumbs returns one link per segment of rel. Every segment but the
// last is shortened to crumbMax characters.
func breadcrumbs(rel string) []crumb {
	if rel == "" {
		return nil
	}
	parts := strings.Split(rel, "/")
	out := make([]crumb, 0, len(parts))
	for i, p := range parts {
		name := p
		if i < len(parts)-1 {
			name = shorten(p, crumbMax)
		}
		out = append(out, crumb{
			Name: name,
			Href: "/files/" + escapePath(strings.Join(parts[:i+1], "/")),
		})
	}
	return out
}

func shorten(s string, max int) string {
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	return string(rs[:max]) + "..."
}

func escapePath(rel string) string {
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
