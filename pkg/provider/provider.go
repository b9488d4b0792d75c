// Package provider serves a local bundle directory over the update provider
// download protocol, so engines without internet access can fetch modules
// from a mirror.
//
//	GET /rest/update/provider/download/{name}/{version}/   jar, or 302 to /files/{file}
//	GET /rest/update/provider/list                          JSON listing
//	GET /files/{file}                                       raw jar
//
// A version of "latest" selects the newest local jar.
package provider

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/store"
	"github.com/matzehuels/cfboot/pkg/version"
)

// Server serves the modules of a store.
type Server struct {
	store    *store.Store
	logger   *log.Logger
	redirect bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRedirects answers download requests that allow redirects with a 302 to
// the file route instead of the jar itself.
func WithRedirects(enabled bool) Option {
	return func(s *Server) { s.redirect = enabled }
}

// New returns a Server over st.
func New(st *store.Store, opts ...Option) *Server {
	s := &Server{store: st}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	return s
}

// Entry is one row of the listing.
type Entry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	File    string `json:"file"`
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/rest/update/provider", func(r chi.Router) {
		r.Get("/download/{name}/{version}", s.download)
		r.Get("/download/{name}/{version}/", s.download)
		r.Get("/list", s.list)
	})
	r.Get("/files/{file}", s.file)
	return r
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ver := chi.URLParam(r, "version")

	var want *version.Version
	if ver != "latest" {
		v, err := version.ParseStrict(ver)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		want = &v
	}

	d := s.store.Find(r.Context(), name, want)
	if d == nil {
		writeError(w, http.StatusNotFound, "no module ["+name+":"+ver+"] available")
		return
	}
	if id := r.URL.Query().Get("id"); id != "" {
		s.logger.Debug("download requested", "module", d.Key(), "server", id)
	}

	if s.redirect && r.URL.Query().Get("allowRedirect") == "true" {
		http.Redirect(w, r, "/files/"+url.PathEscape(filepath.Base(d.Path)), http.StatusFound)
		return
	}
	serveJar(w, r, d.Path)
}

func (s *Server) file(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") || !strings.HasSuffix(strings.ToLower(name), ".jar") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	path := filepath.Join(s.store.Dir(), name)
	if _, err := bundle.ReadManifestFile(path); err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	serveJar(w, r, path)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	var out []Entry
	for _, d := range s.store.List(r.Context()) {
		out = append(out, Entry{Name: d.SymbolicName, Version: d.Version.String(), File: filepath.Base(d.Path)})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
	})
}

func serveJar(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Type", "application/java-archive")
	http.ServeFile(w, r, path)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
