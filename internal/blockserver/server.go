// Package blockserver exposes a run's block registry over HTTP on a Unix socket
// so that subprocess interpreters can read and write blocks.
//
// A server lives for a single run. The dispatcher starts it the first time a
// block needs it and closes it when the run ends.
package blockserver

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/logfields"
	"git.home.luguber.info/inful/mdexec/internal/registry"
)

const socketName = "mdexec.sock"

// Server serves one registry.
type Server struct {
	reg          *registry.Registry
	logger       *slog.Logger
	errorAdapter *errors.HTTPErrorAdapter

	// mu serialises requests against the registry.
	mu sync.Mutex

	srv  *http.Server
	dir  string
	path string
}

// New returns a server for reg. It does not listen until Start.
func New(reg *registry.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		reg:          reg,
		logger:       logger,
		errorAdapter: errors.NewHTTPErrorAdapter(logger),
	}
}

// Handler returns the HTTP handler with logging and panic recovery applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /blocks", s.handleQuery)
	mux.HandleFunc("GET /blocks/{id}", s.handleGet)
	mux.HandleFunc("PUT /blocks/{id}", s.handleSet)
	mux.HandleFunc("POST /tables/format", s.handleFormat)
	mux.HandleFunc("POST /tables/parse", s.handleParse)
	mux.HandleFunc("POST /tables/build", s.handleBuild)
	mux.HandleFunc("POST /tables/csv", s.handleCSV)
	return s.logging(s.recovery(mux))
}

// Start listens on a fresh socket in a private temporary directory and returns its path.
func (s *Server) Start(ctx context.Context) (string, error) {
	if s.srv != nil {
		return s.path, nil
	}

	dir, err := os.MkdirTemp("", "mdexec-")
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to create socket directory").Build()
	}
	path := filepath.Join(dir, socketName)

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", errors.WrapError(err, errors.CategoryRuntime, "failed to listen on block socket").
			WithContext("path", path).
			Build()
	}

	s.dir, s.path = dir, path
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Block server error", logfields.Path(path), logfields.Error(err))
		}
	}()

	s.logger.Debug("Block server started", logfields.Path(path))
	return path, nil
}

// Path returns the socket path, or "" before Start.
func (s *Server) Path() string {
	return s.path
}

// Close stops the server and removes its socket directory.
func (s *Server) Close(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	err := s.srv.Shutdown(ctx)
	if rmErr := os.RemoveAll(s.dir); rmErr != nil && err == nil {
		err = rmErr
	}
	s.srv = nil
	s.logger.Debug("Block server stopped", logfields.Path(s.path))
	return err
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Debug("Block server request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.Status(wrapped.statusCode),
			logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	})
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Block server handler panic", "panic", rec, logfields.Path(r.URL.Path))
				s.errorAdapter.WriteErrorResponse(w, r, errors.InternalError("internal server error").
					WithContext("path", r.URL.Path).
					Build())
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
