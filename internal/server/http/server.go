package httpserver

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rzbill/livesense/internal/runtime"
	"github.com/rzbill/livesense/internal/server/http/controllers"
	"github.com/rzbill/livesense/internal/ui"
	logpkg "github.com/rzbill/livesense/pkg/log"
)

// DefaultUIBase is where the dashboard is mounted unless SetUIBase says otherwise.
const DefaultUIBase = "/ui/"

type Server struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	mux    *http.ServeMux
	srv    *http.Server
	lis    net.Listener
	assets http.Handler
	uiBase string
}

// New builds the server and registers all API routes.
func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = rt.Logger()
	}
	logger = logger.WithComponent("http")
	mux := http.NewServeMux()
	s := &Server{rt: rt, logger: logger, mux: mux}
	s.srv = &http.Server{
		Handler:           cors(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logpkg.ToStdLogger(logger, logpkg.WarnLevel),
	}
	controllers.NewControllerRegistry(rt, logger).RegisterAllRoutes(mux)
	s.assets = http.FileServer(ui.FS())
	mux.HandleFunc("/", s.handleUI)
	s.SetUIBase(DefaultUIBase)
	return s
}

// SetUIBase mounts the embedded dashboard under base (e.g. "/ui/"); "/"
// redirects there. An empty base disables the UI. Call before serving.
func (s *Server) SetUIBase(base string) {
	if base != "" {
		if !strings.HasPrefix(base, "/") {
			base = "/" + base
		}
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
	}
	s.uiBase = base
}

// handleUI serves everything no API route claimed.
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	if s.uiBase == "" {
		http.NotFound(w, r)
		return
	}
	if r.URL.Path == "/" && s.uiBase != "/" {
		http.Redirect(w, r, s.uiBase, http.StatusFound)
		return
	}
	if !strings.HasPrefix(r.URL.Path, s.uiBase) {
		http.NotFound(w, r)
		return
	}
	http.StripPrefix(strings.TrimSuffix(s.uiBase, "/"), s.assets).ServeHTTP(w, r)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	s.logger.Info("http listening", logpkg.Str("addr", l.Addr().String()), logpkg.Str("ui", s.uiBase))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Addr returns the bound address once listening.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
