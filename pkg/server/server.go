// Package server exposes the state of a running daemon over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/valve"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/backupapi"
	"github.com/ciscodnac/dnac-backup/pkg/scheduler"
)

const shutdownTimeout = 20 * time.Second

// StatusSource reports the scheduler state.
type StatusSource interface {
	Status() scheduler.Status
}

// BackupLister lists the appliance backups.
type BackupLister interface {
	ListBackups(ctx context.Context) ([]backupapi.Backup, error)
}

// Server is a read only HTTP view of a daemon.
type Server struct {
	Addr        string
	router      *chi.Mux
	useUnixSock bool

	job     string
	status  StatusSource
	backups BackupLister

	logger *zap.Logger
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Job string `json:"job"`
	scheduler.Status
}

// New creates new server instance.
func New(opts ...Option) (*Server, error) {
	s := &Server{}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.Addr == "" {
		return nil, errors.New("server: empty listening address")
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	s.router = chi.NewRouter()
	s.setupRoutes()
	s.useUnixSock = strings.HasPrefix(s.Addr, "unix://")
	s.Addr = strings.TrimPrefix(s.Addr, "unix://")

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.Healthz)
	s.router.Get("/status", s.Status)
	s.router.Get("/backups", s.ListBackups)
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not armed")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Job: s.job, Status: s.status.Status()})
}

// ListBackups proxies the appliance backup list, newest first. Shutdown waits
// for calls in flight.
func (s *Server) ListBackups(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		writeError(w, http.StatusNotFound, "backup listing disabled")
		return
	}
	lever := valve.Lever(r.Context())
	if err := lever.Open(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	defer lever.Close()

	backups, err := s.backups.ListBackups(r.Context())
	if err != nil {
		s.logger.Error("list backups", zap.Error(err))
		code := http.StatusBadGateway
		if errors.Is(err, backupapi.ErrUnauthorized) {
			code = http.StatusUnauthorized
		}
		writeError(w, code, err.Error())
		return
	}
	backupapi.SortNewestFirst(backups)
	writeJSON(w, http.StatusOK, backups)
}

// Run serves until ctx is done, then shuts down gracefully. It returns
// http.ErrServerClosed after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	// Graceful valve shut-off package to manage code preemption and shutdown signaling.
	valv := valve.New()
	baseCtx := valv.Context()

	srv := http.Server{Handler: chi.ServerBaseContext(baseCtx, s.router)}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down status server")

		if err := valv.Shutdown(shutdownTimeout); err != nil {
			s.logger.Error("failed to shutdown valve", zap.Error(err))
		}

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error("failed to shutdown http server", zap.Error(err))
		}
	}()

	var (
		ln  net.Listener
		err error
	)
	if s.useUnixSock {
		ln, err = net.Listen("unix", s.Addr)
	} else {
		ln, err = net.Listen("tcp", s.Addr)
	}
	if err != nil {
		return err
	}
	s.logger.Info("status server listening", zap.String("addr", ln.Addr().String()))
	return srv.Serve(ln)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
