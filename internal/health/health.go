// Package health serves liveness, readiness and dependency status for the
// sweeper's RPC node, quote service and signer.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fd1az/token-sweeper/internal/logger"
)

const checkTimeout = 3 * time.Second

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) (bool, string)

// Result is the outcome of one probe.
type Result struct {
	Healthy   bool   `json:"healthy"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// Report is the /health body.
type Report struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Checks    map[string]Result `json:"checks"`
	CheckedAt time.Time         `json:"checkedAt"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	for _, c := range r.Checks {
		if !c.Healthy {
			return false
		}
	}
	return true
}

// Failing returns the names of failed checks, sorted.
func (r Report) Failing() []string {
	var names []string
	for name, c := range r.Checks {
		if !c.Healthy {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Server runs registered checks on demand.
type Server struct {
	addr    string
	version string
	log     logger.LoggerInterface

	mu     sync.RWMutex
	checks map[string]CheckFunc
	srv    *http.Server
}

// NewServer creates a server for port. It does not listen until Start.
func NewServer(port int, version string, log logger.LoggerInterface) *Server {
	return &Server{
		addr:    ":" + strconv.Itoa(port),
		version: version,
		log:     log,
		checks:  make(map[string]CheckFunc),
	}
}

// RegisterCheck adds or replaces a named check.
func (s *Server) RegisterCheck(name string, check CheckFunc) {
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

// Run probes every check concurrently, each bounded by its own timeout.
func (s *Server) Run(ctx context.Context) Report {
	s.mu.RLock()
	checks := make(map[string]CheckFunc, len(s.checks))
	for name, fn := range s.checks {
		checks[name] = fn
	}
	s.mu.RUnlock()

	var mu sync.Mutex
	report := Report{
		Version:   s.version,
		Checks:    make(map[string]Result, len(checks)),
		CheckedAt: time.Now().UTC(),
	}

	var g errgroup.Group
	for name, fn := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			ok, msg := fn(cctx)
			if ok && cctx.Err() != nil {
				ok, msg = false, "timed out"
			}

			mu.Lock()
			report.Checks[name] = Result{Healthy: ok, Message: msg, LatencyMS: time.Since(start).Milliseconds()}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Status = "ok"
	if !report.Healthy() {
		report.Status = "degraded"
	}
	return report
}

// Handler routes /health, /ready and /live.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		report := s.Run(r.Context())
		code := http.StatusOK
		if !report.Healthy() {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if failing := s.Run(r.Context()).Failing(); len(failing) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready: " + failing[0]))
			return
		}
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("GET /live", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("alive"))
	})
	return mux
}

// Start listens in the background. A bind failure is logged, not fatal.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.log.Warn(context.Background(), "health server disabled", "addr", s.addr, "error", err)
		return nil
	}

	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn(context.Background(), "health server stopped", "addr", s.addr, "error", err)
		}
	}()
	return nil
}

// Stop shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
