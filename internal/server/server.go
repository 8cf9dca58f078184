// Package server handles the HTTP API for the key-value store.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ASHISH26940/heliokv/internal/metrics"
	"github.com/ASHISH26940/heliokv/internal/service"
)

const maxLineBytes = 4096

// Service is what the HTTP layer needs from the request service.
// By depending on an interface, we can easily fake it in our tests.
type Service interface {
	service.KeyValueService
	Policy() service.Policy
	Len() int
}

// Server is the HTTP server for our key-value store.
type Server struct {
	svc     Service
	metrics *metrics.Metrics
	lg      *zap.Logger
	router  *mux.Router
	http    *http.Server
}

// New creates a new Server instance.
func New(svc Service, m *metrics.Metrics, lg *zap.Logger) *Server {
	s := &Server{
		svc:     svc,
		metrics: m,
		lg:      lg,
		router:  mux.NewRouter(),
	}
	s.registerRoutes()
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ServeHTTP makes our Server a standard http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// registerRoutes sets up the HTTP routing for the server.
func (s *Server) registerRoutes() {
	s.router.Use(s.recoveryMiddleware, s.loggingMiddleware)

	s.router.HandleFunc("/update", s.handleUpdate).Methods(http.MethodPost)
	s.router.HandleFunc("/read", s.handleRead).Methods(http.MethodGet)
	s.router.HandleFunc("/request", s.handleRequest).Methods(http.MethodPost)

	kv := s.router.PathPrefix("/kv").Subrouter()
	kv.HandleFunc("/{key}", s.handleGet).Methods(http.MethodGet)
	kv.HandleFunc("/{key}", s.handlePut).Methods(http.MethodPut, http.MethodPost)
	kv.HandleFunc("/{key}", s.handleDelete).Methods(http.MethodDelete)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
}

// Start listens on addr and serves until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.lg.Info("serving HTTP", zap.String("addr", lis.Addr().String()))
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve HTTP")
	}
}

// Stop gracefully shuts the server down, waiting up to five seconds for
// in-flight requests.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(s.http.Shutdown(ctx), "shutdown HTTP")
}

// handleUpdate runs one bump-and-restore cycle.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Update(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRead returns the counter as JSON.
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Read()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"counter": v})
}

// handleRequest executes the raw request line in the body.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	body, ok := readLine(w, r)
	if !ok {
		return
	}
	s.writeLine(w, s.svc.HandleRequest(body))
}

// readLine reads at most maxLineBytes of body. Longer bodies get 413 rather
// than being truncated into a different request.
func readLine(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLineBytes+1))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return "", false
	}
	if len(body) > maxLineBytes {
		http.Error(w, "Request line too long", http.StatusRequestEntityTooLarge)
		return "", false
	}
	return string(body), true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	s.writeLine(w, s.svc.HandleRequest("get "+key))
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	body, ok := readLine(w, r)
	if !ok {
		return
	}
	s.writeLine(w, s.svc.HandleRequest("put "+key+" "+strings.TrimSpace(body)))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	s.writeLine(w, s.svc.HandleRequest("delete "+key))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"mode":   s.svc.Policy().String(),
		"keys":   s.svc.Len(),
	})
}

// pathKey extracts the {key} variable. Keys are single protocol tokens, so
// whitespace is rejected.
func pathKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := mux.Vars(r)["key"]
	if key == "" || strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		http.Error(w, "Key is missing or contains whitespace", http.StatusBadRequest)
		return "", false
	}
	return key, true
}

func (s *Server) writeLine(w http.ResponseWriter, line string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		s.lg.Debug("failed to write response", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
