// Package httpapi serves the todo ledger over HTTP/JSON.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Makepad-fr/tada/internal/auth"
	"github.com/Makepad-fr/tada/internal/metrics"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todo"
)

// maxRequestBodySize limits request bodies; descriptions are small.
const maxRequestBodySize = 64 << 10

// Prefix is the path all item routes hang off.
const Prefix = "/api/todolist"

// ItemRequest is the body of create and update calls. Empty fields are
// treated as absent.
type ItemRequest struct {
	Description string `json:"description"`
	Status      string `json:"status"`
}

// ErrorResponse is the body of every non-2xx reply.
// Kind is the error kind as reported by todo.Outcome.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Options configures a Server.
type Options struct {
	// Token, when set, is required as a bearer token on /api/ routes.
	Token    string
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	Gatherer prometheus.Gatherer
}

type Server struct {
	ledger  todo.Ledger
	logger  *slog.Logger
	metrics *metrics.Recorder
	handler http.Handler
}

// New builds the HTTP handler tree over ledger.
func New(ledger todo.Ledger, opts Options) *Server {
	s := &Server{ledger: ledger, logger: opts.Logger, metrics: opts.Metrics}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	api := http.NewServeMux()
	api.HandleFunc("GET "+Prefix, s.handleList)
	api.HandleFunc("POST "+Prefix, s.handleCreate)
	api.HandleFunc("GET "+Prefix+"/{id}", s.handleFind)
	api.HandleFunc("PUT "+Prefix+"/{id}", s.handleUpdate)
	api.HandleFunc("DELETE "+Prefix+"/{id}", s.handleDelete)
	api.HandleFunc("GET "+Prefix+"/{id}/history", s.handleHistory)
	api.HandleFunc("GET /api/statuses", s.handleStatuses)

	mux := http.NewServeMux()
	mux.Handle("/api/", auth.RequireToken(opts.Token, api))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	s.handler = s.instrument(mux)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ----------------------------------------------------------------------------
// GET /api/todolist
// ----------------------------------------------------------------------------

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := s.ledger.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// ----------------------------------------------------------------------------
// POST /api/todolist
// ----------------------------------------------------------------------------

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.ledger.Create(r.Context(), req.Description, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/%d", Prefix, view.ID))
	writeJSON(w, http.StatusCreated, view)
}

// ----------------------------------------------------------------------------
// GET /api/todolist/{id}
// ----------------------------------------------------------------------------

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.ledger.Find(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ----------------------------------------------------------------------------
// PUT /api/todolist/{id}
// ----------------------------------------------------------------------------

// handleUpdate applies description and/or status changes; only those two
// fields of the item can be updated.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req ItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.ledger.Update(r.Context(), id, req.Description, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ----------------------------------------------------------------------------
// DELETE /api/todolist/{id}
// ----------------------------------------------------------------------------

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ledger.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----------------------------------------------------------------------------
// GET /api/todolist/{id}/history
// ----------------------------------------------------------------------------

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.ledger.History(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ----------------------------------------------------------------------------
// GET /api/statuses
// ----------------------------------------------------------------------------

func (s *Server) handleStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Statuses)
}

// ----------------------------------------------------------------------------
// helpers
// ----------------------------------------------------------------------------

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad item id %q", model.ErrInvalidArgument, raw)
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", model.ErrInvalidArgument, err)
	}
	return nil
}

// StatusCode maps ledger error kinds onto HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidArgument), errors.Is(err, model.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrItemNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("request_id", requestID(r)),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		msg = http.StatusText(code)
	}
	writeJSON(w, code, ErrorResponse{Error: msg, Kind: todo.Outcome(err)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ----------------------------------------------------------------------------
// middleware
// ----------------------------------------------------------------------------

const requestIDHeader = "X-Request-ID"

func requestID(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument tags each request with an id, logs it and records metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if requestID(r) == "" {
			r.Header.Set(requestIDHeader, uuid.NewString())
		}
		w.Header().Set(requestIDHeader, requestID(r))

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		d := time.Since(start)
		s.metrics.HTTPRequest(r.Method, route(r.URL.Path), rec.code, d)
		s.logger.Info("http request",
			slog.String("request_id", requestID(r)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.code),
			slog.Duration("duration", d))
	})
}

// route collapses item ids so metric labels stay bounded.
func route(path string) string {
	switch path {
	case Prefix, "/api/statuses", "/healthz", "/metrics":
		return path
	}
	if !strings.HasPrefix(path, Prefix+"/") {
		return "other"
	}
	rest := strings.TrimPrefix(path, Prefix+"/")
	if strings.HasSuffix(rest, "/history") {
		return Prefix + "/{id}/history"
	}
	return Prefix + "/{id}"
}
