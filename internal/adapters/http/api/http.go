// Package api exposes the command surface over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/okian/hogu/internal/adapters/udp"
	"github.com/okian/hogu/internal/domain/eventctx"
	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/internal/domain/types"
	"github.com/okian/hogu/pkg/logger"
)

// Commands is the command surface served by the API.
type Commands interface {
	SetContext(ctx context.Context, u eventctx.Update) (eventctx.Context, error)
	Context(ctx context.Context) (eventctx.Context, error)
	ClearContext(ctx context.Context) error

	StartIngestion(ctx context.Context) error
	StopIngestion(ctx context.Context) error
	IngestionState() udp.State
	IngestionPort() int
	Status() model.StatusSnapshot

	Events(ctx context.Context, f model.EventFilter) ([]model.StoredEvent, error)
	Event(ctx context.Context, id int64) (model.StoredEvent, error)
	UpdateStatus(ctx context.Context, id int64, status protocol.Status, by, reason string) (model.StatusChange, error)
	StatusHistory(ctx context.Context, id int64) ([]model.StatusChange, error)

	Statistics(ctx context.Context, session string) ([]model.Statistic, error)
	Unknown(ctx context.Context, limit int) ([]model.UnknownRecord, error)
	AnnotateUnknown(ctx context.Context, hash, suggestedKind, notes string) error
	Rules(ctx context.Context, kind protocol.Kind, version string) ([]protocol.Rule, error)

	Archive(ctx context.Context, days int) (int64, error)
	Restore(ctx context.Context, start, end time.Time) (int64, error)
}

// Server wires HTTP routes for the command API.
type Server struct {
	cmds    Commands
	origins []string
	log     logger.Logger
}

// NewServer creates a new API server over cmds.
func NewServer(cmds Commands, opts ...Option) *Server {
	s := &Server{
		cmds:    cmds,
		origins: []string{"*"},
		log:     logger.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches /healthz and the /api routes to r. Middleware is scoped
// to these routes so other handlers on r (the websocket overlay) keep an
// unwrapped ResponseWriter.
func (s *Server) Register(r *mux.Router) {
	r.Handle("/healthz", MetricsMiddleware(HealthHandler())).Methods(http.MethodGet)

	a := r.PathPrefix("/api").Subrouter()
	a.Use(s.RecoverMiddleware, MetricsMiddleware)
	a.HandleFunc("/context", s.handleSetContext).Methods(http.MethodPut)
	a.HandleFunc("/context", s.handleGetContext).Methods(http.MethodGet)
	a.HandleFunc("/context", s.handleClearContext).Methods(http.MethodDelete)

	a.HandleFunc("/ingest/start", s.handleStartIngestion).Methods(http.MethodPost)
	a.HandleFunc("/ingest/stop", s.handleStopIngestion).Methods(http.MethodPost)
	a.HandleFunc("/ingest/state", s.handleIngestionState).Methods(http.MethodGet)
	a.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	a.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	a.HandleFunc("/events/{id:[0-9]+}", s.handleEvent).Methods(http.MethodGet)
	a.HandleFunc("/events/{id:[0-9]+}/status", s.handleUpdateStatus).Methods(http.MethodPatch)
	a.HandleFunc("/events/{id:[0-9]+}/history", s.handleStatusHistory).Methods(http.MethodGet)

	a.HandleFunc("/statistics", s.handleStatistics).Methods(http.MethodGet)
	a.HandleFunc("/unknown", s.handleUnknown).Methods(http.MethodGet)
	a.HandleFunc("/unknown/{hash}", s.handleAnnotateUnknown).Methods(http.MethodPatch)
	a.HandleFunc("/rules", s.handleRules).Methods(http.MethodGet)

	a.HandleFunc("/archive", s.handleArchive).Methods(http.MethodPost)
	a.HandleFunc("/restore", s.handleRestore).Methods(http.MethodPost)
}

// Handler returns a router with every route registered, wrapped in CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.Register(r)
	return s.CORS(r)
}

// CORS wraps h with the configured cross-origin policy.
func (s *Server) CORS(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(h)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, types.OK(data))
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), types.Fail(err))
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id", ErrBadRequest)
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, key, v)
	}
	return n, nil
}

func queryTime(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s; must be RFC3339", ErrBadRequest, key)
	}
	return t, nil
}
