// Package server exposes a session over HTTP: a JSON API for bindings,
// tables, and the template catalog, plus a server-sent-events stream that
// pings clients after every binding change has settled in the engine.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/macrodesk-labs/macrodesk/internal/binding"
	"github.com/macrodesk-labs/macrodesk/internal/session"
	"github.com/macrodesk-labs/macrodesk/internal/sqlgen"
	"github.com/macrodesk-labs/macrodesk/internal/view"
	"github.com/macrodesk-labs/macrodesk/internal/workspace"
)

// Config holds server configuration.
type Config struct {
	Session *session.Session
	Port    int
	// DropDir, when watched, auto-loads files placed in it.
	DropDir string
	Watch   bool
	Logger  *slog.Logger
}

// Server serves one session.
type Server struct {
	sess    *session.Session
	port    int
	dropDir string
	watch   bool
	logger  *slog.Logger
	hub     *Hub

	// changes carries binding events from the subscription callback (which
	// runs under the binding table lock and must not block) to the pump.
	changes chan Event
}

// New creates a server around an open session.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		sess:    cfg.Session,
		port:    cfg.Port,
		dropDir: cfg.DropDir,
		watch:   cfg.Watch,
		logger:  logger,
		hub:     NewHub(),
		changes: make(chan Event, 64),
	}
}

// Serve starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	unsubscribe := s.subscribeBindings()
	defer unsubscribe()

	eg.Go(func() error {
		s.pump(egctx)
		return nil
	})

	if s.watch && s.dropDir != "" {
		watcher, err := workspace.NewWatcher(s.sess.Workspace, s.dropDir, s.logger)
		if err != nil {
			return err
		}
		s.logger.Info("watching drop directory", "dir", s.dropDir)
		eg.Go(func() error {
			return watcher.Run(egctx)
		})
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// subscribeBindings forwards binding changes into the pump channel. The
// callback runs while the binding table lock is held, so it only enqueues;
// a full channel drops the ping rather than blocking a bind.
func (s *Server) subscribeBindings() func() {
	return s.sess.Bindings.Subscribe(func(ev binding.Event) {
		select {
		case s.changes <- Event{Kind: ev.Kind.String(), Role: ev.Role, Table: ev.Table}:
		default:
		}
	})
}

// pump waits for each binding change to settle in the engine, then
// broadcasts it with the post-change active set.
func (s *Server) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.changes:
			s.sess.Activation.Wait()
			ev.Active = s.sess.Activation.ActiveIDs()
			s.hub.Broadcast(ev)
		}
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/roles", s.handleRoles)
		r.Get("/templates", s.handleTemplates)
		r.Get("/templates/{id}", s.handleTemplate)
		r.Post("/bind", s.handleBind)
		r.Post("/unbind", s.handleUnbind)
		r.Get("/tables", s.handleTables)
		r.Post("/tables/load", s.handleLoad)
		r.Delete("/tables/{name}", s.handleRemoveTable)
		r.Get("/events", s.handleEvents)
	})

	return r
}

type summaryResponse struct {
	view.Availability
	Active     []string `json:"active"`
	BoundRoles []string `json:"bound_roles"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, summaryResponse{
		Availability: s.sess.View.Summary(s.sess.Snapshot()),
		Active:       s.sess.Activation.ActiveIDs(),
		BoundRoles:   s.sess.Bindings.BoundRoles(),
	})
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sess.View.RoleUsages(s.sess.Snapshot()))
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	all := r.URL.Query().Get("all") == "true"
	statuses := s.sess.View.Search(q, s.sess.Snapshot(), all)
	if statuses == nil {
		statuses = []view.TemplateStatus{}
	}
	s.writeJSON(w, http.StatusOK, statuses)
}

type templateDetail struct {
	view.TemplateStatus
	Active     bool   `json:"active"`
	Invocation string `json:"invocation,omitempty"`
	Definition string `json:"definition,omitempty"`
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap := s.sess.Snapshot()

	st, ok := s.sess.View.Status(id, snap)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown template %q", id))
		return
	}

	detail := templateDetail{
		TemplateStatus: st,
		Active:         s.sess.Activation.IsActive(id),
	}
	if st.Satisfied {
		detail.Invocation = sqlgen.InvocationSQL(st.Macro)
		if def, err := sqlgen.DefinitionSQL(st.Macro, snap); err == nil {
			detail.Definition = def
		}
	}
	s.writeJSON(w, http.StatusOK, detail)
}

type bindRequest struct {
	Role  string `json:"role"`
	Table string `json:"table"`
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == "" || req.Table == "" {
		s.writeError(w, http.StatusBadRequest, "role and table are required")
		return
	}
	if !s.sess.Catalog.HasRole(req.Role) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown role %q", req.Role))
		return
	}

	// Activation settles in the background; the SSE stream reports it.
	s.sess.Bindings.Bind(req.Role, req.Table)
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"bindings": s.sess.Snapshot(),
	})
}

type unbindRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleUnbind(w http.ResponseWriter, r *http.Request) {
	var req unbindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == "" {
		s.writeError(w, http.StatusBadRequest, "role is required")
		return
	}

	unbound := s.sess.Bindings.Unbind(req.Role)
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"role":    req.Role,
		"unbound": unbound,
	})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	infos, err := s.sess.Workspace.Tables(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if infos == nil {
		infos = []workspace.TableInfo{}
	}
	s.writeJSON(w, http.StatusOK, infos)
}

type loadRequest struct {
	Path  string `json:"path"`
	Table string `json:"table,omitempty"`
	Role  string `json:"role,omitempty"`
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	res, err := s.sess.Workspace.LoadFile(r.Context(), req.Path, workspace.LoadOptions{
		Table: req.Table,
		Role:  req.Role,
	})
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRemoveTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	role, err := s.sess.Workspace.Remove(r.Context(), name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"table": name,
		"role":  role,
	})
}

// handleEvents streams binding-change notifications as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)
	s.logger.Debug("sse client connected", "client", id)

	fmt.Fprintf(w, "event: connected\ndata: %q\n\n", id)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse client disconnected", "client", id)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
