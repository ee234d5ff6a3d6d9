package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pluginstore.shikanime.studio/internal/config"
	"pluginstore.shikanime.studio/internal/encoding"
	"pluginstore.shikanime.studio/internal/install"
	"pluginstore.shikanime.studio/internal/plugin"
	"pluginstore.shikanime.studio/internal/sorting"
	"pluginstore.shikanime.studio/internal/store"
)

// Server exposes the plugin store as a JSON API.
type Server struct {
	store *store.Store
	mux   *stdhttp.ServeMux
}

// NewServer mounts the plugin store routes.
func NewServer(s *store.Store) *Server {
	srv := &Server{store: s, mux: stdhttp.NewServeMux()}
	srv.mux.HandleFunc("GET /healthz", srv.handleHealth)
	srv.mux.HandleFunc("GET /v1/plugins", srv.handleListPlugins)
	srv.mux.HandleFunc("GET /v1/plugins/{owner}/{name}/readme", srv.handleReadme)
	srv.mux.HandleFunc("GET /v1/plugins/{owner}/{name}/install/{manager}", srv.handleInstall)
	return srv
}

// NewServerForConfig builds a Store from cfg and returns a configured Server.
func NewServerForConfig(cfg *config.Config) (*Server, error) {
	s, err := store.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewServer(s), nil
}

// Handler returns the traced root handler.
func (s *Server) Handler() stdhttp.Handler {
	return otelhttp.NewHandler(s.mux, "http.server")
}

// Close waits for background cache writes.
func (s *Server) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &stdhttp.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr)
		errCh <- hs.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
	writeJSON(w, stdhttp.StatusOK, map[string]string{"status": "ok", "service": "pluginstore"})
}

func (s *Server) handleListPlugins(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	tracer := otel.Tracer("pluginstore/http")
	ctx, span := tracer.Start(r.Context(), "Server.ListPlugins")
	defer span.End()

	q := r.URL.Query()
	key, err := sorting.ParseKey(q.Get("sort"))
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			s.writeError(ctx, w, plugin.Validationf("invalid limit %q", v))
			return
		}
	}
	var installed plugin.Installed
	if v := q.Get("installed"); v != "" {
		installed = plugin.NewInstalled(strings.Split(v, ",")...)
	}
	res, err := s.store.Search(ctx, store.SearchRequest{
		Query:     q.Get("q"),
		Sort:      key,
		Installed: installed,
		Limit:     limit,
		Force:     parseBool(q.Get("refresh")),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.writeError(ctx, w, err)
		return
	}
	span.SetAttributes(attribute.Int("plugins.total", res.Total))
	writeJSON(w, stdhttp.StatusOK, res)
}

type readmeResponse struct {
	FullName string             `json:"full_name"`
	Lines    []string           `json:"lines"`
	Outline  []encoding.Heading `json:"outline"`
}

func (s *Server) handleReadme(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	tracer := otel.Tracer("pluginstore/http")
	ctx, span := tracer.Start(r.Context(), "Server.Readme")
	defer span.End()

	fullName := r.PathValue("owner") + "/" + r.PathValue("name")
	span.SetAttributes(attribute.String("readme.repository", fullName))
	lines, err := s.store.Readme(ctx, fullName, parseBool(r.URL.Query().Get("refresh")))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.writeError(ctx, w, err)
		return
	}
	outline, err := encoding.Outline(lines)
	if err != nil {
		slog.WarnContext(ctx, "Failed to outline README", "repository", fullName, "error", err)
	}
	writeJSON(w, stdhttp.StatusOK, readmeResponse{FullName: fullName, Lines: lines, Outline: outline})
}

func (s *Server) handleInstall(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	tracer := otel.Tracer("pluginstore/http")
	ctx, span := tracer.Start(r.Context(), "Server.Install")
	defer span.End()

	manager, err := plugin.ParseManager(r.PathValue("manager"))
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	fullName := r.PathValue("owner") + "/" + r.PathValue("name")
	snippet, err := s.store.Install(ctx, fullName, manager)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.writeError(ctx, w, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, snippet)
}

// StatusOf maps an error to the HTTP status reported to clients.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, plugin.ErrValidation):
		return stdhttp.StatusBadRequest
	case errors.Is(err, plugin.ErrNotFound), errors.Is(err, install.ErrUnavailable):
		return stdhttp.StatusNotFound
	case errors.Is(err, plugin.ErrProtocol), errors.Is(err, plugin.ErrTransport), errors.Is(err, plugin.ErrParse):
		return stdhttp.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return stdhttp.StatusGatewayTimeout
	default:
		return stdhttp.StatusInternalServerError
	}
}

func (s *Server) writeError(ctx context.Context, w stdhttp.ResponseWriter, err error) {
	status := StatusOf(err)
	if status >= stdhttp.StatusInternalServerError {
		slog.ErrorContext(ctx, "Request failed", "status", status, "error", err)
	} else {
		slog.DebugContext(ctx, "Request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
