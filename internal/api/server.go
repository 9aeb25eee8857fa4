// ABOUTME: HTTP server for the tenantline REST API
// ABOUTME: Route registration, auth wiring, error mapping and graceful shutdown

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/IRakow/tenantline/internal/auth"
	"github.com/IRakow/tenantline/internal/messaging"
	"github.com/IRakow/tenantline/internal/store"
)

// Server exposes the messaging service over HTTP.
type Server struct {
	addr      string
	store     store.Store
	messaging *messaging.Service
	verifier  *auth.JWTVerifier
	tokenTTL  time.Duration
	logger    *slog.Logger

	httpServer *http.Server
}

func NewServer(addr string, st store.Store, svc *messaging.Service, verifier *auth.JWTVerifier, tokenTTL time.Duration, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		store:     st,
		messaging: svc,
		verifier:  verifier,
		tokenTTL:  tokenTTL,
		logger:    logger.With("component", "api"),
	}
}

// Handler builds the full route table. Everything under /api except the login
// endpoint requires a Bearer token.
func (s *Server) Handler() http.Handler {
	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/auth/me", s.handleMe)

	protected.HandleFunc("GET /api/conversations", s.handleListConversations)
	protected.HandleFunc("POST /api/conversations", s.handleCreateConversation)
	protected.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	protected.HandleFunc("GET /api/conversations/{id}/messages", s.handleListMessages)
	protected.HandleFunc("POST /api/conversations/{id}/messages", s.handleSendMessage)
	protected.HandleFunc("POST /api/conversations/{id}/mark-read", s.handleMarkRead)
	protected.HandleFunc("PUT /api/conversations/{id}/archive", s.handleArchive)

	protected.HandleFunc("GET /api/templates", s.handleListTemplates)
	protected.HandleFunc("POST /api/templates", s.handleCreateTemplate)
	protected.HandleFunc("POST /api/templates/{id}/use", s.handleUseTemplate)

	protected.HandleFunc("GET /api/search", s.handleSearch)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("/api/", auth.HTTPAuthMiddleware(s.store, s.verifier)(protected))
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendServiceError maps service errors onto the HTTP taxonomy. Access and
// reply denials both answer 403 without distinguishing a missing conversation
// from a membership failure. Unexpected errors answer 500 with a generic body.
func (s *Server) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, messaging.ErrValidation):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, messaging.ErrAccessDenied), errors.Is(err, messaging.ErrCannotReply):
		s.sendJSONError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error("request failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatNullableTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTimestamp(*t)
}
