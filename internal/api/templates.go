// ABOUTME: HTTP handlers for message template endpoints
// ABOUTME: Listing visible templates, creating, and recording usage

package api

import (
	"encoding/json"
	"net/http"

	"github.com/IRakow/tenantline/internal/auth"
	"github.com/IRakow/tenantline/internal/messaging"
	"github.com/IRakow/tenantline/internal/store"
)

// CreateTemplateRequest is the JSON request body for POST /api/templates.
type CreateTemplateRequest struct {
	Name      string   `json:"name"`
	Category  string   `json:"category,omitempty"`
	Subject   string   `json:"subject,omitempty"`
	Content   string   `json:"content"`
	Variables []string `json:"variables,omitempty"`
	IsPublic  bool     `json:"is_public,omitempty"`
}

// TemplateResponse is one template in listing, creation and use responses.
type TemplateResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Category   string   `json:"category,omitempty"`
	Subject    string   `json:"subject,omitempty"`
	Content    string   `json:"content"`
	Variables  []string `json:"variables,omitempty"`
	UsageCount int      `json:"usage_count"`
	LastUsedAt string   `json:"last_used_at,omitempty"`
	IsPublic   bool     `json:"is_public"`
	CreatedAt  string   `json:"created_at"`
}

// ListTemplatesResponse is the JSON response for GET /api/templates.
type ListTemplatesResponse struct {
	Templates []TemplateResponse `json:"templates"`
}

func templateToResponse(t *store.Template) TemplateResponse {
	return TemplateResponse{
		ID:         t.ID,
		Name:       t.Name,
		Category:   t.Category,
		Subject:    t.Subject,
		Content:    t.Content,
		Variables:  t.Variables,
		UsageCount: t.UsageCount,
		LastUsedAt: formatNullableTimestamp(t.LastUsedAt),
		IsPublic:   t.IsPublic,
		CreatedAt:  formatTimestamp(t.CreatedAt),
	}
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	templates, err := s.messaging.ListTemplates(r.Context(), user, r.URL.Query().Get("category"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	resp := ListTemplatesResponse{Templates: make([]TemplateResponse, 0, len(templates))}
	for _, t := range templates {
		resp.Templates = append(resp.Templates, templateToResponse(t))
	}
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tpl, err := s.messaging.CreateTemplate(r.Context(), user, messaging.CreateTemplateInput{
		Name:      req.Name,
		Category:  req.Category,
		Subject:   req.Subject,
		Content:   req.Content,
		Variables: req.Variables,
		IsPublic:  req.IsPublic,
	})
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, templateToResponse(tpl))
}

func (s *Server) handleUseTemplate(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	tpl, err := s.messaging.UseTemplate(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, templateToResponse(tpl))
}
