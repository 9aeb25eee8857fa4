// ABOUTME: HTTP handlers for conversation endpoints
// ABOUTME: Inbox listing, creation, detail, message listing/sending, read-state, archive

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/IRakow/tenantline/internal/auth"
	"github.com/IRakow/tenantline/internal/messaging"
	"github.com/IRakow/tenantline/internal/store"
)

// CreateConversationRequest is the JSON request body for POST /api/conversations.
type CreateConversationRequest struct {
	Type                 string   `json:"type,omitempty"`
	Subject              string   `json:"subject,omitempty"`
	PropertyID           string   `json:"property_id,omitempty"`
	PropertyName         string   `json:"property_name,omitempty"`
	UnitID               string   `json:"unit_id,omitempty"`
	UnitNumber           string   `json:"unit_number,omitempty"`
	TenantID             string   `json:"tenant_id,omitempty"`
	MaintenanceRequestID string   `json:"maintenance_request_id,omitempty"`
	IsUrgent             bool     `json:"is_urgent,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
	Recipient            string   `json:"recipient"`
	RecipientType        string   `json:"recipient_type,omitempty"`
	RecipientEmail       string   `json:"recipient_email,omitempty"`
	RecipientPhone       string   `json:"recipient_phone,omitempty"`
	Message              string   `json:"message,omitempty"`
}

// MessagePreviewResponse is the last-message projection on a summary.
type MessagePreviewResponse struct {
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	IsFromMe  bool   `json:"is_from_me"`
}

// ConversationSummaryResponse is one inbox row in GET /api/conversations.
type ConversationSummaryResponse struct {
	ID              string                  `json:"id"`
	Type            string                  `json:"type"`
	Status          string                  `json:"status"`
	Subject         string                  `json:"subject,omitempty"`
	ParticipantName string                  `json:"participant_name"`
	ParticipantType string                  `json:"participant_type,omitempty"`
	PropertyName    string                  `json:"property_name"`
	UnitNumber      string                  `json:"unit_number,omitempty"`
	IsUrgent        bool                    `json:"is_urgent"`
	LinkedTicket    bool                    `json:"linked_ticket"`
	UnreadCount     int                     `json:"unread_count"`
	LastMessageAt   string                  `json:"last_message_at"`
	LastMessage     *MessagePreviewResponse `json:"last_message,omitempty"`
}

// ListConversationsResponse is the JSON response for GET /api/conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummaryResponse `json:"conversations"`
	Total         int                           `json:"total"`
	Limit         int                           `json:"limit"`
	Offset        int                           `json:"offset"`
}

// ParticipantResponse is one active participant on a conversation detail.
type ParticipantResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id,omitempty"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	CanReply bool   `json:"can_reply"`
	IsAdmin  bool   `json:"is_admin"`
	JoinedAt string `json:"joined_at"`
}

// ConversationDetailResponse is the JSON response for GET /api/conversations/{id}.
type ConversationDetailResponse struct {
	ID                   string                `json:"id"`
	Type                 string                `json:"type"`
	Status               string                `json:"status"`
	Subject              string                `json:"subject,omitempty"`
	PropertyID           string                `json:"property_id,omitempty"`
	PropertyName         string                `json:"property_name,omitempty"`
	UnitID               string                `json:"unit_id,omitempty"`
	UnitNumber           string                `json:"unit_number,omitempty"`
	TenantID             string                `json:"tenant_id,omitempty"`
	MaintenanceRequestID string                `json:"maintenance_request_id,omitempty"`
	IsUrgent             bool                  `json:"is_urgent"`
	Tags                 []string              `json:"tags,omitempty"`
	CreatedAt            string                `json:"created_at"`
	UpdatedAt            string                `json:"updated_at"`
	LastMessageAt        string                `json:"last_message_at"`
	Participants         []ParticipantResponse `json:"participants"`
}

func parsePagination(r *http.Request) (limit, offset int) {
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, _ = strconv.Atoi(v)
	}
	return limit, offset
}

func summaryToResponse(s *messaging.ConversationSummary) ConversationSummaryResponse {
	resp := ConversationSummaryResponse{
		ID:              s.ID,
		Type:            s.Type,
		Status:          s.Status,
		Subject:         s.Subject,
		ParticipantName: s.ParticipantName,
		ParticipantType: s.ParticipantType,
		PropertyName:    s.PropertyName,
		UnitNumber:      s.UnitNumber,
		IsUrgent:        s.IsUrgent,
		LinkedTicket:    s.LinkedTicket,
		UnreadCount:     s.UnreadCount,
		LastMessageAt:   formatTimestamp(s.LastMessageAt),
	}
	if s.LastMessage != nil {
		resp.LastMessage = &MessagePreviewResponse{
			Content:   s.LastMessage.Content,
			CreatedAt: formatTimestamp(s.LastMessage.CreatedAt),
			IsFromMe:  s.LastMessage.IsFromMe,
		}
	}
	return resp
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	limit, offset := parsePagination(r)

	filter := store.ConversationFilter{
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}
	summaries, total, err := s.messaging.ListConversations(r.Context(), user, filter)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	resp := ListConversationsResponse{
		Conversations: make([]ConversationSummaryResponse, 0, len(summaries)),
		Total:         total,
		Limit:         clamp(limit, messaging.DefaultPageLimit, messaging.MaxPageLimit),
		Offset:        max(offset, 0),
	}
	for _, summary := range summaries {
		resp.Conversations = append(resp.Conversations, summaryToResponse(summary))
	}
	s.sendJSON(w, http.StatusOK, resp)
}

func clamp(limit, def, upper int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, upper)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conv, err := s.messaging.CreateConversation(r.Context(), user, messaging.CreateConversationInput{
		Type:                 req.Type,
		Subject:              req.Subject,
		PropertyID:           req.PropertyID,
		PropertyName:         req.PropertyName,
		UnitID:               req.UnitID,
		UnitNumber:           req.UnitNumber,
		TenantID:             req.TenantID,
		MaintenanceRequestID: req.MaintenanceRequestID,
		IsUrgent:             req.IsUrgent,
		Tags:                 req.Tags,
		RecipientName:        req.Recipient,
		RecipientType:        req.RecipientType,
		RecipientEmail:       req.RecipientEmail,
		RecipientPhone:       req.RecipientPhone,
		InitialMessage:       req.Message,
	})
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	detail, err := s.messaging.GetConversation(r.Context(), user, conv.ID)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, detailToResponse(detail))
}

func detailToResponse(d *messaging.ConversationDetail) ConversationDetailResponse {
	conv := d.Conversation
	resp := ConversationDetailResponse{
		ID:                   conv.ID,
		Type:                 conv.Type,
		Status:               conv.Status,
		Subject:              conv.Subject,
		PropertyID:           conv.PropertyID,
		PropertyName:         conv.PropertyName,
		UnitID:               conv.UnitID,
		UnitNumber:           conv.UnitNumber,
		TenantID:             conv.TenantID,
		MaintenanceRequestID: conv.MaintenanceRequestID,
		IsUrgent:             conv.IsUrgent,
		Tags:                 conv.Tags,
		CreatedAt:            formatTimestamp(conv.CreatedAt),
		UpdatedAt:            formatTimestamp(conv.UpdatedAt),
		LastMessageAt:        formatTimestamp(conv.LastMessageAt),
		Participants:         make([]ParticipantResponse, 0, len(d.Participants)),
	}
	for _, p := range d.Participants {
		resp.Participants = append(resp.Participants, ParticipantResponse{
			ID:       p.ID,
			UserID:   p.UserID,
			Type:     p.Type,
			Name:     p.Name,
			Email:    p.Email,
			CanReply: p.CanReply,
			IsAdmin:  p.IsAdmin,
			JoinedAt: formatTimestamp(p.JoinedAt),
		})
	}
	return resp
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	detail, err := s.messaging.GetConversation(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, detailToResponse(detail))
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	if err := s.messaging.ArchiveConversation(r.Context(), user, r.PathValue("id")); err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"status": store.ConversationStatusArchived})
}
