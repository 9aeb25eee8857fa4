// ABOUTME: HTTP handlers for message endpoints
// ABOUTME: Listing with read-on-fetch, sending, bulk mark-read and search

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/IRakow/tenantline/internal/auth"
	"github.com/IRakow/tenantline/internal/store"
)

// SendMessageRequest is the JSON request body for POST /api/conversations/{id}/messages.
type SendMessageRequest struct {
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

// MessageResponse is one message in listing and send responses.
type MessageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id,omitempty"`
	SenderName     string `json:"sender_name"`
	SenderType     string `json:"sender_type,omitempty"`
	Content        string `json:"content"`
	ContentType    string `json:"content_type"`
	IsRead         bool   `json:"is_read"`
	CreatedAt      string `json:"created_at"`
	ReadAt         string `json:"read_at,omitempty"`
}

// ListMessagesResponse is the JSON response for GET /api/conversations/{id}/messages.
// Messages are in ascending created_at order.
type ListMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
	Total    int               `json:"total"`
}

// MarkReadResponse is the JSON response for POST /api/conversations/{id}/mark-read.
type MarkReadResponse struct {
	MessagesMarked int64 `json:"messages_marked"`
}

// SearchResultResponse is one hit in GET /api/search.
type SearchResultResponse struct {
	MessageID           string `json:"message_id"`
	ConversationID      string `json:"conversation_id"`
	ConversationSubject string `json:"conversation_subject,omitempty"`
	Content             string `json:"content"`
	SenderName          string `json:"sender_name"`
	CreatedAt           string `json:"created_at"`
}

// SearchResponse is the JSON response for GET /api/search.
type SearchResponse struct {
	Query   string                 `json:"query"`
	Results []SearchResultResponse `json:"results"`
}

func messageToResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		SenderType:     m.SenderType,
		Content:        m.Content,
		ContentType:    m.ContentType,
		IsRead:         m.IsRead,
		CreatedAt:      formatTimestamp(m.CreatedAt),
		ReadAt:         formatNullableTimestamp(m.ReadAt),
	}
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	limit, offset := parsePagination(r)

	msgs, total, err := s.messaging.ListMessages(r.Context(), user, r.PathValue("id"), limit, offset)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	resp := ListMessagesResponse{
		Messages: make([]MessageResponse, 0, len(msgs)),
		Total:    total,
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageToResponse(m))
	}
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := s.messaging.SendMessage(r.Context(), user, r.PathValue("id"), req.Content, req.ContentType)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, messageToResponse(msg))
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	marked, err := s.messaging.MarkConversationRead(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, MarkReadResponse{MessagesMarked: marked})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	query := r.URL.Query().Get("q")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	results, err := s.messaging.SearchMessages(r.Context(), user, query, limit)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	resp := SearchResponse{
		Query:   query,
		Results: make([]SearchResultResponse, 0, len(results)),
	}
	for _, res := range results {
		resp.Results = append(resp.Results, SearchResultResponse{
			MessageID:           res.MessageID,
			ConversationID:      res.ConversationID,
			ConversationSubject: res.ConversationSubject,
			Content:             res.Content,
			SenderName:          res.SenderName,
			CreatedAt:           formatTimestamp(res.CreatedAt),
		})
	}
	s.sendJSON(w, http.StatusOK, resp)
}
