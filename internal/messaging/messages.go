// ABOUTME: Message operations: list with read-on-fetch, send, mark-read, search
// ABOUTME: Listing pages descending internally and returns ascending for display

package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/IRakow/tenantline/internal/store"
)

// ListMessages returns one page of non-deleted messages in ascending
// created_at order plus the total. Pagination offsets apply against the
// newest-first ordering; the page is reversed before returning so display is
// oldest-first. As a side effect every unread message in the conversation
// authored by someone else is marked read and the viewer's last_read_at is
// advanced. The side effect spans the whole conversation, not just the page.
func (s *Service) ListMessages(ctx context.Context, user *store.User, conversationID string, limit, offset int) ([]*store.Message, int, error) {
	if _, err := s.guard.Authorize(ctx, conversationID, user.ID); err != nil {
		return nil, 0, err
	}
	limit = clampLimit(limit, DefaultPageLimit, MaxPageLimit)
	if offset < 0 {
		offset = 0
	}

	msgs, total, err := s.store.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing messages: %w", err)
	}

	if _, err := s.store.MarkConversationRead(ctx, conversationID, user.ID, time.Now().UTC()); err != nil {
		return nil, 0, fmt.Errorf("marking conversation read: %w", err)
	}

	// Reverse the newest-first page into display order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, total, nil
}

// SendMessage appends a message to the conversation. The sender's display
// name is snapshotted onto the message and the sender type comes from their
// participant row, not their account role. The message insert and the
// conversation timestamp bump commit atomically; notification fan-out runs
// after the commit and never affects the result.
func (s *Service) SendMessage(ctx context.Context, user *store.User, conversationID, content, contentType string) (*store.Message, error) {
	participant, err := s.guard.AuthorizeReply(ctx, conversationID, user.ID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if contentType == "" {
		contentType = store.ContentTypeText
	}
	if !validContentType(contentType) {
		return nil, fmt.Errorf("%w: unknown content type %q", ErrValidation, contentType)
	}

	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       user.ID,
		SenderName:     user.FullName(),
		SenderType:     participant.Type,
		Content:        content,
		ContentType:    contentType,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	participants, err := s.store.ListActiveParticipants(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	s.fanOut(ctx, conv, msg, participants)
	return msg, nil
}

// MarkConversationRead bulk-marks every unread message from other senders as
// read and returns how many were marked. Idempotent: a second call marks zero.
func (s *Service) MarkConversationRead(ctx context.Context, user *store.User, conversationID string) (int64, error) {
	if _, err := s.guard.Authorize(ctx, conversationID, user.ID); err != nil {
		return 0, err
	}
	marked, err := s.store.MarkConversationRead(ctx, conversationID, user.ID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("marking conversation read: %w", err)
	}
	return marked, nil
}

// SearchMessages finds non-deleted messages containing the query, scoped to
// conversations the user actively participates in, newest first.
func (s *Service) SearchMessages(ctx context.Context, user *store.User, query string, limit int) ([]*store.SearchResult, error) {
	query = strings.TrimSpace(query)
	if len(query) < MinSearchQueryLen {
		return nil, fmt.Errorf("%w: query must be at least %d characters", ErrValidation, MinSearchQueryLen)
	}
	limit = clampLimit(limit, DefaultSearchLimit, MaxSearchLimit)

	results, err := s.store.SearchMessages(ctx, user.ID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	return results, nil
}
