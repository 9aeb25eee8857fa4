// ABOUTME: Conversation operations: create, list, detail, archive
// ABOUTME: Builds inbox summaries with unread counts and last-message previews

package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/IRakow/tenantline/internal/notify"
	"github.com/IRakow/tenantline/internal/store"
)

// unlinkedPropertyName is shown on summaries when a conversation has no
// linked property.
const unlinkedPropertyName = "Multiple Properties"

// CreateConversationInput carries the creation request. Recipient name is
// required; RecipientEmail, when set, is resolved to a platform user by exact
// match. PropertyName and UnitNumber are denormalized display names supplied
// by the caller alongside the lookup keys.
type CreateConversationInput struct {
	Type                 string
	Subject              string
	PropertyID           string
	PropertyName         string
	UnitID               string
	UnitNumber           string
	TenantID             string
	MaintenanceRequestID string
	IsUrgent             bool
	Tags                 []string

	RecipientName  string
	RecipientType  string
	RecipientEmail string
	RecipientPhone string

	InitialMessage string
}

// MessagePreview is the last-message projection on a conversation summary.
type MessagePreview struct {
	Content   string
	CreatedAt time.Time
	IsFromMe  bool
}

// ConversationSummary is the inbox projection of one conversation for a
// specific viewer.
type ConversationSummary struct {
	ID              string
	Type            string
	Status          string
	Subject         string
	ParticipantName string
	ParticipantType string
	PropertyName    string
	UnitNumber      string
	IsUrgent        bool
	LinkedTicket    bool
	UnreadCount     int
	LastMessageAt   time.Time
	LastMessage     *MessagePreview
}

// ConversationDetail is the full conversation plus its active participants.
type ConversationDetail struct {
	Conversation *store.Conversation
	Participants []*store.Participant
}

// CreateConversation creates a conversation with the creator and one
// recipient as its initial participants, plus an optional first message, in a
// single transaction. When an initial message is present, a notification is
// dispatched per other linked active participant after the commit.
func (s *Service) CreateConversation(ctx context.Context, creator *store.User, in CreateConversationInput) (*store.Conversation, error) {
	if in.RecipientName == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if in.Type == "" {
		in.Type = store.ConversationTypeDirect
	}
	if !validConversationType(in.Type) {
		return nil, fmt.Errorf("%w: unknown conversation type %q", ErrValidation, in.Type)
	}
	if in.RecipientType == "" {
		in.RecipientType = store.ParticipantTypeTenant
	}
	if !validParticipantType(in.RecipientType) {
		return nil, fmt.Errorf("%w: unknown recipient type %q", ErrValidation, in.RecipientType)
	}

	now := time.Now().UTC()
	conv := &store.Conversation{
		ID:                   uuid.New().String(),
		Type:                 in.Type,
		Status:               store.ConversationStatusActive,
		CreatedBy:            creator.ID,
		Subject:              in.Subject,
		PropertyID:           in.PropertyID,
		PropertyName:         in.PropertyName,
		UnitID:               in.UnitID,
		UnitNumber:           in.UnitNumber,
		TenantID:             in.TenantID,
		MaintenanceRequestID: in.MaintenanceRequestID,
		IsUrgent:             in.IsUrgent,
		Tags:                 in.Tags,
		CreatedAt:            now,
		UpdatedAt:            now,
		LastMessageAt:        now,
	}

	participants := []*store.Participant{
		{
			ID:                 uuid.New().String(),
			ConversationID:     conv.ID,
			UserID:             creator.ID,
			Type:               store.ParticipantTypeManager,
			Name:               creator.FullName(),
			Email:              creator.Email,
			CanReply:           true,
			CanAddParticipants: true,
			IsAdmin:            true,
			JoinedAt:           now,
			IsActive:           true,
			EmailNotifications: true,
		},
	}

	recipient := &store.Participant{
		ID:                 uuid.New().String(),
		ConversationID:     conv.ID,
		Type:               in.RecipientType,
		Name:               in.RecipientName,
		Email:              in.RecipientEmail,
		Phone:              in.RecipientPhone,
		CanReply:           true,
		JoinedAt:           now,
		IsActive:           true,
		EmailNotifications: true,
	}
	if in.RecipientEmail != "" {
		user, err := s.store.GetUserByEmail(ctx, in.RecipientEmail)
		switch {
		case err == nil:
			recipient.UserID = user.ID
		case errors.Is(err, store.ErrNotFound):
			// External contact without a platform account.
		default:
			return nil, fmt.Errorf("resolving recipient: %w", err)
		}
	}
	participants = append(participants, recipient)

	var initial *store.Message
	if in.InitialMessage != "" {
		initial = &store.Message{
			ID:             uuid.New().String(),
			ConversationID: conv.ID,
			SenderID:       creator.ID,
			SenderName:     creator.FullName(),
			SenderType:     store.ParticipantTypeManager,
			Content:        in.InitialMessage,
			ContentType:    store.ContentTypeText,
			CreatedAt:      now,
		}
	}

	if err := s.store.CreateConversation(ctx, conv, participants, initial); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"type", conv.Type,
		"created_by", creator.ID)

	if initial != nil {
		s.fanOut(ctx, conv, initial, participants)
	}
	return conv, nil
}

// fanOut dispatches one notification per other active participant with a
// linked user account. Unlinked participants cannot receive in-app
// notifications; that gap is logged loudly rather than skipped silently.
func (s *Service) fanOut(ctx context.Context, conv *store.Conversation, msg *store.Message, participants []*store.Participant) {
	for _, p := range participants {
		if !p.IsActive || (p.UserID != "" && p.UserID == msg.SenderID) {
			continue
		}
		if p.UserID == "" {
			s.logger.Warn("participant has no linked user, skipping notification",
				"conversation_id", conv.ID,
				"participant_id", p.ID,
				"participant_name", p.Name)
			continue
		}
		if err := s.dispatcher.Dispatch(ctx, notify.Notification{
			RecipientID:    p.UserID,
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			Subject:        conv.Subject,
			Preview:        msg.Content,
			SenderName:     msg.SenderName,
		}); err != nil {
			s.logger.Warn("notification dispatch failed",
				"conversation_id", conv.ID,
				"recipient_id", p.UserID,
				"error", err)
		}
	}
}

// ListConversations returns the viewer's inbox page plus the filtered total.
// Filter.Type accepts all, unread, tenants, owners, vendors.
func (s *Service) ListConversations(ctx context.Context, user *store.User, filter store.ConversationFilter) ([]*ConversationSummary, int, error) {
	switch filter.Type {
	case "", "all", "unread", "tenants", "owners", "vendors":
	default:
		return nil, 0, fmt.Errorf("%w: unknown filter type %q", ErrValidation, filter.Type)
	}

	filter.UserID = user.ID
	filter.Limit = clampLimit(filter.Limit, DefaultPageLimit, MaxPageLimit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	convs, total, err := s.store.ListConversations(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("listing conversations: %w", err)
	}

	summaries := make([]*ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary, err := s.buildSummary(ctx, user, conv)
		if err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, total, nil
}

func (s *Service) buildSummary(ctx context.Context, user *store.User, conv *store.Conversation) (*ConversationSummary, error) {
	summary := &ConversationSummary{
		ID:            conv.ID,
		Type:          conv.Type,
		Status:        conv.Status,
		Subject:       conv.Subject,
		PropertyName:  conv.PropertyName,
		UnitNumber:    conv.UnitNumber,
		IsUrgent:      conv.IsUrgent,
		LinkedTicket:  conv.MaintenanceRequestID != "",
		LastMessageAt: conv.LastMessageAt,
	}
	if summary.PropertyName == "" {
		summary.PropertyName = unlinkedPropertyName
	}

	participants, err := s.store.ListActiveParticipants(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	var own *store.Participant
	for _, p := range participants {
		if p.UserID == user.ID {
			own = p
			continue
		}
		if summary.ParticipantName == "" {
			summary.ParticipantName = p.Name
			summary.ParticipantType = p.Type
		}
	}
	// A conversation whose only participant is the viewer falls back to the
	// viewer's own row.
	if summary.ParticipantName == "" && own != nil {
		summary.ParticipantName = own.Name
		summary.ParticipantType = own.Type
	}

	last, err := s.store.GetLastMessage(ctx, conv.ID)
	switch {
	case err == nil:
		summary.LastMessage = &MessagePreview{
			Content:   last.Content,
			CreatedAt: last.CreatedAt,
			IsFromMe:  last.SenderID == user.ID,
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("loading last message: %w", err)
	}

	unread, err := s.store.CountUnread(ctx, conv.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("counting unread: %w", err)
	}
	summary.UnreadCount = unread
	return summary, nil
}

// GetConversation returns the full conversation with its active participants.
// Requires active membership.
func (s *Service) GetConversation(ctx context.Context, user *store.User, conversationID string) (*ConversationDetail, error) {
	if _, err := s.guard.Authorize(ctx, conversationID, user.ID); err != nil {
		return nil, err
	}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	participants, err := s.store.ListActiveParticipants(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	return &ConversationDetail{Conversation: conv, Participants: participants}, nil
}

// ArchiveConversation moves the conversation to archived. Any active
// participant may archive; there is no un-archive operation.
func (s *Service) ArchiveConversation(ctx context.Context, user *store.User, conversationID string) error {
	if _, err := s.guard.Authorize(ctx, conversationID, user.ID); err != nil {
		return err
	}
	if err := s.store.UpdateConversationStatus(ctx, conversationID, store.ConversationStatusArchived, time.Now().UTC()); err != nil {
		return fmt.Errorf("archiving conversation: %w", err)
	}
	s.logger.Info("conversation archived",
		"conversation_id", conversationID,
		"user_id", user.ID)
	return nil
}
