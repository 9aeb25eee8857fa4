// ABOUTME: Messaging service wiring and shared helpers
// ABOUTME: Holds the store, guard, notification dispatcher and page-limit rules

package messaging

import (
	"log/slog"

	"github.com/IRakow/tenantline/internal/notify"
	"github.com/IRakow/tenantline/internal/store"
)

const (
	// DefaultPageLimit and MaxPageLimit apply to conversation and message
	// listings.
	DefaultPageLimit = 50
	MaxPageLimit     = 100

	// DefaultSearchLimit and MaxSearchLimit apply to message search.
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50

	// MinSearchQueryLen is the shortest accepted search query.
	MinSearchQueryLen = 2
)

// Service implements the messaging operations: conversations, messages,
// read-state, search and templates. All access checks run through the Guard
// before any store mutation.
type Service struct {
	store      store.Store
	guard      *Guard
	dispatcher notify.Dispatcher
	logger     *slog.Logger
}

func NewService(st store.Store, dispatcher notify.Dispatcher, logger *slog.Logger) *Service {
	return &Service{
		store:      st,
		guard:      NewGuard(st),
		dispatcher: dispatcher,
		logger:     logger.With("component", "messaging"),
	}
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func validConversationType(t string) bool {
	switch t {
	case store.ConversationTypeDirect, store.ConversationTypeMaintenance,
		store.ConversationTypeLease, store.ConversationTypePayment,
		store.ConversationTypeAnnouncement, store.ConversationTypeSystem:
		return true
	}
	return false
}

func validParticipantType(t string) bool {
	switch t {
	case store.ParticipantTypeTenant, store.ParticipantTypeOwner,
		store.ParticipantTypeVendor, store.ParticipantTypeManager,
		store.ParticipantTypeProspect:
		return true
	}
	return false
}

func validContentType(t string) bool {
	switch t {
	case store.ContentTypeText, store.ContentTypeImage,
		store.ContentTypeFile, store.ContentTypeSystem:
		return true
	}
	return false
}
