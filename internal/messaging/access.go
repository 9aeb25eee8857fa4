// ABOUTME: Access control guard for conversation membership
// ABOUTME: Authorize and AuthorizeReply wrap active-participant lookups

package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/IRakow/tenantline/internal/store"
)

// Guard decides conversation membership. Every check is table-driven off the
// participant row; there is no role-based escalation.
type Guard struct {
	store store.Store
}

func NewGuard(st store.Store) *Guard {
	return &Guard{store: st}
}

// Authorize returns the user's active participant row for the conversation.
// A missing conversation and a non-member both yield ErrAccessDenied, so the
// caller cannot learn whether the conversation exists.
func (g *Guard) Authorize(ctx context.Context, conversationID, userID string) (*store.Participant, error) {
	p, err := g.store.GetActiveParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("looking up participant: %w", err)
	}
	return p, nil
}

// AuthorizeReply is Authorize plus a can_reply check on the participant.
func (g *Guard) AuthorizeReply(ctx context.Context, conversationID, userID string) (*store.Participant, error) {
	p, err := g.Authorize(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !p.CanReply {
		return nil, ErrCannotReply
	}
	return p, nil
}
