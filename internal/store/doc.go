// Package store provides persistent storage for tenantline using SQLite.
//
// # Data Models
//
//   - User: platform accounts (auth, recipient resolution, sender snapshots)
//   - Conversation: message threads with weak property/unit/tenant references
//   - Participant: conversation-scoped membership with permissions and read state
//   - Message: individual messages with soft-delete and read flags
//   - Attachment: file records attached to messages
//   - Template: reusable message bodies with placeholder variables
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Foreign keys drive the cascade deletes: removing a conversation removes its
// participants and messages, removing a message removes its attachments.
//
// # Transactional Coupling
//
// Two operations are deliberately composite:
//
//   - AddMessage inserts the message row and advances the conversation's
//     last_message_at/updated_at in one transaction.
//   - MarkConversationRead bulk-marks unread messages and advances the
//     reader's participant last_read_at in one transaction.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateParticipant: user already belongs to the conversation
//   - ErrDuplicateUser: email already registered
//
// All methods accept context.Context for cancellation support.
//
// Use NewSQLiteStore(":memory:") for tests.
package store
