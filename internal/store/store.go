// ABOUTME: Store interface and data types for tenantline persistence
// ABOUTME: Defines Conversation, Participant, Message, Template structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateParticipant is returned when adding a user who is already an
// active participant of the conversation
var ErrDuplicateParticipant = errors.New("participant already exists")

// ErrDuplicateUser is returned when creating a user with an email that is taken
var ErrDuplicateUser = errors.New("user already exists")

// ConversationType constants for conversation types
const (
	ConversationTypeDirect       = "direct"
	ConversationTypeMaintenance  = "maintenance"
	ConversationTypeLease        = "lease"
	ConversationTypePayment      = "payment"
	ConversationTypeAnnouncement = "announcement"
	ConversationTypeSystem       = "system"
)

// ConversationStatus constants for the conversation lifecycle
const (
	ConversationStatusActive   = "active"
	ConversationStatusArchived = "archived"
	ConversationStatusResolved = "resolved"
	ConversationStatusPending  = "pending"
)

// ParticipantType constants for conversation participants
const (
	ParticipantTypeTenant   = "tenant"
	ParticipantTypeOwner    = "owner"
	ParticipantTypeVendor   = "vendor"
	ParticipantTypeManager  = "manager"
	ParticipantTypeProspect = "prospect"
)

// ContentType constants for message bodies
const (
	ContentTypeText   = "text"
	ContentTypeImage  = "image"
	ContentTypeFile   = "file"
	ContentTypeSystem = "system"
)

// User is a platform account. Participants and messages reference users by ID
// but remain valid when the reference is empty (external contacts, system
// messages).
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	Role         string
	CreatedAt    time.Time
}

// FullName returns the display name used for sender snapshots.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Conversation is a thread grouping messages between a creator and one or more
// recipients, optionally scoped to a property, unit, tenant or maintenance
// ticket. Linked entities are weak references: lookup keys plus denormalized
// display names, no ownership.
type Conversation struct {
	ID        string
	Type      string
	Status    string
	CreatedBy string
	Subject   string

	PropertyID           string
	PropertyName         string
	UnitID               string
	UnitNumber           string
	TenantID             string
	MaintenanceRequestID string

	IsUrgent bool
	Tags     []string
	Metadata map[string]any

	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastMessageAt time.Time
}

// Participant is a conversation-scoped membership record carrying permissions
// and read state independent of the underlying user account. UserID is empty
// for external contacts without a platform account.
type Participant struct {
	ID             string
	ConversationID string
	UserID         string
	Type           string
	Name           string
	Email          string
	Phone          string

	CanReply           bool
	CanAddParticipants bool
	IsAdmin            bool

	JoinedAt   time.Time
	LeftAt     *time.Time
	LastReadAt *time.Time
	IsActive   bool

	EmailNotifications bool
	SMSNotifications   bool
	PushNotifications  bool
}

// Message is a single message within a conversation. SenderName is a snapshot
// taken at send time and never updated. Deletion is a soft flag; deleted
// messages stay in storage but are excluded from listing, counting and search.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	SenderType     string
	Content        string
	ContentType    string
	Metadata       map[string]any

	IsRead    bool
	IsEdited  bool
	IsDeleted bool

	CreatedAt time.Time
	EditedAt  *time.Time
	ReadAt    *time.Time
}

// Attachment is a file record attached to a message. Upload and storage of the
// underlying file are handled elsewhere; only the record shape lives here.
type Attachment struct {
	ID           string
	MessageID    string
	FileName     string
	FileType     string
	FileSize     int64
	FileURL      string
	MimeType     string
	ThumbnailURL string
	Metadata     map[string]any
	UploadedAt   time.Time
}

// Template is a reusable message body with declared placeholder variables.
// Visible to its creator and, when public, to everyone.
type Template struct {
	ID         string
	Name       string
	Category   string
	Subject    string
	Content    string
	Variables  []string
	UsageCount int
	LastUsedAt *time.Time
	CreatedBy  string
	IsPublic   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ConversationFilter selects conversations for a user's inbox listing.
// Type is one of "", "all", "unread", "tenants", "owners", "vendors";
// the participant-type variants match on the type of the *other* active
// participants, not the requester's own row.
type ConversationFilter struct {
	UserID string
	Type   string
	Status string
	Limit  int
	Offset int
}

// SearchResult is one row of a message content search, joined with the parent
// conversation's subject.
type SearchResult struct {
	MessageID           string
	ConversationID      string
	ConversationSubject string
	Content             string
	SenderName          string
	CreatedAt           time.Time
}

// Store defines the interface for tenantline persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CountUsers(ctx context.Context) (int, error)

	// Conversations. CreateConversation inserts the conversation, its initial
	// participants and the optional first message in a single transaction.
	CreateConversation(ctx context.Context, conv *Conversation, participants []*Participant, initial *Message) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, filter ConversationFilter) ([]*Conversation, int, error)
	UpdateConversationStatus(ctx context.Context, id, status string, at time.Time) error

	// Participants
	AddParticipant(ctx context.Context, p *Participant) error
	GetActiveParticipant(ctx context.Context, conversationID, userID string) (*Participant, error)
	ListActiveParticipants(ctx context.Context, conversationID string) ([]*Participant, error)

	// Messages. AddMessage inserts the message and advances the conversation's
	// last_message_at/updated_at in the same transaction.
	AddMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*Message, int, error)
	GetLastMessage(ctx context.Context, conversationID string) (*Message, error)
	CountUnread(ctx context.Context, conversationID, userID string) (int, error)
	MarkConversationRead(ctx context.Context, conversationID, userID string, at time.Time) (int64, error)
	SoftDeleteMessage(ctx context.Context, id string) error
	SearchMessages(ctx context.Context, userID, query string, limit int) ([]*SearchResult, error)

	// Attachments
	AddAttachment(ctx context.Context, att *Attachment) error
	ListAttachments(ctx context.Context, messageID string) ([]*Attachment, error)

	// Templates
	CreateTemplate(ctx context.Context, tpl *Template) error
	GetTemplate(ctx context.Context, id string) (*Template, error)
	ListTemplates(ctx context.Context, userID, category string) ([]*Template, error)
	IncrementTemplateUsage(ctx context.Context, id string, at time.Time) error

	Close() error
}
