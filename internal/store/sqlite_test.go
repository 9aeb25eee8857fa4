// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers user CRUD, conversation creation, participant membership, and inbox filtering

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	return store
}

// seedConversation creates a conversation with a manager (user "mgr") and a
// tenant (user "ten") participant for use across tests.
func seedConversation(t *testing.T, s *SQLiteStore, id string) *Conversation {
	t.Helper()

	now := time.Now().UTC()
	conv := &Conversation{
		ID:            id,
		Type:          ConversationTypeDirect,
		Status:        ConversationStatusActive,
		CreatedBy:     "mgr",
		Subject:       "Rent question",
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}
	participants := []*Participant{
		{
			ID:             id + "-p1",
			ConversationID: id,
			UserID:         "mgr",
			Type:           ParticipantTypeManager,
			Name:           "Pat Manager",
			CanReply:       true,
			IsAdmin:        true,
			IsActive:       true,
			JoinedAt:       now,
		},
		{
			ID:             id + "-p2",
			ConversationID: id,
			UserID:         "ten",
			Type:           ParticipantTypeTenant,
			Name:           "Terry Tenant",
			CanReply:       true,
			IsActive:       true,
			JoinedAt:       now,
		},
	}

	if err := s.CreateConversation(context.Background(), conv, participants, nil); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	return conv
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := &User{
		ID:           "user-1",
		Email:        "pat@example.com",
		PasswordHash: "$2a$10$fakehash",
		FirstName:    "Pat",
		LastName:     "Manager",
		Phone:        "555-0100",
		Role:         "manager",
		CreatedAt:    time.Now().UTC(),
	}

	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := store.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Email != user.Email {
		t.Errorf("Email mismatch: got %q, want %q", got.Email, user.Email)
	}
	if got.FullName() != "Pat Manager" {
		t.Errorf("FullName mismatch: got %q", got.FullName())
	}

	byEmail, err := store.GetUserByEmail(ctx, "pat@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != "user-1" {
		t.Errorf("ID mismatch: got %q, want %q", byEmail.ID, "user-1")
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := &User{ID: "user-1", Email: "dup@example.com", PasswordHash: "x", FirstName: "A", LastName: "B", Role: "manager", CreatedAt: time.Now().UTC()}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	dup := &User{ID: "user-2", Email: "dup@example.com", PasswordHash: "x", FirstName: "C", LastName: "D", Role: "manager", CreatedAt: time.Now().UTC()}
	if err := store.CreateUser(ctx, dup); !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("expected ErrDuplicateUser, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if _, err := store.GetUser(context.Background(), "nonexistent"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCountUsers(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	count, err := store.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 users, got %d", count)
	}

	user := &User{ID: "u1", Email: "a@b.c", PasswordHash: "x", FirstName: "A", LastName: "B", Role: "manager", CreatedAt: time.Now().UTC()}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	count, err = store.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 user, got %d", count)
	}
}

func TestCreateAndGetConversation(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	conv := &Conversation{
		ID:            "conv-1",
		Type:          ConversationTypeMaintenance,
		Status:        ConversationStatusActive,
		CreatedBy:     "mgr",
		Subject:       "Leaky faucet",
		PropertyID:    "prop-9",
		PropertyName:  "Sunset Apartments",
		UnitID:        "unit-4",
		UnitNumber:    "4B",
		IsUrgent:      true,
		Tags:          []string{"plumbing", "unit-4b"},
		Metadata:      map[string]any{"source": "portal"},
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}

	if err := store.CreateConversation(ctx, conv, nil, nil); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	got, err := store.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.Subject != "Leaky faucet" {
		t.Errorf("Subject mismatch: got %q", got.Subject)
	}
	if got.PropertyName != "Sunset Apartments" {
		t.Errorf("PropertyName mismatch: got %q", got.PropertyName)
	}
	if !got.IsUrgent {
		t.Error("IsUrgent flag lost")
	}
	if len(got.Tags) != 2 || got.Tags[0] != "plumbing" {
		t.Errorf("Tags mismatch: got %v", got.Tags)
	}
	if got.Metadata["source"] != "portal" {
		t.Errorf("Metadata mismatch: got %v", got.Metadata)
	}
	if !got.LastMessageAt.Equal(conv.LastMessageAt) {
		t.Errorf("LastMessageAt mismatch: got %v, want %v", got.LastMessageAt, conv.LastMessageAt)
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if _, err := store.GetConversation(context.Background(), "nonexistent"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateConversation_WithInitialMessage(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	conv := &Conversation{
		ID: "conv-1", Type: ConversationTypeDirect, Status: ConversationStatusActive,
		CreatedBy: "mgr", CreatedAt: now, UpdatedAt: now, LastMessageAt: now,
	}
	initial := &Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "mgr",
		SenderName:     "Pat Manager",
		SenderType:     ParticipantTypeManager,
		Content:        "Welcome to your new unit",
		ContentType:    ContentTypeText,
		CreatedAt:      now,
	}

	if err := store.CreateConversation(ctx, conv, nil, initial); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	messages, total, err := store.ListMessages(ctx, "conv-1", 10, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if total != 1 || len(messages) != 1 {
		t.Fatalf("expected 1 message, got total=%d len=%d", total, len(messages))
	}
	if messages[0].Content != "Welcome to your new unit" {
		t.Errorf("Content mismatch: got %q", messages[0].Content)
	}
}

func TestAddParticipant_DuplicateUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	seedConversation(t, store, "conv-1")

	dup := &Participant{
		ID:             "p-dup",
		ConversationID: "conv-1",
		UserID:         "mgr",
		Type:           ParticipantTypeManager,
		Name:           "Pat Again",
		IsActive:       true,
		JoinedAt:       time.Now().UTC(),
	}
	if err := store.AddParticipant(ctx, dup); !errors.Is(err, ErrDuplicateParticipant) {
		t.Errorf("expected ErrDuplicateParticipant, got %v", err)
	}
}

func TestAddParticipant_ExternalContactsAllowed(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	seedConversation(t, store, "conv-1")

	// Multiple unlinked external contacts may coexist; the uniqueness rule
	// only applies when a user reference is set.
	for i := 0; i < 2; i++ {
		ext := &Participant{
			ID:             fmt.Sprintf("ext-%d", i),
			ConversationID: "conv-1",
			Type:           ParticipantTypeVendor,
			Name:           fmt.Sprintf("Vendor %d", i),
			Email:          fmt.Sprintf("vendor%d@example.com", i),
			IsActive:       true,
			JoinedAt:       time.Now().UTC(),
		}
		if err := store.AddParticipant(ctx, ext); err != nil {
			t.Fatalf("AddParticipant external %d failed: %v", i, err)
		}
	}
}

func TestGetActiveParticipant(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	seedConversation(t, store, "conv-1")

	p, err := store.GetActiveParticipant(ctx, "conv-1", "ten")
	if err != nil {
		t.Fatalf("GetActiveParticipant failed: %v", err)
	}
	if p.Type != ParticipantTypeTenant {
		t.Errorf("Type mismatch: got %q", p.Type)
	}
	if !p.CanReply {
		t.Error("CanReply flag lost")
	}

	if _, err := store.GetActiveParticipant(ctx, "conv-1", "stranger"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for non-member, got %v", err)
	}
	if _, err := store.GetActiveParticipant(ctx, "no-such-conv", "ten"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for missing conversation, got %v", err)
	}
}

func TestGetActiveParticipant_InactiveExcluded(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	conv := &Conversation{
		ID: "conv-1", Type: ConversationTypeDirect, Status: ConversationStatusActive,
		CreatedBy: "mgr", CreatedAt: now, UpdatedAt: now, LastMessageAt: now,
	}
	left := now.Add(-time.Hour)
	participants := []*Participant{
		{
			ID: "p1", ConversationID: "conv-1", UserID: "gone",
			Type: ParticipantTypeTenant, Name: "Left Tenant",
			IsActive: false, LeftAt: &left, JoinedAt: now,
		},
	}
	if err := store.CreateConversation(ctx, conv, participants, nil); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if _, err := store.GetActiveParticipant(ctx, "conv-1", "gone"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for inactive participant, got %v", err)
	}

	active, err := store.ListActiveParticipants(ctx, "conv-1")
	if err != nil {
		t.Fatalf("ListActiveParticipants failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active participants, got %d", len(active))
	}
}

func TestUpdateConversationStatus(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	seedConversation(t, store, "conv-1")

	at := time.Now().UTC().Add(time.Minute)
	if err := store.UpdateConversationStatus(ctx, "conv-1", ConversationStatusArchived, at); err != nil {
		t.Fatalf("UpdateConversationStatus failed: %v", err)
	}

	got, err := store.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.Status != ConversationStatusArchived {
		t.Errorf("Status mismatch: got %q", got.Status)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt not bumped: got %v, want %v", got.UpdatedAt, at)
	}

	if err := store.UpdateConversationStatus(ctx, "nonexistent", ConversationStatusArchived, at); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListConversations_OrderAndTotal(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("conv-%d", i)
		at := base.Add(time.Duration(i) * time.Minute)
		conv := &Conversation{
			ID: id, Type: ConversationTypeDirect, Status: ConversationStatusActive,
			CreatedBy: "mgr", CreatedAt: at, UpdatedAt: at, LastMessageAt: at,
		}
		participants := []*Participant{
			{ID: id + "-p1", ConversationID: id, UserID: "mgr", Type: ParticipantTypeManager, Name: "Pat", CanReply: true, IsActive: true, JoinedAt: at},
		}
		if err := store.CreateConversation(ctx, conv, participants, nil); err != nil {
			t.Fatalf("CreateConversation %s failed: %v", id, err)
		}
	}

	convs, total, err := store.ListConversations(ctx, ConversationFilter{UserID: "mgr", Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total mismatch: got %d, want 3", total)
	}
	if len(convs) != 2 {
		t.Fatalf("page size mismatch: got %d, want 2", len(convs))
	}
	// Newest last_message_at first
	if convs[0].ID != "conv-2" || convs[1].ID != "conv-1" {
		t.Errorf("ordering mismatch: got [%s %s]", convs[0].ID, convs[1].ID)
	}
}

func TestListConversations_MembershipScope(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	seedConversation(t, store, "conv-1")

	convs, total, err := store.ListConversations(ctx, ConversationFilter{UserID: "stranger", Limit: 10})
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if total != 0 || len(convs) != 0 {
		t.Errorf("expected empty inbox for non-member, got total=%d len=%d", total, len(convs))
	}
}

func TestListConversations_UnreadFilter(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	seedConversation(t, store, "conv-read")
	seedConversation(t, store, "conv-unread")

	now := time.Now().UTC()
	msg := &Message{
		ID: "m1", ConversationID: "conv-unread", SenderID: "ten",
		SenderName: "Terry Tenant", SenderType: ParticipantTypeTenant,
		Content: "hello", ContentType: ContentTypeText, CreatedAt: now,
	}
	if err := store.AddMessage(ctx, msg); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}

	convs, total, err := store.ListConversations(ctx, ConversationFilter{UserID: "mgr", Type: "unread", Limit: 10})
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if total != 1 || len(convs) != 1 {
		t.Fatalf("expected 1 unread conversation, got total=%d len=%d", total, len(convs))
	}
	if convs[0].ID != "conv-unread" {
		t.Errorf("wrong conversation: got %s", convs[0].ID)
	}

	// The sender's own unread messages don't count against them
	convs, total, err = store.ListConversations(ctx, ConversationFilter{UserID: "ten", Type: "unread", Limit: 10})
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if total != 0 || len(convs) != 0 {
		t.Errorf("expected no unread conversations for sender, got total=%d", total)
	}
}

func TestListConversations_ParticipantTypeFilter(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	// conv-t: manager + tenant, conv-v: manager + vendor
	for _, tc := range []struct {
		id    string
		ptype string
		uid   string
	}{
		{"conv-t", ParticipantTypeTenant, "ten"},
		{"conv-v", ParticipantTypeVendor, "ven"},
	} {
		conv := &Conversation{
			ID: tc.id, Type: ConversationTypeDirect, Status: ConversationStatusActive,
			CreatedBy: "mgr", CreatedAt: now, UpdatedAt: now, LastMessageAt: now,
		}
		participants := []*Participant{
			{ID: tc.id + "-p1", ConversationID: tc.id, UserID: "mgr", Type: ParticipantTypeManager, Name: "Pat", CanReply: true, IsActive: true, JoinedAt: now},
			{ID: tc.id + "-p2", ConversationID: tc.id, UserID: tc.uid, Type: tc.ptype, Name: "Other", CanReply: true, IsActive: true, JoinedAt: now},
		}
		if err := store.CreateConversation(ctx, conv, participants, nil); err != nil {
			t.Fatalf("CreateConversation %s failed: %v", tc.id, err)
		}
	}

	convs, total, err := store.ListConversations(ctx, ConversationFilter{UserID: "mgr", Type: "vendors", Limit: 10})
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if total != 1 || len(convs) != 1 || convs[0].ID != "conv-v" {
		t.Fatalf("vendors filter mismatch: total=%d convs=%v", total, convs)
	}

	convs, total, err = store.ListConversations(ctx, ConversationFilter{UserID: "mgr", Type: "tenants", Limit: 10})
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if total != 1 || len(convs) != 1 || convs[0].ID != "conv-t" {
		t.Fatalf("tenants filter mismatch: total=%d convs=%v", total, convs)
	}
}

func TestListConversations_StatusFilter(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	seedConversation(t, store, "conv-a")
	seedConversation(t, store, "conv-b")

	if err := store.UpdateConversationStatus(ctx, "conv-b", ConversationStatusArchived, time.Now().UTC()); err != nil {
		t.Fatalf("UpdateConversationStatus failed: %v", err)
	}

	convs, total, err := store.ListConversations(ctx, ConversationFilter{UserID: "mgr", Status: ConversationStatusArchived, Limit: 10})
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if total != 1 || len(convs) != 1 || convs[0].ID != "conv-b" {
		t.Fatalf("status filter mismatch: total=%d", total)
	}
}

func TestCascadeDelete_ConversationRemovesChildren(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	seedConversation(t, store, "conv-1")

	now := time.Now().UTC()
	msg := &Message{
		ID: "m1", ConversationID: "conv-1", SenderID: "mgr",
		SenderName: "Pat", Content: "hi", ContentType: ContentTypeText, CreatedAt: now,
	}
	if err := store.AddMessage(ctx, msg); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	att := &Attachment{
		ID: "a1", MessageID: "m1", FileName: "lease.pdf",
		FileURL: "https://files.example.com/lease.pdf", UploadedAt: now,
	}
	if err := store.AddAttachment(ctx, att); err != nil {
		t.Fatalf("AddAttachment failed: %v", err)
	}

	if _, err := store.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = 'conv-1'`); err != nil {
		t.Fatalf("deleting conversation: %v", err)
	}

	if _, err := store.GetMessage(ctx, "m1"); err != ErrNotFound {
		t.Errorf("expected message cascade-deleted, got %v", err)
	}
	if _, err := store.GetActiveParticipant(ctx, "conv-1", "mgr"); err != ErrNotFound {
		t.Errorf("expected participants cascade-deleted, got %v", err)
	}
	atts, err := store.ListAttachments(ctx, "m1")
	if err != nil {
		t.Fatalf("ListAttachments failed: %v", err)
	}
	if len(atts) != 0 {
		t.Errorf("expected attachments cascade-deleted, got %d", len(atts))
	}
}
