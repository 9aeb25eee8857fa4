// ABOUTME: Conversation and participant persistence for the SQLite store
// ABOUTME: Covers transactional conversation creation, inbox listing with filters, and membership lookups

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const conversationColumns = `
	id, type, status, created_by, subject,
	property_id, property_name, unit_id, unit_number, tenant_id, maintenance_request_id,
	is_urgent, tags_json, metadata_json,
	created_at, updated_at, last_message_at
`

// CreateConversation inserts a conversation together with its initial
// participants and, when non-nil, the first message. All inserts commit in a
// single transaction so a failure leaves no partial conversation behind.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation, participants []*Participant, initial *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertConversation(ctx, tx, conv); err != nil {
		return err
	}

	for _, p := range participants {
		if err := insertParticipant(ctx, tx, p); err != nil {
			return err
		}
	}

	if initial != nil {
		if err := insertMessage(ctx, tx, initial); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing conversation: %w", err)
	}

	s.logger.Debug("created conversation",
		"id", conv.ID,
		"participants", len(participants),
		"with_message", initial != nil,
	)
	return nil
}

func insertConversation(ctx context.Context, tx *sql.Tx, conv *Conversation) error {
	tags, err := marshalJSON(conv.Tags)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(conv.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		conv.ID,
		conv.Type,
		conv.Status,
		conv.CreatedBy,
		nullIfEmpty(conv.Subject),
		nullIfEmpty(conv.PropertyID),
		nullIfEmpty(conv.PropertyName),
		nullIfEmpty(conv.UnitID),
		nullIfEmpty(conv.UnitNumber),
		nullIfEmpty(conv.TenantID),
		nullIfEmpty(conv.MaintenanceRequestID),
		conv.IsUrgent,
		tags,
		metadata,
		formatTime(conv.CreatedAt),
		formatTime(conv.UpdatedAt),
		formatTime(conv.LastMessageAt),
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// nullIfEmpty maps "" to SQL NULL for optional TEXT columns.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanConversation(scanner interface{ Scan(...any) error }) (*Conversation, error) {
	var conv Conversation
	var subject, propertyID, propertyName, unitID, unitNumber, tenantID, maintID sql.NullString
	var tags, metadata sql.NullString
	var createdAt, updatedAt, lastMessageAt string

	err := scanner.Scan(
		&conv.ID,
		&conv.Type,
		&conv.Status,
		&conv.CreatedBy,
		&subject,
		&propertyID,
		&propertyName,
		&unitID,
		&unitNumber,
		&tenantID,
		&maintID,
		&conv.IsUrgent,
		&tags,
		&metadata,
		&createdAt,
		&updatedAt,
		&lastMessageAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	conv.Subject = subject.String
	conv.PropertyID = propertyID.String
	conv.PropertyName = propertyName.String
	conv.UnitID = unitID.String
	conv.UnitNumber = unitNumber.String
	conv.TenantID = tenantID.String
	conv.MaintenanceRequestID = maintID.String

	if err := unmarshalJSON(tags, &conv.Tags); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(metadata, &conv.Metadata); err != nil {
		return nil, err
	}

	if conv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if conv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if conv.LastMessageAt, err = parseTime(lastMessageAt); err != nil {
		return nil, fmt.Errorf("parsing last_message_at: %w", err)
	}

	return &conv, nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`
	return scanConversation(s.db.QueryRowContext(ctx, query, id))
}

// ListConversations returns one page of the user's conversations ordered by
// last_message_at descending, plus the total count matching the same filter.
// Only conversations where the user is an active participant are visible.
func (s *SQLiteStore) ListConversations(ctx context.Context, filter ConversationFilter) ([]*Conversation, int, error) {
	where := `
		EXISTS (
			SELECT 1 FROM conversation_participants me
			WHERE me.conversation_id = c.id
			  AND me.user_id = ?
			  AND me.is_active = 1
		)
	`
	args := []any{filter.UserID}

	switch filter.Type {
	case "", "all":
		// No extra predicate
	case "unread":
		where += `
			AND EXISTS (
				SELECT 1 FROM messages m
				WHERE m.conversation_id = c.id
				  AND m.is_deleted = 0
				  AND m.is_read = 0
				  AND (m.sender_id IS NULL OR m.sender_id != ?)
			)
		`
		args = append(args, filter.UserID)
	case "tenants", "owners", "vendors":
		// Match on the type of the other active participants, not the
		// requester's own membership row.
		ptype := map[string]string{
			"tenants": ParticipantTypeTenant,
			"owners":  ParticipantTypeOwner,
			"vendors": ParticipantTypeVendor,
		}[filter.Type]
		where += `
			AND EXISTS (
				SELECT 1 FROM conversation_participants other
				WHERE other.conversation_id = c.id
				  AND other.is_active = 1
				  AND (other.user_id IS NULL OR other.user_id != ?)
				  AND other.participant_type = ?
			)
		`
		args = append(args, filter.UserID, ptype)
	default:
		return nil, 0, fmt.Errorf("unknown conversation filter type %q", filter.Type)
	}

	if filter.Status != "" {
		where += ` AND c.status = ?`
		args = append(args, filter.Status)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM conversations c WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting conversations: %w", err)
	}

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		WHERE ` + where + `
		ORDER BY c.last_message_at DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, 0, err
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating conversations: %w", err)
	}

	return conversations, total, nil
}

// UpdateConversationStatus sets the conversation status and bumps updated_at.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) UpdateConversationStatus(ctx context.Context, id, status string, at time.Time) error {
	query := `UPDATE conversations SET status = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, status, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("updating conversation status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated conversation status", "id", id, "status", status)
	return nil
}

const participantColumns = `
	id, conversation_id, user_id, participant_type, participant_name,
	participant_email, participant_phone,
	can_reply, can_add_participants, is_admin,
	joined_at, left_at, last_read_at, is_active,
	email_notifications, sms_notifications, push_notifications
`

func insertParticipant(ctx context.Context, tx *sql.Tx, p *Participant) error {
	query := `
		INSERT INTO conversation_participants (` + participantColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		p.ID,
		p.ConversationID,
		nullIfEmpty(p.UserID),
		p.Type,
		p.Name,
		nullIfEmpty(p.Email),
		nullIfEmpty(p.Phone),
		p.CanReply,
		p.CanAddParticipants,
		p.IsAdmin,
		formatTime(p.JoinedAt),
		formatNullableTime(p.LeftAt),
		formatNullableTime(p.LastReadAt),
		p.IsActive,
		p.EmailNotifications,
		p.SMSNotifications,
		p.PushNotifications,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateParticipant
		}
		return fmt.Errorf("inserting participant: %w", err)
	}
	return nil
}

// AddParticipant inserts a participant row. Returns ErrDuplicateParticipant
// if the user already has a row in the conversation.
func (s *SQLiteStore) AddParticipant(ctx context.Context, p *Participant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertParticipant(ctx, tx, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing participant: %w", err)
	}

	s.logger.Debug("added participant", "id", p.ID, "conversation", p.ConversationID)
	return nil
}

func scanParticipant(scanner interface{ Scan(...any) error }) (*Participant, error) {
	var p Participant
	var userID, email, phone sql.NullString
	var joinedAt string
	var leftAt, lastReadAt sql.NullString

	err := scanner.Scan(
		&p.ID,
		&p.ConversationID,
		&userID,
		&p.Type,
		&p.Name,
		&email,
		&phone,
		&p.CanReply,
		&p.CanAddParticipants,
		&p.IsAdmin,
		&joinedAt,
		&leftAt,
		&lastReadAt,
		&p.IsActive,
		&p.EmailNotifications,
		&p.SMSNotifications,
		&p.PushNotifications,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning participant: %w", err)
	}

	p.UserID = userID.String
	p.Email = email.String
	p.Phone = phone.String

	if p.JoinedAt, err = parseTime(joinedAt); err != nil {
		return nil, fmt.Errorf("parsing joined_at: %w", err)
	}
	if p.LeftAt, err = parseNullableTime(leftAt); err != nil {
		return nil, fmt.Errorf("parsing left_at: %w", err)
	}
	if p.LastReadAt, err = parseNullableTime(lastReadAt); err != nil {
		return nil, fmt.Errorf("parsing last_read_at: %w", err)
	}

	return &p, nil
}

// GetActiveParticipant looks up the active membership row for (conversation,
// user). Returns ErrNotFound when the user is not an active participant,
// including when the conversation itself doesn't exist.
func (s *SQLiteStore) GetActiveParticipant(ctx context.Context, conversationID, userID string) (*Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM conversation_participants
		WHERE conversation_id = ? AND user_id = ? AND is_active = 1
	`
	return scanParticipant(s.db.QueryRowContext(ctx, query, conversationID, userID))
}

// ListActiveParticipants returns all active participants of a conversation
// in join order.
func (s *SQLiteStore) ListActiveParticipants(ctx context.Context, conversationID string) ([]*Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM conversation_participants
		WHERE conversation_id = ? AND is_active = 1
		ORDER BY joined_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	var participants []*Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participants: %w", err)
	}

	return participants, nil
}
