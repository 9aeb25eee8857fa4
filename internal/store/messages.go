// ABOUTME: Message and attachment persistence for the SQLite store
// ABOUTME: Message insert is transactionally coupled with the conversation timestamp bump

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const messageColumns = `
	id, conversation_id, sender_id, sender_name, sender_type,
	content, content_type, metadata_json,
	is_read, is_edited, is_deleted,
	created_at, edited_at, read_at
`

func insertMessage(ctx context.Context, tx *sql.Tx, msg *Message) error {
	metadata, err := marshalJSON(msg.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		nullIfEmpty(msg.SenderID),
		msg.SenderName,
		nullIfEmpty(msg.SenderType),
		msg.Content,
		msg.ContentType,
		metadata,
		msg.IsRead,
		msg.IsEdited,
		msg.IsDeleted,
		formatTime(msg.CreatedAt),
		formatNullableTime(msg.EditedAt),
		formatNullableTime(msg.ReadAt),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	// Advance conversation timestamps alongside the insert so a reader never
	// observes a new message without an updated conversation summary.
	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(msg.CreatedAt),
		formatTime(msg.CreatedAt),
		msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("bumping conversation timestamps: %w", err)
	}

	return nil
}

// AddMessage appends a message to its conversation and advances the
// conversation's last_message_at/updated_at in the same transaction.
func (s *SQLiteStore) AddMessage(ctx context.Context, msg *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertMessage(ctx, tx, msg); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debug("added message", "id", msg.ID, "conversation", msg.ConversationID)
	return nil
}

func scanMessage(scanner interface{ Scan(...any) error }) (*Message, error) {
	var msg Message
	var senderID, senderType, metadata sql.NullString
	var createdAt string
	var editedAt, readAt sql.NullString

	err := scanner.Scan(
		&msg.ID,
		&msg.ConversationID,
		&senderID,
		&msg.SenderName,
		&senderType,
		&msg.Content,
		&msg.ContentType,
		&metadata,
		&msg.IsRead,
		&msg.IsEdited,
		&msg.IsDeleted,
		&createdAt,
		&editedAt,
		&readAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}

	msg.SenderID = senderID.String
	msg.SenderType = senderType.String

	if err := unmarshalJSON(metadata, &msg.Metadata); err != nil {
		return nil, err
	}

	if msg.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if msg.EditedAt, err = parseNullableTime(editedAt); err != nil {
		return nil, fmt.Errorf("parsing edited_at: %w", err)
	}
	if msg.ReadAt, err = parseNullableTime(readAt); err != nil {
		return nil, fmt.Errorf("parsing read_at: %w", err)
	}

	return &msg, nil
}

// GetMessage retrieves a message by ID regardless of its deleted flag.
// Returns ErrNotFound if the row doesn't exist.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	return scanMessage(s.db.QueryRowContext(ctx, query, id))
}

// ListMessages returns one page of non-deleted messages ordered by created_at
// descending (newest first), plus the total non-deleted count. Callers that
// need oldest-first display order reverse the page themselves.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*Message, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND is_deleted = 0`,
		conversationID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting messages: %w", err)
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ? AND is_deleted = 0
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, total, nil
}

// GetLastMessage returns the newest non-deleted message of a conversation.
// Returns ErrNotFound for an empty conversation.
func (s *SQLiteStore) GetLastMessage(ctx context.Context, conversationID string) (*Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ? AND is_deleted = 0
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanMessage(s.db.QueryRowContext(ctx, query, conversationID))
}

// CountUnread counts non-deleted messages in the conversation that were
// authored by someone other than the given user and are still unread.
func (s *SQLiteStore) CountUnread(ctx context.Context, conversationID, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = ?
		  AND is_deleted = 0
		  AND is_read = 0
		  AND (sender_id IS NULL OR sender_id != ?)
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return count, nil
}

// MarkConversationRead marks every unread message in the conversation not
// authored by the reader as read and advances the reader's participant
// last_read_at, in one transaction. Returns the number of messages marked;
// a second call in succession returns zero.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, conversationID, userID string, at time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE messages
		SET is_read = 1, read_at = ?
		WHERE conversation_id = ?
		  AND is_read = 0
		  AND (sender_id IS NULL OR sender_id != ?)
	`, formatTime(at), conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}

	marked, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversation_participants
		SET last_read_at = ?
		WHERE conversation_id = ? AND user_id = ? AND is_active = 1
	`, formatTime(at), conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("updating last_read_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing read marks: %w", err)
	}

	if marked > 0 {
		s.logger.Debug("marked messages read",
			"conversation", conversationID,
			"reader", userID,
			"count", marked,
		)
	}
	return marked, nil
}

// SoftDeleteMessage flags a message as deleted without removing the row.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) SoftDeleteMessage(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("soft-deleting message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchMessages performs a case-insensitive substring search over non-deleted
// message content, restricted to conversations where the user is an active
// participant. Results are newest first.
func (s *SQLiteStore) SearchMessages(ctx context.Context, userID, query string, limit int) ([]*SearchResult, error) {
	sqlQuery := `
		SELECT m.id, m.conversation_id, COALESCE(c.subject, ''), m.content, m.sender_name, m.created_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.is_deleted = 0
		  AND m.conversation_id IN (
			SELECT conversation_id FROM conversation_participants
			WHERE user_id = ? AND is_active = 1
		  )
		  AND lower(m.content) LIKE '%' || lower(?) || '%'
		ORDER BY m.created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, sqlQuery, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		var r SearchResult
		var createdAt string
		if err := rows.Scan(&r.MessageID, &r.ConversationID, &r.ConversationSubject, &r.Content, &r.SenderName, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}

// AddAttachment inserts an attachment record for a message.
func (s *SQLiteStore) AddAttachment(ctx context.Context, att *Attachment) error {
	metadata, err := marshalJSON(att.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO message_attachments
			(id, message_id, file_name, file_type, file_size, file_url, mime_type, thumbnail_url, metadata_json, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		att.ID,
		att.MessageID,
		att.FileName,
		nullIfEmpty(att.FileType),
		att.FileSize,
		att.FileURL,
		nullIfEmpty(att.MimeType),
		nullIfEmpty(att.ThumbnailURL),
		metadata,
		formatTime(att.UploadedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting attachment: %w", err)
	}
	return nil
}

// ListAttachments returns the attachments of a message in upload order.
func (s *SQLiteStore) ListAttachments(ctx context.Context, messageID string) ([]*Attachment, error) {
	query := `
		SELECT id, message_id, file_name, file_type, file_size, file_url, mime_type, thumbnail_url, metadata_json, uploaded_at
		FROM message_attachments
		WHERE message_id = ?
		ORDER BY uploaded_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*Attachment
	for rows.Next() {
		var att Attachment
		var fileType, mimeType, thumbnailURL, metadata sql.NullString
		var fileSize sql.NullInt64
		var uploadedAt string

		err := rows.Scan(
			&att.ID,
			&att.MessageID,
			&att.FileName,
			&fileType,
			&fileSize,
			&att.FileURL,
			&mimeType,
			&thumbnailURL,
			&metadata,
			&uploadedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning attachment: %w", err)
		}

		att.FileType = fileType.String
		att.FileSize = fileSize.Int64
		att.MimeType = mimeType.String
		att.ThumbnailURL = thumbnailURL.String
		if err := unmarshalJSON(metadata, &att.Metadata); err != nil {
			return nil, err
		}
		if att.UploadedAt, err = parseTime(uploadedAt); err != nil {
			return nil, fmt.Errorf("parsing uploaded_at: %w", err)
		}

		attachments = append(attachments, &att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attachments: %w", err)
	}

	return attachments, nil
}
