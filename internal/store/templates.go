// ABOUTME: Message template persistence for the SQLite store
// ABOUTME: Visibility is creator-or-public, ordering is by usage popularity

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const templateColumns = `
	id, name, category, subject, content, variables_json,
	usage_count, last_used_at, created_by, is_public, created_at, updated_at
`

// CreateTemplate inserts a new message template.
func (s *SQLiteStore) CreateTemplate(ctx context.Context, tpl *Template) error {
	variables, err := marshalJSON(tpl.Variables)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO message_templates (` + templateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		tpl.ID,
		tpl.Name,
		nullIfEmpty(tpl.Category),
		nullIfEmpty(tpl.Subject),
		tpl.Content,
		variables,
		tpl.UsageCount,
		formatNullableTime(tpl.LastUsedAt),
		nullIfEmpty(tpl.CreatedBy),
		tpl.IsPublic,
		formatTime(tpl.CreatedAt),
		formatTime(tpl.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting template: %w", err)
	}

	s.logger.Debug("created template", "id", tpl.ID, "name", tpl.Name)
	return nil
}

func scanTemplate(scanner interface{ Scan(...any) error }) (*Template, error) {
	var tpl Template
	var category, subject, variables, createdBy sql.NullString
	var lastUsedAt sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&tpl.ID,
		&tpl.Name,
		&category,
		&subject,
		&tpl.Content,
		&variables,
		&tpl.UsageCount,
		&lastUsedAt,
		&createdBy,
		&tpl.IsPublic,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning template: %w", err)
	}

	tpl.Category = category.String
	tpl.Subject = subject.String
	tpl.CreatedBy = createdBy.String

	if err := unmarshalJSON(variables, &tpl.Variables); err != nil {
		return nil, err
	}
	if tpl.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if tpl.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if tpl.LastUsedAt, err = parseNullableTime(lastUsedAt); err != nil {
		return nil, fmt.Errorf("parsing last_used_at: %w", err)
	}

	return &tpl, nil
}

// GetTemplate retrieves a template by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM message_templates WHERE id = ?`
	return scanTemplate(s.db.QueryRowContext(ctx, query, id))
}

// ListTemplates returns the templates visible to a user: their own plus public
// ones, optionally filtered by category, most-used first.
func (s *SQLiteStore) ListTemplates(ctx context.Context, userID, category string) ([]*Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM message_templates
		WHERE (created_by = ? OR is_public = 1)
	`
	args := []any{userID}

	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}

	query += ` ORDER BY usage_count DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating templates: %w", err)
	}

	return templates, nil
}

// IncrementTemplateUsage bumps the usage counter and records the use time.
// The counter only ever increases. Returns ErrNotFound if the template is absent.
func (s *SQLiteStore) IncrementTemplateUsage(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE message_templates
		SET usage_count = usage_count + 1, last_used_at = ?, updated_at = ?
		WHERE id = ?
	`, formatTime(at), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("incrementing template usage: %w", err)
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
