// ABOUTME: Message template operations: list, create, record usage
// ABOUTME: Templates keep raw placeholders; substitution is the caller's job

package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/IRakow/tenantline/internal/store"
)

// CreateTemplateInput carries a new template. Name and Content are required.
type CreateTemplateInput struct {
	Name      string
	Category  string
	Subject   string
	Content   string
	Variables []string
	IsPublic  bool
}

// ListTemplates returns templates visible to the user: their own plus public
// ones, optionally filtered by category, most-used first.
func (s *Service) ListTemplates(ctx context.Context, user *store.User, category string) ([]*store.Template, error) {
	templates, err := s.store.ListTemplates(ctx, user.ID, category)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	return templates, nil
}

// CreateTemplate stores a new template owned by the user.
func (s *Service) CreateTemplate(ctx context.Context, user *store.User, in CreateTemplateInput) (*store.Template, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}

	now := time.Now().UTC()
	tpl := &store.Template{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Category:  in.Category,
		Subject:   in.Subject,
		Content:   in.Content,
		Variables: in.Variables,
		CreatedBy: user.ID,
		IsPublic:  in.IsPublic,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("creating template: %w", err)
	}
	s.logger.Info("template created",
		"template_id", tpl.ID,
		"name", tpl.Name,
		"created_by", user.ID)
	return tpl, nil
}

// UseTemplate records one use of a visible template and returns it with raw
// placeholder text intact.
func (s *Service) UseTemplate(ctx context.Context, user *store.User, templateID string) (*store.Template, error) {
	tpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("loading template: %w", err)
	}
	if tpl.CreatedBy != user.ID && !tpl.IsPublic {
		return nil, ErrAccessDenied
	}
	if err := s.store.IncrementTemplateUsage(ctx, templateID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("recording template use: %w", err)
	}
	return s.store.GetTemplate(ctx, templateID)
}
