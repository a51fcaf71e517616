package tasks

import (
	"context"

	"github.com/taskwarden/taskwarden/internal/app/domain/template"
)

func (s *Service) CreateTemplate(ctx context.Context, userID string, t template.Template) (template.Template, error) {
	t.UserID = userID
	t.Active = true
	return s.templates.CreateTemplate(ctx, t)
}

func (s *Service) GetTemplate(ctx context.Context, userID, id string) (template.Template, error) {
	return s.templates.GetTemplate(ctx, userID, id)
}

func (s *Service) ListTemplates(ctx context.Context, userID string) ([]template.Template, error) {
	return s.templates.ListTemplates(ctx, userID)
}

func (s *Service) UpdateTemplate(ctx context.Context, userID string, t template.Template) (template.Template, error) {
	existing, err := s.templates.GetTemplate(ctx, userID, t.ID)
	if err != nil {
		return template.Template{}, err
	}
	t.UserID = existing.UserID
	t.CreatedAt = existing.CreatedAt
	return s.templates.UpdateTemplate(ctx, t)
}

// DeleteTemplate removes the template and clears template_id on any
// instances it generated, per the template SET NULL cascade rule.
func (s *Service) DeleteTemplate(ctx context.Context, userID, id string) error {
	if err := s.templates.DeleteTemplate(ctx, userID, id); err != nil {
		return err
	}
	return s.tasks.ClearTemplateReference(ctx, id)
}
