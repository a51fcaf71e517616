package memory

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/template"
)

func (s *Store) CreateTemplate(ctx context.Context, t template.Template) (template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.templates[t.ID] = t
	return t, nil
}

func (s *Store) GetTemplate(ctx context.Context, userID, id string) (template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok || t.UserID != userID {
		return template.Template{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *Store) ListTemplates(ctx context.Context, userID string) ([]template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []template.Template
	for _, t := range s.templates {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) UpdateTemplate(ctx context.Context, t template.Template) (template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.templates[t.ID]
	if !ok || existing.UserID != t.UserID {
		return template.Template{}, sql.ErrNoRows
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	s.templates[t.ID] = t
	return t, nil
}

func (s *Store) DeleteTemplate(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok || t.UserID != userID {
		return sql.ErrNoRows
	}
	delete(s.templates, id)
	return nil
}

func (s *Store) ListDueTemplates(ctx context.Context, asOf time.Time) ([]template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []template.Template
	for _, t := range s.templates {
		if t.Active && t.NextDue != nil && !t.NextDue.After(asOf) {
			out = append(out, t)
		}
	}
	return out, nil
}
