package tasks

import (
	"context"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/event"
	"github.com/taskwarden/taskwarden/internal/app/domain/note"
	"github.com/taskwarden/taskwarden/internal/app/domain/task"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	"github.com/taskwarden/taskwarden/internal/errors"
)

func (s *Service) CreateNote(ctx context.Context, userID string, tier user.Tier, n note.Note) (note.Note, error) {
	effectiveMax, err := s.achievements.EffectiveNoteMax(ctx, userID, tier, s.limits.FreeNoteMax, s.limits.ProNoteMax)
	if err != nil {
		return note.Note{}, err
	}
	count, err := s.notes.CountActiveNotes(ctx, userID)
	if err != nil {
		return note.Note{}, err
	}
	if count >= effectiveMax {
		return note.Note{}, errors.LimitExceeded("note", effectiveMax)
	}

	n.UserID = userID
	if n.VoiceURL != "" {
		n.TranscriptionStatus = note.TranscriptionPending
	}
	created, err := s.notes.CreateNote(ctx, n)
	if err != nil {
		return note.Note{}, err
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeNoteCreated,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"note_id": created.ID},
		Source:      event.SourceUser,
		OccurredAt:  time.Now().UTC(),
	})
	return created, nil
}

func (s *Service) GetNote(ctx context.Context, userID, id string) (note.Note, error) {
	return s.notes.GetNote(ctx, userID, id)
}

func (s *Service) ListNotes(ctx context.Context, userID string, includeArchived bool, offset, limit int) ([]note.Note, int, error) {
	return s.notes.ListNotes(ctx, userID, includeArchived, offset, limit)
}

// DeleteNote permanently removes a note. Unlike tasks, deleted notes are
// not tombstoned since conversion already preserves a note's content by
// archiving rather than deleting it.
func (s *Service) DeleteNote(ctx context.Context, userID, id string) error {
	if _, err := s.notes.GetNote(ctx, userID, id); err != nil {
		return err
	}
	if err := s.notes.DeleteNote(ctx, userID, id); err != nil {
		return err
	}
	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeNoteDeleted,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"note_id": id},
		Source:      event.SourceUser,
		OccurredAt:  time.Now().UTC(),
	})
	return nil
}

func (s *Service) UpdateNoteText(ctx context.Context, userID, id, text string) (note.Note, error) {
	n, err := s.notes.GetNote(ctx, userID, id)
	if err != nil {
		return note.Note{}, err
	}
	n.Text = text
	return s.notes.UpdateNote(ctx, n)
}

// MarkTranscription updates a voice note's transcription outcome once the
// AI orchestration layer's vendor call returns or fails.
func (s *Service) MarkTranscription(ctx context.Context, userID, id, text string, status note.TranscriptionStatus) (note.Note, error) {
	n, err := s.notes.GetNote(ctx, userID, id)
	if err != nil {
		return note.Note{}, err
	}
	if text != "" {
		n.Text = text
	}
	n.TranscriptionStatus = status
	return s.notes.UpdateNote(ctx, n)
}

// ConvertedTaskInput is the set of fields the AI-generated (or
// user-edited) suggestion contributes to the task created from a note.
type ConvertedTaskInput struct {
	Title            string
	Description      string
	Priority          task.Priority
	DueDate           *time.Time
	EstimatedMinutes  *int
}

// ConvertToTask archives the note and creates a task from the accepted
// suggestion, emitting NoteConverted (which the achievement engine
// counts toward the notes category).
func (s *Service) ConvertToTask(ctx context.Context, userID string, tier user.Tier, noteID string, in ConvertedTaskInput) (task.Instance, error) {
	n, err := s.notes.GetNote(ctx, userID, noteID)
	if err != nil {
		return task.Instance{}, err
	}
	if n.Archived {
		return task.Instance{}, errors.Conflict("note already converted")
	}

	created, err := s.CreateTask(ctx, userID, tier, CreateTaskInput{
		Title:            in.Title,
		Description:      in.Description,
		Priority:         in.Priority,
		DueDate:          in.DueDate,
		EstimatedMinutes: in.EstimatedMinutes,
	})
	if err != nil {
		return task.Instance{}, err
	}

	n.Archived = true
	if _, err := s.notes.UpdateNote(ctx, n); err != nil {
		return task.Instance{}, err
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeNoteConverted,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"note_id": noteID, "task_id": created.ID},
		Source:      event.SourceUser,
		OccurredAt:  time.Now().UTC(),
	})
	return created, nil
}
