// Package ai orchestrates the three credit-metered AI capabilities: chat,
// subtask generation, and note-to-task conversion, plus the confirm-action
// step that actually performs a suggested mutation.
// Voice transcription lives in transcription.go.
package ai

import (
	"context"
	"sync"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/ai"
	"github.com/taskwarden/taskwarden/internal/app/domain/credit"
	"github.com/taskwarden/taskwarden/internal/app/domain/event"
	"github.com/taskwarden/taskwarden/internal/app/domain/subtask"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	"github.com/taskwarden/taskwarden/internal/app/services/credits"
	"github.com/taskwarden/taskwarden/internal/app/services/events"
	"github.com/taskwarden/taskwarden/internal/app/services/tasks"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/internal/errors"
)

// Vendor is the external AI backend. The default HTTP-based implementation
// lives in vendor_http.go.
type Vendor interface {
	Chat(ctx context.Context, req ai.ChatRequest, taskContext []string) (ai.ChatResponse, error)
	GenerateSubtasks(ctx context.Context, title, description string, maxSuggestions int) (ai.SubtaskSuggestions, error)
	ConvertNote(ctx context.Context, noteText string) (ai.NoteConversionSuggestion, error)
	Transcribe(ctx context.Context, audio []byte, maxSeconds int) (ai.TranscriptionResult, error)
}

// Config carries the AI service's tunables explicitly rather than reading
// them from package globals.
type Config struct {
	ChatTimeout                   time.Duration
	TranscriptionTimeout          time.Duration
	TranscriptionMaxSeconds       int
	PerTaskWarnAt                 int
	PerTaskHardCapAt               int
	CreditsPerOperation           int
	CreditsPerTranscriptionMinute int
}

type Service struct {
	vendor  Vendor
	credits *credits.Service
	tasks   *tasks.Service
	notes   storage.NoteStore
	bus     *events.Bus
	cfg     Config

	mu       sync.Mutex
	perTask  map[string]int
}

func New(vendor Vendor, creditsSvc *credits.Service, tasksSvc *tasks.Service, notes storage.NoteStore, bus *events.Bus, cfg Config) *Service {
	return &Service{
		vendor:  vendor,
		credits: creditsSvc,
		tasks:   tasksSvc,
		notes:   notes,
		bus:     bus,
		cfg:     cfg,
		perTask: make(map[string]int),
	}
}

// Result wraps a capability's payload with the optional per-task usage
// warning the spec asks the server to surface at the 5th request.
type Result struct {
	Warned bool
}

// checkAndBumpTaskCounter enforces the per-task soft-warn/hard-cap rule.
// The counter is process-local, so it is only approximate across replicas.
func (s *Service) checkAndBumpTaskCounter(taskID string) (warned bool, err error) {
	if taskID == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	count := s.perTask[taskID] + 1
	if count > s.cfg.PerTaskHardCapAt {
		return false, errors.AILimitExceeded(taskID)
	}
	s.perTask[taskID] = count
	return count >= s.cfg.PerTaskWarnAt, nil
}

// Chat answers a chat request, optionally grounded in the caller's task
// titles, and never executes any returned action suggestion itself.
func (s *Service) Chat(ctx context.Context, userID string, req ai.ChatRequest, taskContext []string) (ai.ChatResponse, error) {
	consumed, err := s.consume(ctx, userID, "chat:"+userID)
	if err != nil {
		return ai.ChatResponse{}, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.ChatTimeout)
	defer cancel()

	resp, err := s.vendor.Chat(cctx, req, taskContext)
	if err != nil {
		s.refund(ctx, userID, consumed, "chat:"+userID)
		return ai.ChatResponse{}, errors.AIServiceUnavailable(err)
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeAIChat,
		ActorUserID: userID,
		Source:      event.SourceAI,
		OccurredAt:  time.Now().UTC(),
	})
	return resp, nil
}

// GenerateSubtasks asks the vendor for up to effectiveMax-existingCount
// subtask suggestions for the given task.
func (s *Service) GenerateSubtasks(ctx context.Context, userID, taskID, title, description string, existingCount, effectiveMax int) (ai.SubtaskSuggestions, bool, error) {
	warned, err := s.checkAndBumpTaskCounter(taskID)
	if err != nil {
		return ai.SubtaskSuggestions{}, false, err
	}

	remaining := effectiveMax - existingCount
	if remaining <= 0 {
		return ai.SubtaskSuggestions{}, warned, errors.LimitExceeded("subtask", effectiveMax)
	}

	consumed, err := s.consume(ctx, userID, "subtasks:"+taskID)
	if err != nil {
		return ai.SubtaskSuggestions{}, false, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.ChatTimeout)
	defer cancel()

	suggestions, err := s.vendor.GenerateSubtasks(cctx, title, description, remaining)
	if err != nil {
		s.refund(ctx, userID, consumed, "subtasks:"+taskID)
		return ai.SubtaskSuggestions{}, false, errors.AIServiceUnavailable(err)
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeAISubtasksGenerated,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"task_id": taskID},
		Source:      event.SourceAI,
		OccurredAt:  time.Now().UTC(),
	})
	return suggestions, warned, nil
}

// ConvertNote asks the vendor for a task suggestion derived from a note's
// text. The actual conversion (archiving the note, creating the task) is
// performed by tasks.Service.ConvertToTask once the caller accepts it.
func (s *Service) ConvertNote(ctx context.Context, userID, noteID string) (ai.NoteConversionSuggestion, error) {
	n, err := s.notes.GetNote(ctx, userID, noteID)
	if err != nil {
		return ai.NoteConversionSuggestion{}, err
	}

	consumed, err := s.consume(ctx, userID, "note_convert:"+noteID)
	if err != nil {
		return ai.NoteConversionSuggestion{}, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.ChatTimeout)
	defer cancel()

	suggestion, err := s.vendor.ConvertNote(cctx, n.Text)
	if err != nil {
		s.refund(ctx, userID, consumed, "note_convert:"+noteID)
		return ai.NoteConversionSuggestion{}, errors.AIServiceUnavailable(err)
	}
	return suggestion, nil
}

// ActionParams carries the typed fields a confirmable action kind needs;
// only the fields relevant to kind are read.
type ActionParams struct {
	Version int
	Title   string
}

// ConfirmAction validates and performs one previously-returned chat action
// suggestion. Ownership and achievability are checked by delegating to the
// same tasks.Service methods the rest of the API uses, so a cross-user
// target id reports NOT_FOUND rather than leaking existence.
func (s *Service) ConfirmAction(ctx context.Context, userID string, tier user.Tier, kind ai.ActionKind, targetID string, params ActionParams) error {
	switch kind {
	case ai.ActionCompleteTask:
		_, err := s.tasks.CompleteTask(ctx, userID, targetID, params.Version)
		return err
	case ai.ActionCreateSubtask:
		_, err := s.tasks.CreateSubtask(ctx, userID, tier, targetID, params.Title, subtask.SourceAI)
		return err
	default:
		return errors.ValidationError("kind", "unsupported or not independently confirmable action kind")
	}
}

func (s *Service) consume(ctx context.Context, userID, ref string) (credit.ConsumeResult, error) {
	return s.credits.Consume(ctx, userID, s.cfg.CreditsPerOperation, ref)
}

func (s *Service) refund(ctx context.Context, userID string, consumed credit.ConsumeResult, ref string) {
	for class, amount := range consumed.ConsumedByClass {
		if amount <= 0 {
			continue
		}
		_ = s.credits.Refund(ctx, userID, class, amount, ref)
	}
}
