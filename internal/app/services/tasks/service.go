// Package tasks implements TaskInstance/Subtask/Template CRUD, optimistic
// locking, tier-and-achievement-adjusted limits, and the cascade/auto-
// complete rules.
package tasks

import (
	"context"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/event"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	"github.com/taskwarden/taskwarden/internal/app/services/achievements"
	"github.com/taskwarden/taskwarden/internal/app/services/events"
	"github.com/taskwarden/taskwarden/internal/app/services/recovery"
	"github.com/taskwarden/taskwarden/internal/app/services/reminders"
	"github.com/taskwarden/taskwarden/internal/app/storage"
)

// Limits carries the base (pre-perk) caps per tier; achievement perks are
// added on top by the achievements service.
type Limits struct {
	FreeTaskMax    int
	ProTaskMax     int
	FreeNoteMax    int
	ProNoteMax     int
	FreeSubtaskMax int
	ProSubtaskMax  int
}

func (l Limits) taskBase(tier user.Tier) int {
	if tier == user.TierPro {
		return l.ProTaskMax
	}
	return l.FreeTaskMax
}

func (l Limits) noteBase(tier user.Tier) int {
	if tier == user.TierPro {
		return l.ProNoteMax
	}
	return l.FreeNoteMax
}

func (l Limits) subtaskBase(tier user.Tier) int {
	if tier == user.TierPro {
		return l.ProSubtaskMax
	}
	return l.FreeSubtaskMax
}

// maxDueDateHorizon is the due-date policy window.
const maxDueDateHorizon = 365 * 24 * time.Hour

type Service struct {
	tasks        storage.TaskStore
	subtasks     storage.SubtaskStore
	templates    storage.TemplateStore
	notes        storage.NoteStore
	achievements *achievements.Service
	recovery     *recovery.Service
	reminders    *reminders.Service
	bus          *events.Bus
	limits       Limits
}

func New(
	tasks storage.TaskStore,
	subtasks storage.SubtaskStore,
	templates storage.TemplateStore,
	notes storage.NoteStore,
	ach *achievements.Service,
	rec *recovery.Service,
	rem *reminders.Service,
	bus *events.Bus,
	limits Limits,
) *Service {
	s := &Service{
		tasks:        tasks,
		subtasks:     subtasks,
		templates:    templates,
		notes:        notes,
		achievements: ach,
		recovery:     rec,
		reminders:    rem,
		bus:          bus,
		limits:       limits,
	}
	s.registerHandlers()
	return s
}

// registerHandlers wires the standard subtask-driven auto-complete handler
// when a subtask completes, check whether every
// sibling is now complete and if so auto-complete the parent task.
func (s *Service) registerHandlers() {
	s.bus.Subscribe(event.TypeSubtaskCompleted, func(ctx context.Context, e event.Event) error {
		taskID := e.EntityIDs["task_id"]
		if taskID == "" {
			return nil
		}
		return s.maybeAutoComplete(ctx, e.ActorUserID, taskID)
	})
}
