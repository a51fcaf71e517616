package ai

import (
	"context"
	"math"

	"github.com/taskwarden/taskwarden/internal/app/domain/ai"
	"github.com/taskwarden/taskwarden/internal/app/domain/note"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	"github.com/taskwarden/taskwarden/internal/errors"
)

// Transcribe runs voice transcription against audio at most
// TranscriptionMaxSeconds long, pro-tier only, and bills 5 credits per
// started minute. Exceeding the hard cutoff server-side returns a partial
// transcript rather than failing the request outright.
func (s *Service) Transcribe(ctx context.Context, userID string, tier user.Tier, noteID string, audio []byte, declaredSeconds int) (ai.TranscriptionResult, error) {
	if tier != user.TierPro {
		return ai.TranscriptionResult{}, errors.TierRequired("voice_transcription")
	}

	billedSeconds := declaredSeconds
	cutoff := false
	if billedSeconds > s.cfg.TranscriptionMaxSeconds {
		billedSeconds = s.cfg.TranscriptionMaxSeconds
		cutoff = true
	}
	minutes := int(math.Ceil(float64(billedSeconds) / 60.0))
	if minutes < 1 {
		minutes = 1
	}
	amount := minutes * s.cfg.CreditsPerTranscriptionMinute

	consumed, err := s.credits.Consume(ctx, userID, amount, "transcribe:"+noteID)
	if err != nil {
		return ai.TranscriptionResult{}, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.TranscriptionTimeout)
	defer cancel()

	result, err := s.vendor.Transcribe(cctx, audio, s.cfg.TranscriptionMaxSeconds)
	if err != nil {
		s.refund(ctx, userID, consumed, "transcribe:"+noteID)
		return ai.TranscriptionResult{}, errors.AIServiceUnavailable(err)
	}
	if cutoff {
		result.Partial = true
	}

	status := note.TranscriptionCompleted
	if result.Partial {
		status = note.TranscriptionFailed
	}
	if n, err := s.notes.GetNote(ctx, userID, noteID); err == nil {
		n.Text = result.Text
		n.TranscriptionStatus = status
		n.VoiceDurationSeconds = billedSeconds
		_, _ = s.notes.UpdateNote(ctx, n)
	}

	if cutoff {
		return result, errors.MaxDurationExceeded(s.cfg.TranscriptionMaxSeconds)
	}
	return result, nil
}
