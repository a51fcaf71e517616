package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/note"
)

func (s *Store) CreateNote(ctx context.Context, n note.Note) (note.Note, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, text, voice_url, voice_duration_seconds, transcription_status, archived, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, n.ID, n.UserID, n.Text, n.VoiceURL, n.VoiceDurationSeconds, n.TranscriptionStatus, n.Archived, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return note.Note{}, err
	}
	return n, nil
}

func (s *Store) GetNote(ctx context.Context, userID, id string) (note.Note, error) {
	return scanNote(s.db.QueryRowContext(ctx, noteSelect+`WHERE id = $1 AND user_id = $2`, id, userID))
}

func (s *Store) ListNotes(ctx context.Context, userID string, includeArchived bool, offset, limit int) ([]note.Note, int, error) {
	rows, err := s.db.QueryContext(ctx, noteSelect+`
		WHERE user_id = $1 AND ($2 OR NOT archived)
		ORDER BY created_at
	`, userID, includeArchived)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var all []note.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		all = append(all, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return append([]note.Note{}, all[offset:end]...), total, nil
}

func (s *Store) UpdateNote(ctx context.Context, n note.Note) (note.Note, error) {
	existing, err := s.GetNote(ctx, n.UserID, n.ID)
	if err != nil {
		return note.Note{}, err
	}
	n.CreatedAt = existing.CreatedAt
	n.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE notes
		SET text = $3, voice_url = $4, voice_duration_seconds = $5, transcription_status = $6, archived = $7, updated_at = $8
		WHERE id = $1 AND user_id = $2
	`, n.ID, n.UserID, n.Text, n.VoiceURL, n.VoiceDurationSeconds, n.TranscriptionStatus, n.Archived, n.UpdatedAt)
	if err != nil {
		return note.Note{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return note.Note{}, sql.ErrNoRows
	}
	return n, nil
}

func (s *Store) DeleteNote(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) CountActiveNotes(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM notes WHERE user_id = $1 AND NOT archived`, userID).Scan(&count)
	return count, err
}

const noteSelect = `
	SELECT id, user_id, text, voice_url, voice_duration_seconds, transcription_status, archived, created_at, updated_at
	FROM notes
`

func scanNote(row rowScanner) (note.Note, error) {
	var n note.Note
	if err := row.Scan(&n.ID, &n.UserID, &n.Text, &n.VoiceURL, &n.VoiceDurationSeconds, &n.TranscriptionStatus, &n.Archived, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return note.Note{}, err
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return n, nil
}
