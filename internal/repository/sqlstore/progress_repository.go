package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/vytor/assessment/internal/db"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/repository"
)

type progressRepository struct {
	db *db.DB
}

// NewProgressRepository creates a new ProgressRepository implementation
func NewProgressRepository(conn *db.DB) repository.ProgressRepository {
	return &progressRepository{db: conn}
}

// Record applies the session update, the section-time increment and the answer
// upsert in one transaction. The session update is conditional on the session
// not being completed, so a completed session is never written.
func (r *progressRepository) Record(ctx context.Context, u models.ProgressUpdate) (models.ProgressOutcome, error) {
	log := logger.FromContext(ctx).WithPrefix("progress_repo").WithFields(map[string]any{
		"participant_id": u.ParticipantID,
		"question_id":    u.QuestionID,
	})
	log.Debug("recording progress: elapsed=%.3fs index=%d", u.ElapsedSeconds, u.CurrentIndex)
	b := r.db.Builder()
	ms := toMillis(u.At)

	outcome := models.ProgressRecorded
	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		n, err := execAffected(ctx, tx, b.Update("sessions").
			Set("current_index", u.CurrentIndex).
			Set("current_section", u.Section).
			Set("last_active_at", ms).
			Set("total_time_spent", squirrel.Expr("total_time_spent + ?", u.ElapsedSeconds)).
			Where(squirrel.Eq{"participant_id": u.ParticipantID, "is_completed": false}))
		if err != nil {
			return err
		}
		if n == 0 {
			outcome, err = r.missOutcome(ctx, tx, u.ParticipantID)
			return err
		}

		if _, err := exec(ctx, tx, b.Insert("session_section_times").
			Columns("participant_id", "section", "seconds").
			Values(u.ParticipantID, u.Section, u.ElapsedSeconds).
			Suffix("ON CONFLICT (participant_id, section) DO UPDATE SET seconds = session_section_times.seconds + excluded.seconds")); err != nil {
			return err
		}

		_, err = exec(ctx, tx, b.Insert("answers").
			Columns("participant_id", "question_id", "section", "answer_text", "time_spent", "updated_at").
			Values(u.ParticipantID, u.QuestionID, u.Section, u.AnswerText, u.ElapsedSeconds, ms).
			Suffix("ON CONFLICT (participant_id, question_id) DO UPDATE SET " +
				"section = excluded.section, " +
				"answer_text = excluded.answer_text, " +
				"time_spent = answers.time_spent + excluded.time_spent, " +
				"updated_at = excluded.updated_at"))
		return err
	})
	if err != nil {
		log.Error("failed to record progress: %v", err)
		return outcome, err
	}
	log.Debug("progress outcome: %d", outcome)
	return outcome, nil
}

func (r *progressRepository) missOutcome(ctx context.Context, tx *sql.Tx, participantID string) (models.ProgressOutcome, error) {
	row, err := queryRow(ctx, tx, r.db.Builder().
		Select("is_completed").
		From("sessions").
		Where(squirrel.Eq{"participant_id": participantID}))
	if err != nil {
		return models.ProgressSessionMissing, err
	}
	var completed bool
	err = row.Scan(&completed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProgressSessionMissing, nil
	}
	if err != nil {
		return models.ProgressSessionMissing, err
	}
	if completed {
		return models.ProgressSessionCompleted, nil
	}
	return models.ProgressSessionMissing, fmt.Errorf("session %s changed during update", participantID)
}
