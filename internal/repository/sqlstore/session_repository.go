package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/vytor/assessment/internal/db"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/repository"
)

var sessionColumns = []string{
	"participant_id", "current_section", "current_index", "started_at", "last_active_at",
	"total_time_spent", "is_completed", "completed_at", "login_count", "backtrack_count", "blur_count",
}

type sessionRepository struct {
	db *db.DB
}

// NewSessionRepository creates a new SessionRepository implementation
func NewSessionRepository(conn *db.DB) repository.SessionRepository {
	return &sessionRepository{db: conn}
}

func scanSession(scan func(...any) error) (models.Session, error) {
	var (
		s                     models.Session
		startedAt, lastActive int64
		completedAt           sql.NullInt64
	)
	err := scan(&s.ParticipantID, &s.CurrentSection, &s.CurrentIndex, &startedAt, &lastActive,
		&s.TotalTimeSpent, &s.IsCompleted, &completedAt, &s.LoginCount, &s.BacktrackCount, &s.BlurCount)
	if err != nil {
		return s, err
	}
	s.StartedAt = fromMillis(startedAt)
	s.LastActiveAt = fromMillis(lastActive)
	if completedAt.Valid {
		t := fromMillis(completedAt.Int64)
		s.CompletedAt = &t
	}
	s.SectionTimes = map[string]float64{}
	return s, nil
}

func (r *sessionRepository) Get(ctx context.Context, participantID string) (*models.Session, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")
	log.Debug("getting session: participant_id=%s", participantID)

	row, err := queryRow(ctx, r.db, r.db.Builder().
		Select(sessionColumns...).
		From("sessions").
		Where(squirrel.Eq{"participant_id": participantID}))
	if err != nil {
		return nil, err
	}
	s, err := scanSession(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("session not found: participant_id=%s", participantID)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get session: %v", err)
		return nil, err
	}

	times, err := r.sectionTimes(ctx, squirrel.Eq{"participant_id": participantID})
	if err != nil {
		log.Error("failed to load section times: %v", err)
		return nil, err
	}
	if t, ok := times[participantID]; ok {
		s.SectionTimes = t
	}
	return &s, nil
}

func (r *sessionRepository) List(ctx context.Context) ([]models.Session, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")
	log.Debug("listing sessions")

	rows, err := query(ctx, r.db, r.db.Builder().
		Select(sessionColumns...).
		From("sessions").
		OrderBy("started_at ASC", "participant_id ASC"))
	if err != nil {
		log.Error("failed to list sessions: %v", err)
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			log.Error("failed to scan session row: %v", err)
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	times, err := r.sectionTimes(ctx, nil)
	if err != nil {
		log.Error("failed to load section times: %v", err)
		return nil, err
	}
	for i := range sessions {
		if t, ok := times[sessions[i].ParticipantID]; ok {
			sessions[i].SectionTimes = t
		}
	}
	log.Debug("found %d sessions", len(sessions))
	return sessions, nil
}

func (r *sessionRepository) sectionTimes(ctx context.Context, where squirrel.Sqlizer) (map[string]map[string]float64, error) {
	q := r.db.Builder().
		Select("participant_id", "section", "seconds").
		From("session_section_times")
	if where != nil {
		q = q.Where(where)
	}
	rows, err := query(ctx, r.db, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]map[string]float64{}
	for rows.Next() {
		var (
			pid, section string
			seconds      float64
		)
		if err := rows.Scan(&pid, &section, &seconds); err != nil {
			return nil, err
		}
		if out[pid] == nil {
			out[pid] = map[string]float64{}
		}
		out[pid][section] = seconds
	}
	return out, rows.Err()
}

func (r *sessionRepository) CreateOrResume(ctx context.Context, participantID, firstSection string, at time.Time) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")
	log.Debug("create or resume session: participant_id=%s", participantID)
	b := r.db.Builder()
	ms := toMillis(at)

	var created bool
	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		n, err := execAffected(ctx, tx, b.Insert("sessions").
			Columns("participant_id", "current_section", "current_index", "started_at", "last_active_at",
				"total_time_spent", "is_completed", "login_count", "backtrack_count", "blur_count").
			Values(participantID, firstSection, 0, ms, ms, 0.0, false, 0, 0, 0).
			Suffix("ON CONFLICT (participant_id) DO NOTHING"))
		if err != nil {
			return err
		}
		if n == 1 {
			created = true
			return nil
		}
		_, err = exec(ctx, tx, b.Update("sessions").
			Set("login_count", squirrel.Expr("login_count + 1")).
			Set("last_active_at", ms).
			Where(squirrel.Eq{"participant_id": participantID}))
		return err
	})
	if err != nil {
		log.Error("failed to create or resume session: %v", err)
		return false, err
	}
	log.Debug("session ready: participant_id=%s created=%t", participantID, created)
	return created, nil
}

func (r *sessionRepository) Touch(ctx context.Context, participantID string, at time.Time) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")
	log.Debug("touching session: participant_id=%s", participantID)

	n, err := execAffected(ctx, r.db, r.db.Builder().
		Update("sessions").
		Set("last_active_at", toMillis(at)).
		Where(squirrel.Eq{"participant_id": participantID}))
	if err != nil {
		log.Error("failed to touch session: %v", err)
		return false, err
	}
	return n > 0, nil
}

func (r *sessionRepository) Increment(ctx context.Context, participantID string, counter models.Counter) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")
	log.Debug("incrementing %s: participant_id=%s", counter, participantID)

	switch counter {
	case models.CounterBacktrack, models.CounterBlur:
	default:
		return false, fmt.Errorf("unknown session counter %q", counter)
	}

	column := string(counter)
	n, err := execAffected(ctx, r.db, r.db.Builder().
		Update("sessions").
		Set(column, squirrel.Expr(column+" + 1")).
		Where(squirrel.Eq{"participant_id": participantID}))
	if err != nil {
		log.Error("failed to increment %s: %v", counter, err)
		return false, err
	}
	return n > 0, nil
}

func (r *sessionRepository) Complete(ctx context.Context, participantID string, at time.Time) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")
	log.Debug("completing session: participant_id=%s", participantID)

	ms := toMillis(at)
	n, err := execAffected(ctx, r.db, r.db.Builder().
		Update("sessions").
		Set("is_completed", true).
		Set("completed_at", ms).
		Set("last_active_at", ms).
		Where(squirrel.Eq{"participant_id": participantID, "is_completed": false}))
	if err != nil {
		log.Error("failed to complete session: %v", err)
		return false, err
	}
	return n > 0, nil
}
