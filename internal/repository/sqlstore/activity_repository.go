package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/Masterminds/squirrel"

	"github.com/vytor/assessment/internal/db"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/repository"
)

type activityRepository struct {
	db *db.DB
}

// NewActivityRepository creates a new ActivityRepository implementation
func NewActivityRepository(conn *db.DB) repository.ActivityRepository {
	return &activityRepository{db: conn}
}

func (r *activityRepository) Insert(ctx context.Context, entry models.ActivityLog) error {
	log := logger.FromContext(ctx).WithPrefix("activity_repo")
	log.Debug("inserting activity: participant_id=%s action=%s", entry.ParticipantID, entry.Action)

	if err := r.insert(ctx, r.db, entry); err != nil {
		log.Error("failed to insert activity: %v", err)
		return err
	}
	return nil
}

// InsertForParticipant writes entry only while its participant exists and
// was created no later than the entry. A reset deletes the participant and
// re-seeds it with a newer created_at, so entries queued before the reset
// are dropped here.
func (r *activityRepository) InsertForParticipant(ctx context.Context, entry models.ActivityLog) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("activity_repo").WithField("participant_id", entry.ParticipantID)
	log.Debug("inserting participant activity: action=%s", entry.Action)

	lookup := r.db.Builder().
		Select("created_at").
		From("participants").
		Where(squirrel.Eq{"id": entry.ParticipantID})
	if r.db.Dialect == db.DialectPostgres {
		// Holds off a concurrent purge until the entry is committed.
		lookup = lookup.Suffix("FOR SHARE")
	}

	written := false
	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		row, err := queryRow(ctx, tx, lookup)
		if err != nil {
			return err
		}
		var createdAt int64
		err = row.Scan(&createdAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if createdAt > toMillis(entry.Timestamp) {
			return nil
		}
		if err := r.insert(ctx, tx, entry); err != nil {
			return err
		}
		written = true
		return nil
	})
	if err != nil {
		log.Error("failed to insert activity: %v", err)
		return false, err
	}
	if !written {
		log.Debug("dropped %s activity: participant missing or re-created", entry.Action)
	}
	return written, nil
}

func (r *activityRepository) insert(ctx context.Context, q queryer, entry models.ActivityLog) error {
	meta := []byte("{}")
	if len(entry.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(entry.Metadata); err != nil {
			return err
		}
	}
	_, err := exec(ctx, q, r.db.Builder().
		Insert("activity_logs").
		Columns("id", "participant_id", "action", "created_at", "metadata").
		Values(entry.ID, entry.ParticipantID, string(entry.Action), toMillis(entry.Timestamp), string(meta)))
	return err
}

func (r *activityRepository) List(ctx context.Context) ([]models.ActivityLog, error) {
	return r.list(ctx, r.db.Builder().
		Select("id", "participant_id", "action", "created_at", "metadata").
		From("activity_logs").
		OrderBy("created_at ASC", "id ASC"))
}

func (r *activityRepository) ListByParticipant(ctx context.Context, participantID string) ([]models.ActivityLog, error) {
	return r.list(ctx, r.db.Builder().
		Select("id", "participant_id", "action", "created_at", "metadata").
		From("activity_logs").
		Where(squirrel.Eq{"participant_id": participantID}).
		OrderBy("created_at ASC", "id ASC"))
}

func (r *activityRepository) list(ctx context.Context, q squirrel.SelectBuilder) ([]models.ActivityLog, error) {
	log := logger.FromContext(ctx).WithPrefix("activity_repo")
	log.Debug("listing activity")

	rows, err := query(ctx, r.db, q)
	if err != nil {
		log.Error("failed to list activity: %v", err)
		return nil, err
	}
	defer rows.Close()

	logs := []models.ActivityLog{}
	for rows.Next() {
		var (
			entry     models.ActivityLog
			action    string
			createdAt int64
			meta      string
		)
		if err := rows.Scan(&entry.ID, &entry.ParticipantID, &action, &createdAt, &meta); err != nil {
			log.Error("failed to scan activity row: %v", err)
			return nil, err
		}
		entry.Action = models.ActivityAction(action)
		entry.Timestamp = fromMillis(createdAt)
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &entry.Metadata); err != nil {
				log.Warn("skipping malformed metadata on %s: %v", entry.ID, err)
			}
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
