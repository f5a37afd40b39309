package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"

	"github.com/vytor/assessment/internal/db"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/repository"
)

var participantColumns = []string{"id", "name", "pin_hash", "role", "language", "created_at"}

type participantRepository struct {
	db *db.DB
}

// NewParticipantRepository creates a new ParticipantRepository implementation
func NewParticipantRepository(conn *db.DB) repository.ParticipantRepository {
	return &participantRepository{db: conn}
}

func scanParticipant(scan func(...any) error) (models.Participant, error) {
	var (
		p         models.Participant
		role      string
		language  sql.NullString
		createdAt int64
	)
	if err := scan(&p.ID, &p.Name, &p.PINHash, &role, &language, &createdAt); err != nil {
		return p, err
	}
	p.Role = models.Role(role)
	p.Language = models.Language(language.String)
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}

func (r *participantRepository) Get(ctx context.Context, id string) (*models.Participant, error) {
	log := logger.FromContext(ctx).WithPrefix("participant_repo")
	log.Debug("getting participant: id=%s", id)

	row, err := queryRow(ctx, r.db, r.db.Builder().
		Select(participantColumns...).
		From("participants").
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	p, err := scanParticipant(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("participant not found: id=%s", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get participant: %v", err)
		return nil, err
	}
	return &p, nil
}

func (r *participantRepository) FindByName(ctx context.Context, name string) ([]models.Participant, error) {
	log := logger.FromContext(ctx).WithPrefix("participant_repo")
	log.Debug("finding participants by name: %s", name)

	return r.list(ctx, r.db.Builder().
		Select(participantColumns...).
		From("participants").
		Where(squirrel.Eq{"name": name}).
		OrderBy("created_at ASC", "id ASC"))
}

func (r *participantRepository) List(ctx context.Context, role models.Role) ([]models.Participant, error) {
	log := logger.FromContext(ctx).WithPrefix("participant_repo")
	log.Debug("listing participants: role=%q", role)

	q := r.db.Builder().
		Select(participantColumns...).
		From("participants").
		OrderBy("created_at ASC", "id ASC")
	if role != "" {
		q = q.Where(squirrel.Eq{"role": string(role)})
	}
	return r.list(ctx, q)
}

func (r *participantRepository) list(ctx context.Context, q squirrel.SelectBuilder) ([]models.Participant, error) {
	log := logger.FromContext(ctx).WithPrefix("participant_repo")

	rows, err := query(ctx, r.db, q)
	if err != nil {
		log.Error("failed to query participants: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows.Scan)
		if err != nil {
			log.Error("failed to scan participant row: %v", err)
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *participantRepository) Insert(ctx context.Context, p models.Participant) error {
	log := logger.FromContext(ctx).WithPrefix("participant_repo")
	log.Debug("inserting participant: id=%s", p.ID)

	if err := insertParticipant(ctx, r.db, r.db.Builder(), p); err != nil {
		log.Error("failed to insert participant %s: %v", p.ID, err)
		return err
	}
	return nil
}

func insertParticipant(ctx context.Context, q queryer, b squirrel.StatementBuilderType, p models.Participant) error {
	var language any
	if p.Language != "" {
		language = string(p.Language)
	}
	_, err := exec(ctx, q, b.Insert("participants").
		Columns(participantColumns...).
		Values(p.ID, p.Name, p.PINHash, string(p.Role), language, toMillis(p.CreatedAt)))
	return err
}

func (r *participantRepository) UpdateLanguage(ctx context.Context, id string, lang models.Language) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("participant_repo")
	log.Debug("updating language: id=%s lang=%s", id, lang)

	n, err := execAffected(ctx, r.db, r.db.Builder().
		Update("participants").
		Set("language", string(lang)).
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		log.Error("failed to update language: %v", err)
		return false, err
	}
	return n > 0, nil
}

func (r *participantRepository) UpdateCredentials(ctx context.Context, id, name, pinHash string) error {
	log := logger.FromContext(ctx).WithPrefix("participant_repo")
	log.Debug("updating credentials: id=%s", id)

	_, err := exec(ctx, r.db, r.db.Builder().
		Update("participants").
		Set("name", name).
		Set("pin_hash", pinHash).
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		log.Error("failed to update credentials: %v", err)
	}
	return err
}

func (r *participantRepository) Adopt(ctx context.Context, legacyID string, canonical models.Participant) error {
	log := logger.FromContext(ctx).WithPrefix("participant_repo")
	log.Info("adopting legacy participant %s as %s", legacyID, canonical.ID)
	b := r.db.Builder()

	return tx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertParticipant(ctx, tx, b, canonical); err != nil {
			log.Error("failed to create canonical participant %s: %v", canonical.ID, err)
			return err
		}
		// Rows keyed by the canonical id without an identity are orphans.
		if err := deleteOwned(ctx, tx, b, canonical.ID); err != nil {
			log.Error("failed to clear orphans for %s: %v", canonical.ID, err)
			return err
		}
		if err := reassign(ctx, tx, b, legacyID, canonical.ID, "sessions", "answers", "activity_logs"); err != nil {
			log.Error("failed to move data from %s to %s: %v", legacyID, canonical.ID, err)
			return err
		}
		if _, err := exec(ctx, tx, b.Delete("participants").Where(squirrel.Eq{"id": legacyID})); err != nil {
			log.Error("failed to delete legacy participant %s: %v", legacyID, err)
			return err
		}
		return nil
	})
}

func (r *participantRepository) Merge(ctx context.Context, canonicalID, duplicateID string, keepDuplicate bool) error {
	log := logger.FromContext(ctx).WithPrefix("participant_repo")
	log.Info("merging duplicate %s into %s: keep_duplicate=%t", duplicateID, canonicalID, keepDuplicate)
	b := r.db.Builder()

	return tx(ctx, r.db, func(tx *sql.Tx) error {
		if keepDuplicate {
			if err := deleteOwned(ctx, tx, b, canonicalID); err != nil {
				return err
			}
			if err := reassign(ctx, tx, b, duplicateID, canonicalID, "sessions", "answers"); err != nil {
				return err
			}
		} else if err := deleteOwned(ctx, tx, b, duplicateID); err != nil {
			return err
		}
		if err := reassign(ctx, tx, b, duplicateID, canonicalID, "activity_logs"); err != nil {
			return err
		}
		if _, err := exec(ctx, tx, b.Delete("participants").Where(squirrel.Eq{"id": duplicateID})); err != nil {
			log.Error("failed to delete duplicate participant %s: %v", duplicateID, err)
			return err
		}
		return nil
	})
}

func (r *participantRepository) Purge(ctx context.Context, id string) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("participant_repo")
	log.Debug("purging participant and related data: id=%s", id)
	b := r.db.Builder()

	var existed bool
	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		if err := deleteOwned(ctx, tx, b, id); err != nil {
			log.Error("failed to delete data for %s: %v", id, err)
			return err
		}
		n, err := execAffected(ctx, tx, b.Delete("participants").Where(squirrel.Eq{"id": id}))
		if err != nil {
			log.Error("failed to delete participant %s: %v", id, err)
			return err
		}
		existed = n > 0
		return nil
	})
	return existed, err
}

func (r *participantRepository) PurgeAll(ctx context.Context, role models.Role) error {
	log := logger.FromContext(ctx).WithPrefix("participant_repo")
	log.Info("purging all participant data: role=%s", role)
	b := r.db.Builder()

	return tx(ctx, r.db, func(tx *sql.Tx) error {
		for _, table := range []string{"session_section_times", "sessions", "answers"} {
			if _, err := exec(ctx, tx, b.Delete(table)); err != nil {
				log.Error("failed to clear %s: %v", table, err)
				return err
			}
		}
		if _, err := exec(ctx, tx, b.Delete("participants").Where(squirrel.Eq{"role": string(role)})); err != nil {
			log.Error("failed to delete participants: %v", err)
			return err
		}
		// Logs go last so entries committed while the participant rows were
		// locked are cleared too.
		if _, err := exec(ctx, tx, b.Delete("activity_logs")); err != nil {
			log.Error("failed to clear activity_logs: %v", err)
			return err
		}
		return nil
	})
}

// deleteOwned removes the session, section times and answers keyed by id.
func deleteOwned(ctx context.Context, q queryer, b squirrel.StatementBuilderType, id string) error {
	for _, table := range []string{"session_section_times", "sessions", "answers"} {
		if _, err := exec(ctx, q, b.Delete(table).Where(squirrel.Eq{"participant_id": id})); err != nil {
			return err
		}
	}
	return nil
}

// reassign re-points participant_id in tables. Section times follow their
// session through ON UPDATE CASCADE.
func reassign(ctx context.Context, q queryer, b squirrel.StatementBuilderType, from, to string, tables ...string) error {
	for _, table := range tables {
		if _, err := exec(ctx, q, b.Update(table).Set("participant_id", to).Where(squirrel.Eq{"participant_id": from})); err != nil {
			return err
		}
	}
	return nil
}
