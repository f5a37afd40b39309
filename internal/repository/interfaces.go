package repository

import (
	"context"
	"time"

	"github.com/vytor/assessment/internal/models"
)

// ParticipantRepository handles identity records and the cross-table
// operations that move or purge a participant's data.
type ParticipantRepository interface {
	Get(ctx context.Context, id string) (*models.Participant, error)
	FindByName(ctx context.Context, name string) ([]models.Participant, error)
	List(ctx context.Context, role models.Role) ([]models.Participant, error)
	Insert(ctx context.Context, p models.Participant) error
	UpdateLanguage(ctx context.Context, id string, lang models.Language) (bool, error)
	UpdateCredentials(ctx context.Context, id, name, pinHash string) error
	// Adopt moves everything owned by legacyID onto canonical, creating the
	// canonical record and deleting the legacy one in one transaction.
	Adopt(ctx context.Context, legacyID string, canonical models.Participant) error
	// Merge resolves a duplicate identity. When keepDuplicate is true the
	// duplicate's session and answers replace the canonical ones.
	Merge(ctx context.Context, canonicalID, duplicateID string, keepDuplicate bool) error
	// Purge deletes the participant with their session, section times and answers.
	Purge(ctx context.Context, id string) (bool, error)
	// PurgeAll deletes every session, section time, answer and log, and every
	// identity with the given role.
	PurgeAll(ctx context.Context, role models.Role) error
}

// SessionRepository handles session rows and their counters.
type SessionRepository interface {
	Get(ctx context.Context, participantID string) (*models.Session, error)
	List(ctx context.Context) ([]models.Session, error)
	// CreateOrResume inserts a fresh session or, when one exists, bumps its
	// login count. It reports whether a row was created.
	CreateOrResume(ctx context.Context, participantID, firstSection string, at time.Time) (bool, error)
	Touch(ctx context.Context, participantID string, at time.Time) (bool, error)
	Increment(ctx context.Context, participantID string, counter models.Counter) (bool, error)
	// Complete marks the session completed. It reports whether this call made
	// the transition.
	Complete(ctx context.Context, participantID string, at time.Time) (bool, error)
}

// ProgressRepository applies one answer save atomically.
type ProgressRepository interface {
	Record(ctx context.Context, update models.ProgressUpdate) (models.ProgressOutcome, error)
}

// AnswerRepository handles answer reads.
type AnswerRepository interface {
	ListByParticipant(ctx context.Context, participantID string) ([]models.Answer, error)
	List(ctx context.Context) ([]models.Answer, error)
	Count(ctx context.Context, participantID string) (int, error)
	CountByParticipant(ctx context.Context) (map[string]int, error)
}

// ActivityRepository handles the append-only activity log.
type ActivityRepository interface {
	Insert(ctx context.Context, entry models.ActivityLog) error
	// InsertForParticipant skips entries whose participant is gone or was
	// re-created after the entry's timestamp. It reports whether it wrote.
	InsertForParticipant(ctx context.Context, entry models.ActivityLog) (bool, error)
	List(ctx context.Context) ([]models.ActivityLog, error)
	ListByParticipant(ctx context.Context, participantID string) ([]models.ActivityLog, error)
}
