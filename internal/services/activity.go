package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/repository"
)

// ActivityRecorder is a best-effort sink for activity log entries. It never
// reports failure to the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, entry models.ActivityLog)
}

// DirectRecorder writes entries synchronously and logs failures. Like the
// queued recorder it skips entries for participants that no longer exist.
type DirectRecorder struct {
	repo repository.ActivityRepository
}

func NewDirectRecorder(repo repository.ActivityRepository) *DirectRecorder {
	return &DirectRecorder{repo: repo}
}

func (r *DirectRecorder) Record(ctx context.Context, entry models.ActivityLog) {
	if _, err := r.repo.InsertForParticipant(ctx, entry); err != nil {
		logger.FromContext(ctx).Warn("failed to record %s activity for %s: %v", entry.Action, entry.ParticipantID, err)
	}
}

// NewActivity builds a log entry with a fresh id.
func NewActivity(participantID string, action models.ActivityAction, at time.Time, metadata map[string]any) models.ActivityLog {
	return models.ActivityLog{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Action:        action,
		Timestamp:     at,
		Metadata:      metadata,
	}
}
