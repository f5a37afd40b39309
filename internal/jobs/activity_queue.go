// Package jobs adapts the worker pool to the services' background needs.
package jobs

import (
	"context"

	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/repository"
	"github.com/vytor/assessment/internal/worker"
)

// RecordActivityJob writes one activity entry. Entries for a participant
// reset after they were queued are skipped.
type RecordActivityJob struct {
	Repo  repository.ActivityRepository
	Entry models.ActivityLog
}

func (j *RecordActivityJob) Name() string { return "record_activity" }

func (j *RecordActivityJob) Run(ctx context.Context) error {
	written, err := j.Repo.InsertForParticipant(ctx, j.Entry)
	if err != nil {
		return err
	}
	if !written {
		logger.FromContext(ctx).Info("skipped stale %s activity for %s", j.Entry.Action, j.Entry.ParticipantID)
	}
	return nil
}

// ActivityQueue records activity on a worker pool. Recording never blocks the
// caller: when the queue is full the entry is dropped with a warning.
type ActivityQueue struct {
	pool *worker.Pool
	repo repository.ActivityRepository
}

func NewActivityQueue(pool *worker.Pool, repo repository.ActivityRepository) *ActivityQueue {
	return &ActivityQueue{pool: pool, repo: repo}
}

func (q *ActivityQueue) Record(ctx context.Context, entry models.ActivityLog) {
	err := q.pool.TrySubmit(&RecordActivityJob{Repo: q.repo, Entry: entry})
	if err != nil {
		logger.FromContext(ctx).Warn("dropping %s activity for %s: %v", entry.Action, entry.ParticipantID, err)
	}
}
