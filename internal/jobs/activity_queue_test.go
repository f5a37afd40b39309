package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vytor/assessment/internal/jobs"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/testutil/mocks"
	"github.com/vytor/assessment/internal/worker"
)

func TestActivityQueue_WritesThroughPool(t *testing.T) {
	repo := new(mocks.MockActivityRepository)
	entry := models.ActivityLog{ID: "a1", ParticipantID: "u1", Action: models.ActionLogin, Timestamp: time.Now()}
	repo.On("InsertForParticipant", mock.Anything, entry).Return(true, nil).Once()

	pool := worker.NewPool("activity", 1, 4)
	pool.Start(context.Background())

	jobs.NewActivityQueue(pool, repo).Record(context.Background(), entry)
	pool.Stop()

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestActivityQueue_DropsWhenStopped(t *testing.T) {
	repo := new(mocks.MockActivityRepository)
	pool := worker.NewPool("activity", 1, 1)
	pool.Start(context.Background())
	pool.Stop()

	jobs.NewActivityQueue(pool, repo).Record(context.Background(), models.ActivityLog{ID: "a1"})

	repo.AssertNotCalled(t, "InsertForParticipant", mock.Anything, mock.Anything)
	assert.Equal(t, 0, pool.QueueSize())
}

func TestRecordActivityJob_SkippedEntryIsNotAFailure(t *testing.T) {
	repo := new(mocks.MockActivityRepository)
	entry := models.ActivityLog{ID: "a1", ParticipantID: "u1", Action: models.ActionResume, Timestamp: time.Now()}
	repo.On("InsertForParticipant", mock.Anything, entry).Return(false, nil).Once()

	job := &jobs.RecordActivityJob{Repo: repo, Entry: entry}
	require.NoError(t, job.Run(context.Background()))
	repo.AssertExpectations(t)
}
