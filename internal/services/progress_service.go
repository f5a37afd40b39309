package services

import (
	"context"
	"fmt"
	"math"

	"github.com/vytor/assessment/internal/catalog"
	"github.com/vytor/assessment/internal/errors"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/payload"
	"github.com/vytor/assessment/internal/repository"
)

// RecordAnswerInput is one save from the participant's client.
type RecordAnswerInput struct {
	ParticipantID  string
	QuestionID     int
	Section        string
	Payload        payload.Value
	ElapsedSeconds float64
	NewIndex       int
}

// ProgressService persists answers and advances the participant's position.
type ProgressService interface {
	// RecordAnswer reports saved=false without error when the session is
	// already completed.
	RecordAnswer(ctx context.Context, in RecordAnswerInput) (bool, error)
}

type progressService struct {
	progress repository.ProgressRepository
	catalog  *catalog.Catalog
	opts     options
}

// NewProgressService creates a new ProgressService. Saves are not written to
// the activity log; the answer's updated_at already records them.
func NewProgressService(progress repository.ProgressRepository, cat *catalog.Catalog, opts ...Option) ProgressService {
	return &progressService{
		progress: progress,
		catalog:  cat,
		opts:     buildOptions(opts),
	}
}

func (s *progressService) validate(in RecordAnswerInput) (catalog.Question, error) {
	if math.IsNaN(in.ElapsedSeconds) || math.IsInf(in.ElapsedSeconds, 0) || in.ElapsedSeconds < 0 {
		return catalog.Question{}, errors.NewValidationError("elapsed_seconds", "must be a finite number >= 0")
	}
	q, ok := s.catalog.ByID(in.QuestionID)
	if !ok {
		return q, errors.NewValidationError("question_id", fmt.Sprintf("unknown question %d", in.QuestionID))
	}
	if in.Section != "" && in.Section != q.Section {
		return q, errors.NewValidationError("section", fmt.Sprintf("question %d belongs to %q", q.ID, q.Section))
	}
	if in.NewIndex < 0 || in.NewIndex >= s.catalog.Len() {
		return q, errors.NewValidationError("current_index", fmt.Sprintf("must be in [0, %d)", s.catalog.Len()))
	}
	if err := payload.Validate(q, in.Payload); err != nil {
		return q, err
	}
	return q, nil
}

func (s *progressService) RecordAnswer(ctx context.Context, in RecordAnswerInput) (bool, error) {
	log := logger.FromContext(ctx).WithField("participant_id", in.ParticipantID)
	log.Debug("recording answer: question_id=%d elapsed=%.2f index=%d", in.QuestionID, in.ElapsedSeconds, in.NewIndex)

	q, err := s.validate(in)
	if err != nil {
		return false, err
	}

	now := s.opts.now()
	outcome, err := s.progress.Record(ctx, models.ProgressUpdate{
		ParticipantID:  in.ParticipantID,
		QuestionID:     q.ID,
		Section:        q.Section,
		AnswerText:     payload.Encode(in.Payload),
		ElapsedSeconds: in.ElapsedSeconds,
		CurrentIndex:   in.NewIndex,
		At:             now,
	})
	if err != nil {
		log.Error("failed to record answer: %v", err)
		return false, storeError(err)
	}

	switch outcome {
	case models.ProgressSessionMissing:
		return false, errors.NewNotFoundError("session", in.ParticipantID)
	case models.ProgressSessionCompleted:
		log.Debug("session completed, answer ignored")
		return false, nil
	}
	return true, nil
}
