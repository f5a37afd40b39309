package services

import (
	"context"

	"github.com/vytor/assessment/internal/catalog"
	"github.com/vytor/assessment/internal/errors"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/repository"
)

// SessionService drives the NOT_STARTED -> IN_PROGRESS -> COMPLETED lifecycle.
type SessionService interface {
	StartOrResume(ctx context.Context, id string) (*models.Session, error)
	Heartbeat(ctx context.Context, id string)
	LogEvent(ctx context.Context, id string, kind models.EventKind) error
	Complete(ctx context.Context, id string) error
	FullState(ctx context.Context, id string) (*models.FullState, error)
}

type sessionService struct {
	participants repository.ParticipantRepository
	sessions     repository.SessionRepository
	answers      repository.AnswerRepository
	activity     ActivityRecorder
	catalog      *catalog.Catalog
	opts         options
}

// NewSessionService creates a new SessionService
func NewSessionService(
	participants repository.ParticipantRepository,
	sessions repository.SessionRepository,
	answers repository.AnswerRepository,
	activity ActivityRecorder,
	cat *catalog.Catalog,
	opts ...Option,
) SessionService {
	return &sessionService{
		participants: participants,
		sessions:     sessions,
		answers:      answers,
		activity:     activity,
		catalog:      cat,
		opts:         buildOptions(opts),
	}
}

func (s *sessionService) StartOrResume(ctx context.Context, id string) (*models.Session, error) {
	log := logger.FromContext(ctx).WithField("participant_id", id)
	log.Debug("starting or resuming session")

	p, err := s.participants.Get(ctx, id)
	if err != nil {
		log.Error("failed to get participant: %v", err)
		return nil, storeError(err)
	}
	if p == nil {
		return nil, errors.NewNotFoundError("participant", id)
	}

	now := s.opts.now()
	created, err := s.sessions.CreateOrResume(ctx, id, s.catalog.FirstSection(), now)
	if err != nil {
		log.Error("failed to create or resume session: %v", err)
		return nil, storeError(err)
	}

	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		log.Error("failed to reload session: %v", err)
		return nil, storeError(err)
	}
	if session == nil {
		// Reset by an administrator between the two statements.
		return nil, errors.NewNotFoundError("session", id)
	}

	if created {
		log.Info("session created")
		s.activity.Record(ctx, NewActivity(id, models.ActionLogin, now, map[string]any{"type": "new"}))
	} else {
		log.Debug("session resumed: login_count=%d", session.LoginCount)
		s.activity.Record(ctx, NewActivity(id, models.ActionResume, now, map[string]any{
			"type":  "existing",
			"count": session.LoginCount,
		}))
	}
	return session, nil
}

func (s *sessionService) Heartbeat(ctx context.Context, id string) {
	touched, err := s.sessions.Touch(ctx, id, s.opts.now())
	if err != nil {
		logger.FromContext(ctx).Warn("heartbeat failed for %s: %v", id, err)
		return
	}
	if !touched {
		logger.FromContext(ctx).Debug("heartbeat for %s without a session", id)
	}
}

func (s *sessionService) LogEvent(ctx context.Context, id string, kind models.EventKind) error {
	counter, ok := kind.Counter()
	if !ok {
		return errors.NewValidationError("kind", "must be backtrack or blur")
	}
	if _, err := s.sessions.Increment(ctx, id, counter); err != nil {
		logger.FromContext(ctx).Warn("failed to count %s for %s: %v", kind, id, err)
	}
	return nil
}

func (s *sessionService) Complete(ctx context.Context, id string) error {
	log := logger.FromContext(ctx).WithField("participant_id", id)

	now := s.opts.now()
	transitioned, err := s.sessions.Complete(ctx, id, now)
	if err != nil {
		log.Error("failed to complete session: %v", err)
		return storeError(err)
	}
	if transitioned {
		log.Info("session completed")
		s.activity.Record(ctx, NewActivity(id, models.ActionComplete, now, nil))
		return nil
	}

	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return storeError(err)
	}
	if session == nil {
		return errors.NewNotFoundError("session", id)
	}
	log.Debug("session already completed")
	return nil
}

func (s *sessionService) FullState(ctx context.Context, id string) (*models.FullState, error) {
	log := logger.FromContext(ctx).WithField("participant_id", id)
	log.Debug("loading full state")

	p, err := s.participants.Get(ctx, id)
	if err != nil {
		log.Error("failed to get participant: %v", err)
		return nil, storeError(err)
	}
	if p == nil {
		return nil, errors.NewNotFoundError("participant", id)
	}
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		log.Error("failed to get session: %v", err)
		return nil, storeError(err)
	}
	answers, err := s.answers.ListByParticipant(ctx, id)
	if err != nil {
		log.Error("failed to list answers: %v", err)
		return nil, storeError(err)
	}
	if answers == nil {
		answers = []models.Answer{}
	}

	profile := *p
	profile.PINHash = ""
	return &models.FullState{
		Profile:     profile,
		Session:     session,
		Answers:     answers,
		ResumeIndex: s.resumeIndex(session),
	}, nil
}

// resumeIndex is the stored position clamped to the catalog.
func (s *sessionService) resumeIndex(session *models.Session) int {
	if session == nil || session.CurrentIndex < 0 {
		return 0
	}
	if last := s.catalog.Len() - 1; session.CurrentIndex > last {
		return last
	}
	return session.CurrentIndex
}
