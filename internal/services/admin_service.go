package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/vytor/assessment/internal/auth"
	"github.com/vytor/assessment/internal/catalog"
	"github.com/vytor/assessment/internal/errors"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/repository"
	"github.com/vytor/assessment/internal/roster"
)

// DefaultActor names the administrator in audit entries when none is given.
const DefaultActor = "ADMIN"

// AdminService monitors, exports and resets participant data. Every call
// checks the admin secret before touching the store.
type AdminService interface {
	Authorize(ctx context.Context, secret string) error
	ListStats(ctx context.Context, secret string) ([]models.ParticipantStats, error)
	AnswersFor(ctx context.Context, secret, id string) ([]models.Answer, error)
	ResetOne(ctx context.Context, secret, id, actor string) error
	ResetAll(ctx context.Context, secret, actor string) error
	ExportAll(ctx context.Context, secret string) (*models.ExportBundle, error)
	ExportCSV(ctx context.Context, secret string, w io.Writer) error
}

type adminService struct {
	secret       string
	participants repository.ParticipantRepository
	sessions     repository.SessionRepository
	answers      repository.AnswerRepository
	activity     repository.ActivityRepository
	directory    DirectoryService
	roster       *roster.Roster
	catalog      *catalog.Catalog
	opts         options
}

// AdminDeps groups the collaborators of the admin service.
type AdminDeps struct {
	Participants repository.ParticipantRepository
	Sessions     repository.SessionRepository
	Answers      repository.AnswerRepository
	Activity     repository.ActivityRepository
	Directory    DirectoryService
	Roster       *roster.Roster
	Catalog      *catalog.Catalog
}

// NewAdminService creates a new AdminService
func NewAdminService(secret string, deps AdminDeps, opts ...Option) AdminService {
	return &adminService{
		secret:       secret,
		participants: deps.Participants,
		sessions:     deps.Sessions,
		answers:      deps.Answers,
		activity:     deps.Activity,
		directory:    deps.Directory,
		roster:       deps.Roster,
		catalog:      deps.Catalog,
		opts:         buildOptions(opts),
	}
}

// Authorize lets callers reject a bad key before doing any other work.
func (s *adminService) Authorize(ctx context.Context, secret string) error {
	return s.authorize(ctx, secret)
}

func (s *adminService) authorize(ctx context.Context, secret string) error {
	if !auth.SecretEqual(s.secret, secret) {
		logger.FromContext(ctx).Warn("rejected admin request: bad secret")
		return errors.NewUnauthorizedError("invalid admin key")
	}
	return nil
}

func (s *adminService) ListStats(ctx context.Context, secret string) ([]models.ParticipantStats, error) {
	if err := s.authorize(ctx, secret); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	log.Debug("listing participant stats")

	participants, err := s.participants.List(ctx, models.RoleParticipant)
	if err != nil {
		log.Error("failed to list participants: %v", err)
		return nil, storeError(err)
	}
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		log.Error("failed to list sessions: %v", err)
		return nil, storeError(err)
	}
	counts, err := s.answers.CountByParticipant(ctx)
	if err != nil {
		log.Error("failed to count answers: %v", err)
		return nil, storeError(err)
	}

	byID := make(map[string]*models.Session, len(sessions))
	for i := range sessions {
		byID[sessions[i].ParticipantID] = &sessions[i]
	}

	now := s.opts.now()
	stats := make([]models.ParticipantStats, 0, len(participants))
	for _, p := range participants {
		p.PINHash = ""
		session := byID[p.ID]
		stats = append(stats, models.ParticipantStats{
			Participant: p,
			Session:     session,
			AnswerCount: counts[p.ID],
			Online:      s.online(session, now),
		})
	}
	return stats, nil
}

func (s *adminService) online(session *models.Session, now time.Time) bool {
	if session == nil {
		return false
	}
	return now.Sub(session.LastActiveAt) <= s.opts.onlineWindow
}

func (s *adminService) AnswersFor(ctx context.Context, secret, id string) ([]models.Answer, error) {
	if err := s.authorize(ctx, secret); err != nil {
		return nil, err
	}
	answers, err := s.answers.ListByParticipant(ctx, id)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list answers for %s: %v", id, err)
		return nil, storeError(err)
	}
	if answers == nil {
		answers = []models.Answer{}
	}
	return answers, nil
}

func (s *adminService) ResetOne(ctx context.Context, secret, id, actor string) error {
	if err := s.authorize(ctx, secret); err != nil {
		return err
	}
	if actor == "" {
		actor = DefaultActor
	}
	log := logger.FromContext(ctx).WithFields(map[string]any{"participant_id": id, "actor": actor})

	entry, inRoster := s.roster.Find(id)
	existed, err := s.participants.Purge(ctx, id)
	if err != nil {
		log.Error("failed to reset participant: %v", err)
		return storeError(err)
	}
	if !existed && !inRoster {
		return errors.NewNotFoundError("participant", id)
	}
	log.Info("participant reset")

	if err := s.activity.Insert(ctx, NewActivity(id, models.ActionAdminReset, s.opts.now(), map[string]any{"by": actor})); err != nil {
		log.Warn("failed to write reset audit entry: %v", err)
	}

	if inRoster {
		if _, err := s.directory.EnsureEntry(ctx, s.roster, entry); err != nil {
			log.Error("failed to re-seed participant: %v", err)
			return err
		}
	}
	return nil
}

func (s *adminService) ResetAll(ctx context.Context, secret, actor string) error {
	if err := s.authorize(ctx, secret); err != nil {
		return err
	}
	if actor == "" {
		actor = DefaultActor
	}
	log := logger.FromContext(ctx).WithField("actor", actor)

	if err := s.participants.PurgeAll(ctx, models.RoleParticipant); err != nil {
		log.Error("failed to reset all participants: %v", err)
		return storeError(err)
	}
	log.Info("all participant data reset")

	audit := NewActivity(models.SystemParticipantID, models.ActionAdminReset, s.opts.now(), map[string]any{
		"by":   actor,
		"type": "full",
	})
	if err := s.activity.Insert(ctx, audit); err != nil {
		log.Warn("failed to write reset audit entry: %v", err)
	}

	if _, err := s.directory.EnsureSeed(ctx, s.roster); err != nil {
		log.Error("failed to re-seed roster: %v", err)
		return err
	}
	return nil
}

func (s *adminService) ExportAll(ctx context.Context, secret string) (*models.ExportBundle, error) {
	if err := s.authorize(ctx, secret); err != nil {
		return nil, err
	}
	return s.export(ctx)
}

func (s *adminService) export(ctx context.Context) (*models.ExportBundle, error) {
	log := logger.FromContext(ctx)
	log.Debug("exporting all collections")

	users, err := s.participants.List(ctx, "")
	if err != nil {
		return nil, storeError(err)
	}
	for i := range users {
		users[i].PINHash = ""
	}
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	answers, err := s.answers.List(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	logs, err := s.activity.List(ctx)
	if err != nil {
		return nil, storeError(err)
	}

	bundle := &models.ExportBundle{
		Users:    users,
		Sessions: sessions,
		Answers:  answers,
		Logs:     logs,
	}
	if bundle.Users == nil {
		bundle.Users = []models.Participant{}
	}
	if bundle.Sessions == nil {
		bundle.Sessions = []models.Session{}
	}
	if bundle.Answers == nil {
		bundle.Answers = []models.Answer{}
	}
	if bundle.Logs == nil {
		bundle.Logs = []models.ActivityLog{}
	}
	return bundle, nil
}

// ExportCSV writes one row per participant and one column per question.
func (s *adminService) ExportCSV(ctx context.Context, secret string, w io.Writer) error {
	if err := s.authorize(ctx, secret); err != nil {
		return err
	}
	bundle, err := s.export(ctx)
	if err != nil {
		return err
	}

	questions := s.catalog.Questions()
	header := []string{"participant_id", "name", "language", "is_completed", "completed_at", "total_time_spent", "current_index"}
	for _, q := range questions {
		header = append(header, fmt.Sprintf("q%d", q.ID))
	}

	sessions := make(map[string]models.Session, len(bundle.Sessions))
	for _, sess := range bundle.Sessions {
		sessions[sess.ParticipantID] = sess
	}
	answers := make(map[string]map[int]string)
	for _, a := range bundle.Answers {
		if answers[a.ParticipantID] == nil {
			answers[a.ParticipantID] = map[int]string{}
		}
		answers[a.ParticipantID][a.QuestionID] = a.AnswerText
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.NewInternalError(err)
	}
	for _, p := range bundle.Users {
		if p.Role != models.RoleParticipant {
			continue
		}
		row := []string{p.ID, p.Name, string(p.Language), "false", "", "0", ""}
		if sess, ok := sessions[p.ID]; ok {
			row[3] = strconv.FormatBool(sess.IsCompleted)
			if sess.CompletedAt != nil {
				row[4] = sess.CompletedAt.UTC().Format(time.RFC3339)
			}
			row[5] = strconv.FormatFloat(sess.TotalTimeSpent, 'f', 1, 64)
			row[6] = strconv.Itoa(sess.CurrentIndex)
		}
		for _, q := range questions {
			row = append(row, answers[p.ID][q.ID])
		}
		if err := cw.Write(row); err != nil {
			return errors.NewInternalError(err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}
