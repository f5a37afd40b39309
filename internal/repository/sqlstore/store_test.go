package sqlstore_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vytor/assessment/internal/db"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/repository"
	"github.com/vytor/assessment/internal/repository/sqlstore"
	"github.com/vytor/assessment/internal/testutil"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// storeSuite wires every repository against one in-memory database.
type storeSuite struct {
	suite.Suite
	ctx          context.Context
	db           *db.DB
	participants repository.ParticipantRepository
	sessions     repository.SessionRepository
	progress     repository.ProgressRepository
	answers      repository.AnswerRepository
	activity     repository.ActivityRepository
}

func (s *storeSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.NewTestDB(s.T())
	s.participants = sqlstore.NewParticipantRepository(s.db)
	s.sessions = sqlstore.NewSessionRepository(s.db)
	s.progress = sqlstore.NewProgressRepository(s.db)
	s.answers = sqlstore.NewAnswerRepository(s.db)
	s.activity = sqlstore.NewActivityRepository(s.db)
}

func (s *storeSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *storeSuite) addParticipant(id, name string, createdAt time.Time) models.Participant {
	p := models.Participant{ID: id, Name: name, PINHash: "hash-" + id, Role: models.RoleParticipant, CreatedAt: createdAt}
	s.Require().NoError(s.participants.Insert(s.ctx, p))
	return p
}

func (s *storeSuite) startSession(id string) {
	_, err := s.sessions.CreateOrResume(s.ctx, id, "Mindset", t0)
	s.Require().NoError(err)
}

func (s *storeSuite) save(id string, questionID int, section, text string, elapsed float64, index int) models.ProgressOutcome {
	outcome, err := s.progress.Record(s.ctx, models.ProgressUpdate{
		ParticipantID:  id,
		QuestionID:     questionID,
		Section:        section,
		AnswerText:     text,
		ElapsedSeconds: elapsed,
		CurrentIndex:   index,
		At:             t0.Add(time.Minute),
	})
	s.Require().NoError(err)
	return outcome
}

func (s *storeSuite) countRows(table, participantID string) int {
	var n int
	s.Require().NoError(s.db.QueryRowContext(s.ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE participant_id = ?`, participantID).Scan(&n))
	return n
}
