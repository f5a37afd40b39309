package services_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vytor/assessment/internal/catalog"
	"github.com/vytor/assessment/internal/db"
	"github.com/vytor/assessment/internal/errors"
	"github.com/vytor/assessment/internal/jobs"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/payload"
	"github.com/vytor/assessment/internal/repository"
	"github.com/vytor/assessment/internal/repository/sqlstore"
	"github.com/vytor/assessment/internal/roster"
	"github.com/vytor/assessment/internal/services"
	"github.com/vytor/assessment/internal/testutil"
	"github.com/vytor/assessment/internal/worker"
)

// smallCatalog has a free-text and a multi-choice question at ids 12 and 13.
func smallCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	opts := []catalog.Option{
		{ID: "opt_0", Text: catalog.Localized{EN: "Alone"}},
		{ID: "opt_1", Text: catalog.Localized{EN: "In pairs"}},
		{ID: "opt_2", Text: catalog.Localized{EN: "In a team"}},
	}
	c, err := catalog.New([]catalog.Question{
		{ID: 12, Section: "Values", Type: catalog.TypeText, Text: catalog.Localized{EN: "What drives you?"}},
		{ID: 13, Section: "Values", Type: catalog.TypeMultiple, Text: catalog.Localized{EN: "How do you work?"}, Options: opts},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

type serviceSuite struct {
	suite.Suite
	ctx   context.Context
	db    *db.DB
	clock *testutil.Clock

	participants repository.ParticipantRepository
	sessions     repository.SessionRepository
	answers      repository.AnswerRepository
	activity     repository.ActivityRepository

	roster    *roster.Roster
	catalog   *catalog.Catalog
	directory services.DirectoryService
	session   services.SessionService
	progress  services.ProgressService
	admin     services.AdminService
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(serviceSuite))
}

func (s *serviceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.NewTestDB(s.T())
	s.clock = testutil.NewClock(seedTime)

	s.participants = sqlstore.NewParticipantRepository(s.db)
	s.sessions = sqlstore.NewSessionRepository(s.db)
	s.answers = sqlstore.NewAnswerRepository(s.db)
	s.activity = sqlstore.NewActivityRepository(s.db)
	progress := sqlstore.NewProgressRepository(s.db)
	recorder := services.NewDirectRecorder(s.activity)

	s.roster = &roster.Roster{Entries: []roster.Entry{
		{ID: "u1", Name: "Mahmoud", PIN: "1111", Role: models.RoleParticipant},
		ayoub,
	}}
	s.catalog = smallCatalog(s.T())

	clock := services.WithClock(s.clock.Now)
	s.directory = services.NewDirectoryService(s.participants, s.sessions, s.answers, hasher, clock)
	s.session = services.NewSessionService(s.participants, s.sessions, s.answers, recorder, s.catalog, clock)
	s.progress = services.NewProgressService(progress, s.catalog, clock)
	s.admin = services.NewAdminService(adminSecret, services.AdminDeps{
		Participants: s.participants,
		Sessions:     s.sessions,
		Answers:      s.answers,
		Activity:     s.activity,
		Directory:    s.directory,
		Roster:       s.roster,
		Catalog:      s.catalog,
	}, clock)

	_, err := s.directory.EnsureSeed(s.ctx, s.roster)
	s.Require().NoError(err)
}

func (s *serviceSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *serviceSuite) count(table string) int {
	var n int
	s.Require().NoError(s.db.QueryRowContext(s.ctx, `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func (s *serviceSuite) record(id string, questionID int, v payload.Value, elapsed float64, index int) bool {
	saved, err := s.progress.RecordAnswer(s.ctx, services.RecordAnswerInput{
		ParticipantID:  id,
		QuestionID:     questionID,
		Section:        "Values",
		Payload:        v,
		ElapsedSeconds: elapsed,
		NewIndex:       index,
	})
	s.Require().NoError(err)
	return saved
}

func (s *serviceSuite) TestScenario_AyoubAnswersAndCompletes() {
	result, err := s.directory.Authenticate(s.ctx, "u3", "00229900e")
	s.Require().NoError(err)
	s.False(result.HasProgress)

	_, err = s.session.StartOrResume(s.ctx, "u3")
	s.Require().NoError(err)

	s.clock.Advance(8 * time.Second)
	s.True(s.record("u3", 12, payload.Text("hello"), 8, 1))
	s.clock.Advance(3 * time.Second)
	s.True(s.record("u3", 13, payload.MultiChoice{"opt_0", "opt_2"}, 3, 1))
	s.Require().NoError(s.session.Complete(s.ctx, "u3"))

	state, err := s.session.FullState(s.ctx, "u3")
	s.Require().NoError(err)
	s.Require().Len(state.Answers, 2)
	s.Equal(12, state.Answers[0].QuestionID)
	s.Equal("hello", state.Answers[0].AnswerText)
	s.Equal(`["opt_0","opt_2"]`, state.Answers[1].AnswerText)

	sess := state.Session
	s.Require().NotNil(sess)
	s.Equal(1, sess.CurrentIndex)
	s.True(sess.IsCompleted)
	s.Require().NotNil(sess.CompletedAt)
	s.GreaterOrEqual(sess.TotalTimeSpent, 11.0)
	s.InDelta(11.0, sess.SectionTimes["Values"], 1e-9)
}

func (s *serviceSuite) TestRecordAnswer_IdenticalCallsCountExactlyDouble() {
	_, err := s.session.StartOrResume(s.ctx, "u3")
	s.Require().NoError(err)

	s.True(s.record("u3", 12, payload.Text("draft"), 4, 0))
	s.True(s.record("u3", 12, payload.Text("draft"), 4, 0))

	answers, err := s.answers.ListByParticipant(s.ctx, "u3")
	s.Require().NoError(err)
	s.Require().Len(answers, 1)
	s.InDelta(8.0, answers[0].TimeSpent, 1e-9)

	// Saves leave the activity log alone.
	logs, err := s.activity.ListByParticipant(s.ctx, "u3")
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal(models.ActionLogin, logs[0].Action)
}

func (s *serviceSuite) TestFullState_ResumesAtStoredIndex() {
	cat, err := catalog.Default()
	s.Require().NoError(err)
	recorder := services.NewDirectRecorder(s.activity)
	sessions := services.NewSessionService(s.participants, s.sessions, s.answers, recorder, cat)
	progress := services.NewProgressService(sqlstore.NewProgressRepository(s.db), cat)

	_, err = sessions.StartOrResume(s.ctx, "u3")
	s.Require().NoError(err)
	for i := 0; i < 5; i++ {
		q, _ := cat.At(i)
		v := payload.Value(payload.Text(""))
		if q.Type == catalog.TypeText || q.Type == catalog.TypeTextArea {
			v = payload.Text("answer")
		}
		saved, err := progress.RecordAnswer(s.ctx, services.RecordAnswerInput{
			ParticipantID: "u3", QuestionID: q.ID, Payload: v, ElapsedSeconds: 1, NewIndex: i + 1,
		})
		s.Require().NoError(err)
		s.True(saved)
	}

	result, err := s.directory.Authenticate(s.ctx, "u3", "00229900e")
	s.Require().NoError(err)
	s.True(result.HasProgress)

	state, err := sessions.FullState(s.ctx, "u3")
	s.Require().NoError(err)
	s.Equal(5, state.ResumeIndex)
}

func (s *serviceSuite) TestCompletedSessionIsTerminal() {
	_, err := s.session.StartOrResume(s.ctx, "u3")
	s.Require().NoError(err)
	s.True(s.record("u3", 12, payload.Text("final"), 2, 1))
	s.Require().NoError(s.session.Complete(s.ctx, "u3"))

	before, err := s.session.FullState(s.ctx, "u3")
	s.Require().NoError(err)

	s.clock.Advance(time.Minute)
	s.False(s.record("u3", 12, payload.Text("changed"), 30, 0))
	s.False(s.record("u3", 13, payload.MultiChoice{"opt_1"}, 30, 0))
	s.Require().NoError(s.session.Complete(s.ctx, "u3"), "completing twice is harmless")

	after, err := s.session.FullState(s.ctx, "u3")
	s.Require().NoError(err)
	s.Equal(before.Answers, after.Answers)
	s.Equal(before.Session.TotalTimeSpent, after.Session.TotalTimeSpent)
	s.Equal(before.Session.CurrentIndex, after.Session.CurrentIndex)
	s.Equal(before.Session.CompletedAt, after.Session.CompletedAt)

	completes := 0
	logs, err := s.activity.ListByParticipant(s.ctx, "u3")
	s.Require().NoError(err)
	for _, l := range logs {
		if l.Action == models.ActionComplete {
			completes++
		}
	}
	s.Equal(1, completes)
}

func (s *serviceSuite) TestRecordAnswer_Validation() {
	_, err := s.session.StartOrResume(s.ctx, "u3")
	s.Require().NoError(err)

	tests := []struct {
		name string
		in   services.RecordAnswerInput
	}{
		{"negative elapsed", services.RecordAnswerInput{ParticipantID: "u3", QuestionID: 12, Payload: payload.Text("x"), ElapsedSeconds: -1}},
		{"unknown question", services.RecordAnswerInput{ParticipantID: "u3", QuestionID: 99, Payload: payload.Text("x")}},
		{"wrong section", services.RecordAnswerInput{ParticipantID: "u3", QuestionID: 12, Section: "Skills", Payload: payload.Text("x")}},
		{"index out of range", services.RecordAnswerInput{ParticipantID: "u3", QuestionID: 12, Payload: payload.Text("x"), NewIndex: 2}},
		{"unknown option", services.RecordAnswerInput{ParticipantID: "u3", QuestionID: 13, Payload: payload.MultiChoice{"opt_9"}}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.progress.RecordAnswer(s.ctx, tt.in)
			s.True(errors.HasCode(err, errors.ErrCodeValidation), "got %v", err)
		})
	}
	s.Zero(s.count("answers"))
}

func (s *serviceSuite) TestRecordAnswer_WithoutSession() {
	_, err := s.progress.RecordAnswer(s.ctx, services.RecordAnswerInput{ParticipantID: "u1", QuestionID: 12, Payload: payload.Text("x")})
	s.True(errors.HasCode(err, errors.ErrCodeNotFound))
}

func (s *serviceSuite) TestStartOrResume_ConcurrentCallsCreateOneSession() {
	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.session.StartOrResume(s.ctx, "u1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		s.NoError(err)
	}
	s.Equal(1, s.count("sessions"))

	sess, err := s.sessions.Get(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(callers-1, sess.LoginCount)
}

func (s *serviceSuite) TestStartOrResume_UnknownParticipant() {
	_, err := s.session.StartOrResume(s.ctx, "ghost")
	s.True(errors.HasCode(err, errors.ErrCodeNotFound))
}

func (s *serviceSuite) TestLogEvent_CountsAndRejectsUnknownKinds() {
	_, err := s.session.StartOrResume(s.ctx, "u3")
	s.Require().NoError(err)

	s.NoError(s.session.LogEvent(s.ctx, "u3", models.EventBlur))
	s.NoError(s.session.LogEvent(s.ctx, "u3", models.EventBlur))
	s.NoError(s.session.LogEvent(s.ctx, "u3", models.EventBacktrack))
	s.True(errors.HasCode(s.session.LogEvent(s.ctx, "u3", "scroll"), errors.ErrCodeValidation))
	s.NoError(s.session.LogEvent(s.ctx, "ghost", models.EventBlur), "telemetry never fails the caller")

	sess, err := s.sessions.Get(s.ctx, "u3")
	s.Require().NoError(err)
	s.Equal(2, sess.BlurCount)
	s.Equal(1, sess.BacktrackCount)
}

func (s *serviceSuite) TestHeartbeat_DrivesOnlineStatus() {
	_, err := s.session.StartOrResume(s.ctx, "u3")
	s.Require().NoError(err)

	s.clock.Advance(31 * time.Second)
	stats, err := s.admin.ListStats(s.ctx, adminSecret)
	s.Require().NoError(err)
	s.False(statsFor(stats, "u3").Online)

	s.session.Heartbeat(s.ctx, "u3")
	s.clock.Advance(time.Second)
	stats, err = s.admin.ListStats(s.ctx, adminSecret)
	s.Require().NoError(err)
	s.True(statsFor(stats, "u3").Online)
	s.Nil(statsFor(stats, "u1").Session)
}

func statsFor(stats []models.ParticipantStats, id string) models.ParticipantStats {
	for _, st := range stats {
		if st.Participant.ID == id {
			return st
		}
	}
	return models.ParticipantStats{}
}

func (s *serviceSuite) TestResetOne_LeavesOthersUntouched() {
	for _, id := range []string{"u1", "u3"} {
		_, err := s.session.StartOrResume(s.ctx, id)
		s.Require().NoError(err)
		s.True(s.record(id, 12, payload.Text("mine"), 5, 1))
	}
	s.Require().NoError(s.directory.SetLanguage(s.ctx, "u3", models.LanguageFrench))

	s.clock.Advance(time.Second)
	s.Require().NoError(s.admin.ResetOne(s.ctx, adminSecret, "u3", "root"))

	answers, err := s.admin.AnswersFor(s.ctx, adminSecret, "u3")
	s.Require().NoError(err)
	s.Empty(answers)
	gone, err := s.sessions.Get(s.ctx, "u3")
	s.Require().NoError(err)
	s.Nil(gone)

	kept, err := s.admin.AnswersFor(s.ctx, adminSecret, "u1")
	s.Require().NoError(err)
	s.Len(kept, 1)

	profile, err := s.directory.Profile(s.ctx, "u3")
	s.Require().NoError(err, "re-seeded after reset")
	s.Empty(profile.Language)
	_, err = s.directory.Authenticate(s.ctx, "u3", "00229900e")
	s.NoError(err)

	logs, err := s.activity.ListByParticipant(s.ctx, "u3")
	s.Require().NoError(err)
	s.Require().NotEmpty(logs)
	last := logs[len(logs)-1]
	s.Equal(models.ActionAdminReset, last.Action)
	s.Equal("root", last.Metadata["by"])
}

func (s *serviceSuite) TestResetAll_ClearsEverythingAndReseeds() {
	for _, id := range []string{"u1", "u3"} {
		_, err := s.session.StartOrResume(s.ctx, id)
		s.Require().NoError(err)
		s.True(s.record(id, 12, payload.Text("mine"), 5, 1))
	}

	s.Require().NoError(s.admin.ResetAll(s.ctx, adminSecret, ""))

	s.Zero(s.count("sessions"))
	s.Zero(s.count("answers"))
	s.Zero(s.count("session_section_times"))

	logs, err := s.activity.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(logs, 1, "only the audit entry survives")
	s.Equal(models.SystemParticipantID, logs[0].ParticipantID)
	s.Equal("full", logs[0].Metadata["type"])
	s.Equal(services.DefaultActor, logs[0].Metadata["by"])

	s.Equal(2, s.count("participants"))
}

// queuedSessions records activity on a pool that has not started, so every
// entry is still pending when the test resets.
func (s *serviceSuite) queuedSessions() (services.SessionService, *worker.Pool) {
	pool := worker.NewPool("activity", 2, 16)
	queue := jobs.NewActivityQueue(pool, s.activity)
	return services.NewSessionService(s.participants, s.sessions, s.answers, queue, s.catalog, services.WithClock(s.clock.Now)), pool
}

func (s *serviceSuite) TestResetAll_DropsActivityQueuedBeforeReset() {
	sessions, pool := s.queuedSessions()
	_, err := sessions.StartOrResume(s.ctx, "u1")
	s.Require().NoError(err)
	s.Positive(pool.QueueSize())

	s.clock.Advance(time.Second)
	s.Require().NoError(s.admin.ResetAll(s.ctx, adminSecret, ""))

	pool.Start(s.ctx)
	pool.Stop()

	mine, err := s.activity.ListByParticipant(s.ctx, "u1")
	s.Require().NoError(err)
	s.Empty(mine)
	logs, err := s.activity.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal(models.SystemParticipantID, logs[0].ParticipantID)
}

func (s *serviceSuite) TestResetOne_DropsActivityQueuedBeforeReset() {
	sessions, pool := s.queuedSessions()
	_, err := sessions.StartOrResume(s.ctx, "u1")
	s.Require().NoError(err)

	s.clock.Advance(time.Second)
	s.Require().NoError(s.admin.ResetOne(s.ctx, adminSecret, "u1", "root"))

	pool.Start(s.ctx)
	s.clock.Advance(time.Second)
	_, err = sessions.StartOrResume(s.ctx, "u1")
	s.Require().NoError(err)
	pool.Stop()

	logs, err := s.activity.ListByParticipant(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.Equal(models.ActionAdminReset, logs[0].Action)
	s.Equal(models.ActionLogin, logs[1].Action, "the login after the reset is kept")
	s.Equal("new", logs[1].Metadata["type"])
}

func (s *serviceSuite) TestEnsureSeed_ReorderedRenameKeepsProgressWithItsOwner() {
	_, err := s.session.StartOrResume(s.ctx, "u1")
	s.Require().NoError(err)
	s.True(s.record("u1", 12, payload.Text("mine"), 5, 1))

	s.roster.Entries = []roster.Entry{
		{ID: "u7", Name: "Mahmoud", PIN: "7777", Role: models.RoleParticipant},
		{ID: "u1", Name: "Mahmoud K.", PIN: "1111", Role: models.RoleParticipant},
		ayoub,
	}
	report, err := s.directory.EnsureSeed(s.ctx, s.roster)
	s.Require().NoError(err)
	s.Equal([]string{"u7"}, report.Created)
	s.Equal([]string{"u1"}, report.Updated)
	s.Empty(report.Migrated)
	s.Empty(report.Merged)

	kept, err := s.answers.ListByParticipant(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(kept, 1)
	s.Equal("mine", kept[0].AnswerText)
	fresh, err := s.answers.ListByParticipant(s.ctx, "u7")
	s.Require().NoError(err)
	s.Empty(fresh)

	profile, err := s.directory.Profile(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal("Mahmoud K.", profile.Name)

	again, err := s.directory.EnsureSeed(s.ctx, s.roster)
	s.Require().NoError(err)
	s.Zero(again.Writes())
}

func (s *serviceSuite) TestEnsureSeed_AdoptsLegacyThenIsIdempotent() {
	legacy := models.Participant{ID: "saad_1699", Name: "Saad", PINHash: "stale", Role: models.RoleParticipant, CreatedAt: seedTime.Add(-time.Hour)}
	s.Require().NoError(s.participants.Insert(s.ctx, legacy))
	_, err := s.session.StartOrResume(s.ctx, legacy.ID)
	s.Require().NoError(err)
	s.True(s.record(legacy.ID, 12, payload.Text("before the rename"), 6, 1))

	s.roster.Entries = append(s.roster.Entries, roster.Entry{ID: "u6", Name: "Saad", PIN: "6666", Role: models.RoleParticipant})

	first, err := s.directory.EnsureSeed(s.ctx, s.roster)
	s.Require().NoError(err)
	s.Equal([]string{"saad_1699"}, first.Migrated)

	second, err := s.directory.EnsureSeed(s.ctx, s.roster)
	s.Require().NoError(err)
	s.Zero(second.Writes())

	adopted, err := s.directory.Profile(s.ctx, "u6")
	s.Require().NoError(err)
	s.True(adopted.CreatedAt.Equal(legacy.CreatedAt))
	answers, err := s.answers.ListByParticipant(s.ctx, "u6")
	s.Require().NoError(err)
	s.Require().Len(answers, 1)
	s.Equal("before the rename", answers[0].AnswerText)

	old, err := s.participants.Get(s.ctx, legacy.ID)
	s.Require().NoError(err)
	s.Nil(old)
}

func (s *serviceSuite) TestExportCSV_WideFormat() {
	_, err := s.session.StartOrResume(s.ctx, "u3")
	s.Require().NoError(err)
	s.True(s.record("u3", 13, payload.MultiChoice{"opt_1"}, 2, 1))

	var buf bytes.Buffer
	s.Require().NoError(s.admin.ExportCSV(s.ctx, adminSecret, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal([]string{"participant_id", "name", "language", "is_completed", "completed_at", "total_time_spent", "current_index", "q12", "q13"}, rows[0])

	var ayoubRow []string
	for _, r := range rows[1:] {
		if r[0] == "u3" {
			ayoubRow = r
		}
	}
	s.Require().NotNil(ayoubRow)
	s.Equal("2.0", ayoubRow[5])
	s.Equal("", ayoubRow[7])
	s.Equal(`["opt_1"]`, ayoubRow[8])
}

func (s *serviceSuite) TestExportAll_OmitsPINHashes() {
	bundle, err := s.admin.ExportAll(s.ctx, adminSecret)
	s.Require().NoError(err)
	s.Len(bundle.Users, 2)
	for _, u := range bundle.Users {
		s.Empty(u.PINHash)
	}
	s.NotNil(bundle.Sessions)
	s.NotNil(bundle.Logs)
}
