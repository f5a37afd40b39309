package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vytor/assessment/internal/auth"
	"github.com/vytor/assessment/internal/errors"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/roster"
	"github.com/vytor/assessment/internal/services"
	"github.com/vytor/assessment/internal/testutil/mocks"
)

var (
	seedTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	hasher   = auth.NewPINHasher(bcrypt.MinCost)
	ayoub    = roster.Entry{ID: "u3", Name: "Ayoub", PIN: "00229900e", Role: models.RoleParticipant}

	ayoubOnly = &roster.Roster{Entries: []roster.Entry{ayoub}}
)

type directoryMocks struct {
	participants *mocks.MockParticipantRepository
	sessions     *mocks.MockSessionRepository
	answers      *mocks.MockAnswerRepository
}

func newDirectory(t *testing.T) (services.DirectoryService, directoryMocks) {
	t.Helper()
	m := directoryMocks{
		participants: new(mocks.MockParticipantRepository),
		sessions:     new(mocks.MockSessionRepository),
		answers:      new(mocks.MockAnswerRepository),
	}
	svc := services.NewDirectoryService(m.participants, m.sessions, m.answers, hasher,
		services.WithClock(func() time.Time { return seedTime }))
	return svc, m
}

func mustHash(t *testing.T, pin string) string {
	t.Helper()
	h, err := hasher.Hash(pin)
	require.NoError(t, err)
	return h
}

func TestEnsureEntry_CreatesMissingRecord(t *testing.T) {
	ctx := context.Background()
	svc, m := newDirectory(t)

	m.participants.On("Get", ctx, "u3").Return(nil, nil)
	m.participants.On("FindByName", ctx, "Ayoub").Return(nil, nil)
	m.participants.On("Insert", ctx, mock.MatchedBy(func(p models.Participant) bool {
		return p.ID == "u3" && p.Name == "Ayoub" && p.CreatedAt.Equal(seedTime) &&
			hasher.Matches(p.PINHash, "00229900e")
	})).Return(nil)

	report, err := svc.EnsureEntry(ctx, ayoubOnly, ayoub)
	require.NoError(t, err)
	assert.Equal(t, []string{"u3"}, report.Created)
	m.participants.AssertExpectations(t)
}

func TestEnsureSeed_SecondRunPerformsNoWrites(t *testing.T) {
	ctx := context.Background()
	svc, m := newDirectory(t)

	stored := &models.Participant{ID: "u3", Name: "Ayoub", PINHash: mustHash(t, "00229900e"), Role: models.RoleParticipant}
	m.participants.On("Get", ctx, "u3").Return(stored, nil)
	m.participants.On("FindByName", ctx, "Ayoub").Return([]models.Participant{*stored}, nil)

	report, err := svc.EnsureSeed(ctx, &roster.Roster{Entries: []roster.Entry{ayoub}})
	require.NoError(t, err)

	assert.Zero(t, report.Writes())
	m.participants.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	m.participants.AssertNotCalled(t, "Adopt", mock.Anything, mock.Anything, mock.Anything)
	m.participants.AssertNotCalled(t, "Merge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.participants.AssertNotCalled(t, "UpdateCredentials", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureEntry_AdoptsLegacyRecord(t *testing.T) {
	ctx := context.Background()
	svc, m := newDirectory(t)

	legacyCreated := seedTime.Add(-72 * time.Hour)
	legacy := models.Participant{ID: "ayoub_1712", Name: "Ayoub", Role: models.RoleParticipant, Language: models.LanguageFrench, CreatedAt: legacyCreated}

	m.participants.On("Get", ctx, "u3").Return(nil, nil)
	m.participants.On("FindByName", ctx, "Ayoub").Return([]models.Participant{legacy}, nil)
	m.participants.On("Adopt", ctx, "ayoub_1712", mock.MatchedBy(func(p models.Participant) bool {
		return p.ID == "u3" && p.CreatedAt.Equal(legacyCreated) && p.Language == models.LanguageFrench
	})).Return(nil)

	report, err := svc.EnsureEntry(ctx, ayoubOnly, ayoub)
	require.NoError(t, err)
	assert.Equal(t, []string{"ayoub_1712"}, report.Migrated)
	assert.Empty(t, report.Created)
	m.participants.AssertExpectations(t)
}

func TestEnsureEntry_NeverAdoptsAnotherRosterIdentity(t *testing.T) {
	ctx := context.Background()
	svc, m := newDirectory(t)

	newcomer := roster.Entry{ID: "u7", Name: "Mahmoud", PIN: "7777", Role: models.RoleParticipant}
	renamed := roster.Entry{ID: "u1", Name: "Mahmoud K.", PIN: "1111", Role: models.RoleParticipant}
	r := &roster.Roster{Entries: []roster.Entry{newcomer, renamed}}
	stored := models.Participant{ID: "u1", Name: "Mahmoud", PINHash: mustHash(t, "1111"), Role: models.RoleParticipant}

	m.participants.On("Get", ctx, "u7").Return(nil, nil)
	m.participants.On("FindByName", ctx, "Mahmoud").Return([]models.Participant{stored}, nil)
	m.participants.On("Insert", ctx, mock.MatchedBy(func(p models.Participant) bool {
		return p.ID == "u7" && p.Name == "Mahmoud"
	})).Return(nil)

	report, err := svc.EnsureEntry(ctx, r, newcomer)
	require.NoError(t, err)
	assert.Equal(t, []string{"u7"}, report.Created)
	assert.Empty(t, report.Migrated)
	assert.Empty(t, report.Merged)
	m.participants.AssertNotCalled(t, "Adopt", mock.Anything, mock.Anything, mock.Anything)
	m.participants.AssertNotCalled(t, "Merge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.answers.AssertNotCalled(t, "Count", mock.Anything, mock.Anything)
}

func TestEnsureEntry_MergeKeepsStrictlyMoreAnswers(t *testing.T) {
	tests := []struct {
		name           string
		canonicalCount int
		duplicateCount int
		keepDuplicate  bool
	}{
		{"duplicate has more", 2, 3, true},
		{"tie favors canonical", 3, 3, false},
		{"canonical has more", 5, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, m := newDirectory(t)

			stored := &models.Participant{ID: "u3", Name: "Ayoub", PINHash: mustHash(t, "00229900e"), Role: models.RoleParticipant}
			dup := models.Participant{ID: "ayoub_dup", Name: "Ayoub", Role: models.RoleParticipant}
			m.participants.On("Get", ctx, "u3").Return(stored, nil)
			m.participants.On("FindByName", ctx, "Ayoub").Return([]models.Participant{*stored, dup}, nil)
			m.answers.On("Count", ctx, "u3").Return(tt.canonicalCount, nil)
			m.answers.On("Count", ctx, "ayoub_dup").Return(tt.duplicateCount, nil)
			m.participants.On("Merge", ctx, "u3", "ayoub_dup", tt.keepDuplicate).Return(nil)

			report, err := svc.EnsureEntry(ctx, ayoubOnly, ayoub)
			require.NoError(t, err)
			assert.Equal(t, []string{"ayoub_dup"}, report.Merged)
			m.participants.AssertExpectations(t)
		})
	}
}

func TestEnsureEntry_SyncsChangedPIN(t *testing.T) {
	ctx := context.Background()
	svc, m := newDirectory(t)

	stored := &models.Participant{ID: "u3", Name: "Ayoub", PINHash: mustHash(t, "old-pin"), Role: models.RoleParticipant}
	m.participants.On("Get", ctx, "u3").Return(stored, nil)
	m.participants.On("FindByName", ctx, "Ayoub").Return([]models.Participant{*stored}, nil)
	m.participants.On("UpdateCredentials", ctx, "u3", "Ayoub", mock.MatchedBy(func(h string) bool {
		return hasher.Matches(h, "00229900e")
	})).Return(nil)

	report, err := svc.EnsureEntry(ctx, ayoubOnly, ayoub)
	require.NoError(t, err)
	assert.Equal(t, []string{"u3"}, report.Updated)
	m.participants.AssertExpectations(t)
}

func TestAuthenticate_GenericFailure(t *testing.T) {
	ctx := context.Background()
	svc, m := newDirectory(t)

	stored := &models.Participant{ID: "u3", Name: "Ayoub", PINHash: mustHash(t, "00229900e"), Role: models.RoleParticipant}
	m.participants.On("Get", ctx, "u3").Return(stored, nil)
	m.participants.On("Get", ctx, "ghost").Return(nil, nil)

	_, wrongPIN := svc.Authenticate(ctx, "u3", "1111")
	_, unknown := svc.Authenticate(ctx, "ghost", "00229900e")

	require.Error(t, wrongPIN)
	require.Error(t, unknown)
	assert.True(t, errors.HasCode(wrongPIN, errors.ErrCodeInvalidCredentials))
	assert.Equal(t, wrongPIN.Error(), unknown.Error())
	m.sessions.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestAuthenticate_HasProgress(t *testing.T) {
	completedAt := seedTime
	tests := []struct {
		name    string
		session *models.Session
		want    bool
	}{
		{"no session", nil, false},
		{"fresh session", &models.Session{ParticipantID: "u3"}, false},
		{"moved on", &models.Session{ParticipantID: "u3", CurrentIndex: 4}, true},
		{"time only", &models.Session{ParticipantID: "u3", TotalTimeSpent: 2.5}, true},
		{"completed", &models.Session{ParticipantID: "u3", CurrentIndex: 19, IsCompleted: true, CompletedAt: &completedAt}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, m := newDirectory(t)

			stored := &models.Participant{ID: "u3", Name: "Ayoub", PINHash: mustHash(t, "00229900e"), Role: models.RoleParticipant}
			m.participants.On("Get", ctx, "u3").Return(stored, nil)
			if tt.session == nil {
				m.sessions.On("Get", ctx, "u3").Return(nil, nil)
			} else {
				m.sessions.On("Get", ctx, "u3").Return(tt.session, nil)
			}

			result, err := svc.Authenticate(ctx, "u3", "00229900e")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.HasProgress)
			assert.Empty(t, result.Profile.PINHash)
		})
	}
}

func TestSetLanguage(t *testing.T) {
	ctx := context.Background()
	svc, m := newDirectory(t)

	err := svc.SetLanguage(ctx, "u3", models.Language("de"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
	m.participants.AssertNotCalled(t, "UpdateLanguage", mock.Anything, mock.Anything, mock.Anything)

	m.participants.On("UpdateLanguage", ctx, "u3", models.LanguageArabic).Return(true, nil)
	m.participants.On("UpdateLanguage", ctx, "ghost", models.LanguageArabic).Return(false, nil)

	assert.NoError(t, svc.SetLanguage(ctx, "u3", models.LanguageArabic))
	assert.True(t, errors.HasCode(svc.SetLanguage(ctx, "ghost", models.LanguageArabic), errors.ErrCodeNotFound))
}
