package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vytor/assessment/internal/models"
)

// MockParticipantRepository is a mock implementation of repository.ParticipantRepository
type MockParticipantRepository struct {
	mock.Mock
}

func (m *MockParticipantRepository) Get(ctx context.Context, id string) (*models.Participant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Participant), args.Error(1)
}

func (m *MockParticipantRepository) FindByName(ctx context.Context, name string) ([]models.Participant, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Participant), args.Error(1)
}

func (m *MockParticipantRepository) List(ctx context.Context, role models.Role) ([]models.Participant, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Participant), args.Error(1)
}

func (m *MockParticipantRepository) Insert(ctx context.Context, p models.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockParticipantRepository) UpdateLanguage(ctx context.Context, id string, lang models.Language) (bool, error) {
	args := m.Called(ctx, id, lang)
	return args.Bool(0), args.Error(1)
}

func (m *MockParticipantRepository) UpdateCredentials(ctx context.Context, id, name, pinHash string) error {
	args := m.Called(ctx, id, name, pinHash)
	return args.Error(0)
}

func (m *MockParticipantRepository) Adopt(ctx context.Context, legacyID string, canonical models.Participant) error {
	args := m.Called(ctx, legacyID, canonical)
	return args.Error(0)
}

func (m *MockParticipantRepository) Merge(ctx context.Context, canonicalID, duplicateID string, keepDuplicate bool) error {
	args := m.Called(ctx, canonicalID, duplicateID, keepDuplicate)
	return args.Error(0)
}

func (m *MockParticipantRepository) Purge(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockParticipantRepository) PurgeAll(ctx context.Context, role models.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}
