package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/vytor/assessment/internal/models"
)

// MockSessionRepository is a mock implementation of repository.SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Get(ctx context.Context, participantID string) (*models.Session, error) {
	args := m.Called(ctx, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionRepository) List(ctx context.Context) ([]models.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Session), args.Error(1)
}

func (m *MockSessionRepository) CreateOrResume(ctx context.Context, participantID, firstSection string, at time.Time) (bool, error) {
	args := m.Called(ctx, participantID, firstSection, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) Touch(ctx context.Context, participantID string, at time.Time) (bool, error) {
	args := m.Called(ctx, participantID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) Increment(ctx context.Context, participantID string, counter models.Counter) (bool, error) {
	args := m.Called(ctx, participantID, counter)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) Complete(ctx context.Context, participantID string, at time.Time) (bool, error) {
	args := m.Called(ctx, participantID, at)
	return args.Bool(0), args.Error(1)
}
