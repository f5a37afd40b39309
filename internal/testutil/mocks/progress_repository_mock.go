package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vytor/assessment/internal/models"
)

// MockProgressRepository is a mock implementation of repository.ProgressRepository
type MockProgressRepository struct {
	mock.Mock
}

func (m *MockProgressRepository) Record(ctx context.Context, update models.ProgressUpdate) (models.ProgressOutcome, error) {
	args := m.Called(ctx, update)
	return args.Get(0).(models.ProgressOutcome), args.Error(1)
}
