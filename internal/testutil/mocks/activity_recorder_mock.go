package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vytor/assessment/internal/models"
)

// MockActivityRecorder is a mock implementation of services.ActivityRecorder
type MockActivityRecorder struct {
	mock.Mock
}

func (m *MockActivityRecorder) Record(ctx context.Context, entry models.ActivityLog) {
	m.Called(ctx, entry)
}
