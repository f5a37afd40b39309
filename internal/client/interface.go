package client

import (
	"context"

	"github.com/vytor/assessment/internal/models"
)

// ParticipantAPI defines the calls a survey frontend makes.
// This interface enables testability by allowing mock implementations.
type ParticipantAPI interface {
	Login(ctx context.Context, participantID, pin string) (*LoginResponse, error)
	Catalog(ctx context.Context) (*CatalogResponse, error)
	State(ctx context.Context) (*models.FullState, error)
	StartSession(ctx context.Context) (*models.Session, error)
	SetLanguage(ctx context.Context, lang models.Language) error
	RecordAnswer(ctx context.Context, a Answer) (bool, error)
	LogEvent(ctx context.Context, kind models.EventKind) error
	Heartbeat(ctx context.Context) error
	Complete(ctx context.Context) error
}

// Ensure Client implements the interface
var _ ParticipantAPI = (*Client)(nil)
