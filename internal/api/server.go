package api

import (
	"context"

	"github.com/vytor/assessment/internal/auth"
	"github.com/vytor/assessment/internal/catalog"
	"github.com/vytor/assessment/internal/live"
	"github.com/vytor/assessment/internal/services"
)

// Pinger reports store reachability for the readiness probe.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server exposes the survey operations over HTTP.
type Server struct {
	Directory services.DirectoryService
	Sessions  services.SessionService
	Progress  services.ProgressService
	Admin     services.AdminService
	Catalog   *catalog.Catalog
	Tokens    *auth.TokenIssuer
	Store     Pinger
	Hub       *live.Hub

	CORSOrigins []string
}
