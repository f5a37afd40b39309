package live

import (
	"context"
	"time"

	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/models"
)

// MessageStats carries the admin overview rows.
const MessageStats = "stats"

// StatsFunc loads the current overview.
type StatsFunc func(ctx context.Context) ([]models.ParticipantStats, error)

// Broadcaster pushes a fresh overview to the hub on every tick while at least
// one dashboard is connected.
type Broadcaster struct {
	hub      *Hub
	stats    StatsFunc
	interval time.Duration
}

func NewBroadcaster(hub *Hub, stats StatsFunc, interval time.Duration) *Broadcaster {
	return &Broadcaster{hub: hub, stats: stats, interval: interval}
}

// Run blocks until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	log := logger.FromContext(ctx).WithPrefix("live")
	log.Info("stats broadcaster started: interval=%s", b.interval)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("stats broadcaster stopped")
			return
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

// Tick sends one overview. It does nothing without listeners.
func (b *Broadcaster) Tick(ctx context.Context) {
	if b.hub.Count() == 0 {
		return
	}
	stats, err := b.stats(ctx)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("live").Warn("failed to load stats: %v", err)
		return
	}
	b.hub.Broadcast(ctx, Message{Type: MessageStats, Data: stats})
}
