package services

import (
	"time"

	"github.com/vytor/assessment/internal/errors"
)

// Option configures a service.
type Option func(*options)

type options struct {
	now          func() time.Time
	onlineWindow time.Duration
}

const defaultOnlineWindow = 30 * time.Second

func buildOptions(opts []Option) options {
	o := options{now: time.Now, onlineWindow: defaultOnlineWindow}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithOnlineWindow sets how recent last activity must be for a participant
// to count as online.
func WithOnlineWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.onlineWindow = d
		}
	}
}

func storeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.NewStoreUnavailableError(err)
}
