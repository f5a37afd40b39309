// Package autosave implements the participant-side save discipline: edits are
// debounced, navigation forces an immediate save, and a forced save always
// cancels the pending debounced one so a stale value can never land after it.
//
// Elapsed time is measured from the moment the question became current, or
// from the last successful save, whichever is later. The baseline only moves
// on success, so a failed save's interval is carried into the next attempt
// instead of being lost or counted twice.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/payload"
)

// DefaultDelay is the quiet period before a debounced save fires.
const DefaultDelay = 500 * time.Millisecond

// Snapshot is the state handed to the save function.
type Snapshot struct {
	QuestionID     int
	Section        string
	Value          payload.Value
	ElapsedSeconds float64
	Index          int
}

// SaveFunc persists one snapshot.
type SaveFunc func(ctx context.Context, snap Snapshot) error

// Timer is the subset of *time.Timer the saver needs.
type Timer interface {
	Stop() bool
}

// Clock supplies time and timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Option configures a Saver.
type Option func(*Saver)

func WithDelay(d time.Duration) Option {
	return func(s *Saver) {
		if d > 0 {
			s.delay = d
		}
	}
}

func WithClock(c Clock) Option {
	return func(s *Saver) {
		s.clock = c
	}
}

// WithErrorHandler receives failures of debounced saves, which have no caller
// to return them to.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Saver) {
		s.onError = fn
	}
}

// WithContext sets the context used by debounced saves.
func WithContext(ctx context.Context) Option {
	return func(s *Saver) {
		s.ctx = ctx
	}
}

// Saver tracks the current question of one participant.
type Saver struct {
	save    SaveFunc
	clock   Clock
	delay   time.Duration
	onError func(error)
	ctx     context.Context

	// saveMu serializes calls to save; mu guards the fields below.
	saveMu sync.Mutex
	mu     sync.Mutex

	focused  bool
	question int
	section  string
	index    int
	value    payload.Value
	edits    uint64
	saved    uint64
	baseline time.Time

	timer  Timer
	gen    uint64
	closed bool
}

func New(save SaveFunc, opts ...Option) *Saver {
	s := &Saver{
		save:  save,
		clock: realClock{},
		delay: DefaultDelay,
		ctx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Focus makes a question current and starts its timer. Callers navigate with
// Navigate first so the previous question's time is saved.
func (s *Saver) Focus(questionID int, section string, index int, current payload.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.focused = true
	s.question = questionID
	s.section = section
	s.index = index
	s.value = current
	s.edits, s.saved = 0, 0
	s.baseline = s.clock.Now()
}

// Edit records a new value and restarts the quiet period.
func (s *Saver) Edit(v payload.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.focused {
		return
	}
	s.value = v
	s.edits++
	s.cancelLocked()
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(gen) })
}

// Pending reports whether an edit has not been saved yet.
func (s *Saver) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edits != s.saved
}

// Navigate force-saves the current question, recording newIndex as the
// participant's position.
func (s *Saver) Navigate(ctx context.Context, newIndex int) error {
	return s.force(ctx, &newIndex)
}

// Flush force-saves the current question without moving.
func (s *Saver) Flush(ctx context.Context) error {
	return s.force(ctx, nil)
}

// Close cancels any pending save. Cancelled saves never fire.
func (s *Saver) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.closed = true
}

// cancelLocked stops the pending timer and invalidates any callback that
// already started.
func (s *Saver) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

type pendingSave struct {
	snap  Snapshot
	at    time.Time
	edits uint64
}

func (s *Saver) snapshotLocked(index int) pendingSave {
	now := s.clock.Now()
	elapsed := now.Sub(s.baseline).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	v := s.value
	if v == nil {
		v = payload.Text("")
	}
	return pendingSave{
		snap: Snapshot{
			QuestionID:     s.question,
			Section:        s.section,
			Value:          v,
			ElapsedSeconds: elapsed,
			Index:          index,
		},
		at:    now,
		edits: s.edits,
	}
}

func (s *Saver) fire(gen uint64) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	p := s.snapshotLocked(s.index)
	s.mu.Unlock()

	if err := s.commit(s.ctx, p); err != nil {
		logger.FromContext(s.ctx).Warn("debounced save failed: question_id=%d: %v", p.snap.QuestionID, err)
		if s.onError != nil {
			s.onError(err)
		}
	}
}

func (s *Saver) force(ctx context.Context, newIndex *int) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if !s.focused {
		s.mu.Unlock()
		return nil
	}
	s.cancelLocked()
	index := s.index
	if newIndex != nil {
		index = *newIndex
	}
	p := s.snapshotLocked(index)
	s.mu.Unlock()

	return s.commit(ctx, p)
}

func (s *Saver) commit(ctx context.Context, p pendingSave) error {
	if err := s.save(ctx, p.snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.question == p.snap.QuestionID {
		s.baseline = p.at
		s.index = p.snap.Index
		if p.edits > s.saved {
			s.saved = p.edits
		}
	}
	return nil
}
