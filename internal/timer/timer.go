// Package timer runs periodic callbacks one at a time on a single goroutine.
package timer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ErrNotFake is returned by Advance when the loop runs on a real clock.
var ErrNotFake = errors.New("timer: clock cannot be advanced")

// Callback runs once per tick. now is the clock reading when it fires.
type Callback func(ctx context.Context, now time.Time)

// CancelFunc stops a registered timer. Calling it twice is harmless.
type CancelFunc func()

type entry struct {
	id       int
	name     string
	interval time.Duration
	next     time.Time
	fn       Callback
}

// Loop is a cooperative scheduler. Callbacks never overlap: a slow callback
// delays every other timer, and ticks missed meanwhile are skipped.
type Loop struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	entries map[int]*entry
	nextID  int
	wake    chan struct{}
	logger  *zap.Logger
}

func New(clock clockwork.Clock, logger *zap.Logger) *Loop {
	return &Loop{
		clock:   clock,
		entries: make(map[int]*entry),
		wake:    make(chan struct{}, 1),
		logger:  logger,
	}
}

func (l *Loop) Clock() clockwork.Clock {
	return l.clock
}

// OnTick registers fn to run every interval, first one interval from now.
func (l *Loop) OnTick(name string, interval time.Duration, fn Callback) CancelFunc {
	if interval <= 0 {
		interval = time.Second
	}

	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.entries[id] = &entry{
		id:       id,
		name:     name,
		interval: interval,
		next:     l.clock.Now().Add(interval),
		fn:       fn,
	}
	l.mu.Unlock()
	l.notify()

	return func() {
		l.mu.Lock()
		delete(l.entries, id)
		l.mu.Unlock()
		l.notify()
	}
}

func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run fires timers until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		next, ok := l.nextDue()

		var fire <-chan time.Time
		if ok {
			fire = l.clock.After(next.Sub(l.clock.Now()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			continue
		case <-fire:
			l.fireDue(ctx, l.clock.Now())
		}
	}
}

// Advance moves a fake clock forward by d, stopping at every due time on
// the way to fire the timers in order. It must not run alongside Run.
func (l *Loop) Advance(ctx context.Context, d time.Duration) error {
	fake, ok := l.clock.(interface{ Advance(time.Duration) })
	if !ok {
		return ErrNotFake
	}

	target := l.clock.Now().Add(d)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, ok := l.nextDue()
		if !ok || next.After(target) {
			break
		}
		if step := next.Sub(l.clock.Now()); step > 0 {
			fake.Advance(step)
		}
		l.fireDue(ctx, l.clock.Now())
	}
	if rest := target.Sub(l.clock.Now()); rest > 0 {
		fake.Advance(rest)
	}
	return nil
}

func (l *Loop) nextDue() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var next time.Time
	found := false
	for _, e := range l.entries {
		if !found || e.next.Before(next) {
			next = e.next
			found = true
		}
	}
	return next, found
}

// fireDue runs every timer due at now, in registration order, outside the lock so
// callbacks may register or cancel timers.
func (l *Loop) fireDue(ctx context.Context, now time.Time) {
	l.mu.Lock()
	var due []*entry
	for _, e := range l.entries {
		if !e.next.After(now) {
			due = append(due, e)
			for !e.next.After(now) {
				e.next = e.next.Add(e.interval)
			}
		}
	}
	l.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })
	for _, e := range due {
		l.mu.Lock()
		_, alive := l.entries[e.id]
		l.mu.Unlock()
		if !alive {
			continue
		}
		l.call(ctx, e, now)
	}
}

func (l *Loop) call(ctx context.Context, e *entry, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Timer callback panicked",
				zap.String("timer", e.name),
				zap.Any("panic", r))
		}
	}()
	e.fn(ctx, now)
}
