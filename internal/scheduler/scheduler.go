// Package scheduler decides which bots get a pending response and when.
package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/botchat/internal/activity"
	"github.com/xaenox/botchat/internal/models"
)

// Rand is the random source used for jitter, sampling and picking bots.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Options holds the tunable constants of the scheduler.
type Options struct {
	// DampingFactor scales a bot's per-minute rate for ambient sampling.
	DampingFactor float64
	// SampleInterval is the period the ambient trigger runs at.
	SampleInterval time.Duration
	// ReactiveBots caps how many bots answer a user message.
	ReactiveBots int
	// ManualDelay is how soon a manually requested line is due.
	ManualDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		DampingFactor:  0.9,
		SampleInterval: time.Minute,
		ReactiveBots:   2,
		ManualDelay:    1500 * time.Millisecond,
	}
}

// Scheduler is safe for concurrent use; its random source is only touched
// under mu.
type Scheduler struct {
	mu     sync.Mutex
	queue  *Queue
	rand   Rand
	opts   Options
	logger *zap.Logger
}

func New(queue *Queue, r Rand, opts Options, logger *zap.Logger) *Scheduler {
	d := DefaultOptions()
	if opts.DampingFactor < 0 {
		opts.DampingFactor = 0
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = d.SampleInterval
	}
	if opts.ReactiveBots <= 0 {
		opts.ReactiveBots = d.ReactiveBots
	}
	if opts.ManualDelay <= 0 {
		opts.ManualDelay = d.ManualDelay
	}
	return &Scheduler{
		queue:  queue,
		rand:   r,
		opts:   opts,
		logger: logger,
	}
}

// ScheduleTime returns a jittered due time between the bot's clamped
// minimum and maximum delay after now.
func (s *Scheduler) ScheduleTime(bot models.Bot, now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleTime(bot, now)
}

func (s *Scheduler) scheduleTime(bot models.Bot, now time.Time) time.Time {
	minSec, maxSec := models.ClampDelays(bot.DelayMinSec, bot.DelayMaxSec)
	jitter := s.rand.Float64() * float64(maxSec-minSec) * float64(time.Second)
	return now.Add(time.Duration(minSec)*time.Second + time.Duration(jitter))
}

// OnUserMessage picks up to ReactiveBots eligible bots that are not already
// pending and schedules them to answer.
func (s *Scheduler) OnUserMessage(bots []models.Bot, now time.Time) []models.ScheduledItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.candidates(bots, now)
	s.shuffle(candidates)
	if len(candidates) > s.opts.ReactiveBots {
		candidates = candidates[:s.opts.ReactiveBots]
	}

	var out []models.ScheduledItem
	for _, b := range candidates {
		if item, ok := s.enqueue(b, s.scheduleTime(b, now), models.ReasonUser); ok {
			out = append(out, item)
		}
	}
	return out
}

// SampleAmbient gives every eligible, idle bot one Bernoulli draw per
// sampling interval, at its hourly rate scaled down by the damping factor.
func (s *Scheduler) SampleAmbient(bots []models.Bot, now time.Time) []models.ScheduledItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ScheduledItem
	for _, b := range s.candidates(bots, now) {
		if s.rand.Float64() >= s.Probability(b) {
			continue
		}
		if item, ok := s.enqueue(b, s.scheduleTime(b, now), models.ReasonRandom); ok {
			out = append(out, item)
		}
	}
	return out
}

// Probability is the chance that one ambient sample schedules the bot.
func (s *Scheduler) Probability(bot models.Bot) float64 {
	perInterval := bot.TalkFrequency * s.opts.SampleInterval.Hours()
	p := perInterval * s.opts.DampingFactor
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// RequestImmediate schedules a manual line shortly after now. Activity is
// checked again at delivery time.
func (s *Scheduler) RequestImmediate(bot models.Bot, now time.Time) (models.ScheduledItem, bool) {
	return s.enqueue(bot, now.Add(s.opts.ManualDelay), models.ReasonManual)
}

func (s *Scheduler) candidates(bots []models.Bot, now time.Time) []models.Bot {
	var out []models.Bot
	for _, b := range activity.EligibleBots(bots, now) {
		if !s.queue.Pending(b.ID) {
			out = append(out, b)
		}
	}
	return out
}

func (s *Scheduler) shuffle(bots []models.Bot) {
	for i := len(bots) - 1; i > 0; i-- {
		j := s.rand.Intn(i + 1)
		bots[i], bots[j] = bots[j], bots[i]
	}
}

func (s *Scheduler) enqueue(bot models.Bot, due time.Time, reason models.Reason) (models.ScheduledItem, bool) {
	item := models.ScheduledItem{BotID: bot.ID, Due: due, Reason: reason}
	if !s.queue.Push(item) {
		return item, false
	}
	s.logger.Debug("Scheduled bot",
		zap.String("bot_id", bot.ID),
		zap.String("bot", bot.Name),
		zap.String("reason", string(reason)),
		zap.Time("due", due))
	return item, true
}
