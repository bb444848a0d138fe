// Package sim owns the simulator: it exposes the operations a front-end
// calls and drives the ambient sampler and delivery tick.
package sim

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/botchat/internal/delivery"
	"github.com/xaenox/botchat/internal/models"
	"github.com/xaenox/botchat/internal/scheduler"
	"github.com/xaenox/botchat/internal/storage"
	"github.com/xaenox/botchat/internal/timer"
)

var topicPattern = regexp.MustCompile(`(?i)^(topic|subjects?):\s*(.+)$`)

// Options sets the two timer periods.
type Options struct {
	TickInterval    time.Duration
	AmbientInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		TickInterval:    time.Second,
		AmbientInterval: time.Minute,
	}
}

// Listener receives every message a bot commits.
type Listener func(models.Message)

type Engine struct {
	guard     *storage.Guard
	queue     *scheduler.Queue
	scheduler *scheduler.Scheduler
	delivery  *delivery.Loop
	loop      *timer.Loop
	opts      Options
	logger    *zap.Logger

	mu        sync.RWMutex
	listeners []Listener
}

func New(
	guard *storage.Guard,
	queue *scheduler.Queue,
	sched *scheduler.Scheduler,
	deliveryLoop *delivery.Loop,
	loop *timer.Loop,
	opts Options,
	logger *zap.Logger,
) *Engine {
	d := DefaultOptions()
	if opts.TickInterval <= 0 {
		opts.TickInterval = d.TickInterval
	}
	if opts.AmbientInterval <= 0 {
		opts.AmbientInterval = d.AmbientInterval
	}
	return &Engine{
		guard:     guard,
		queue:     queue,
		scheduler: sched,
		delivery:  deliveryLoop,
		loop:      loop,
		opts:      opts,
		logger:    logger,
	}
}

func (e *Engine) now() time.Time {
	return e.loop.Clock().Now()
}

// Subscribe registers fn for every committed bot message.
func (e *Engine) Subscribe(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) publish(msgs []models.Message) {
	e.mu.RLock()
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.RUnlock()

	for _, m := range msgs {
		for _, fn := range listeners {
			fn(m)
		}
	}
}

// Start registers the ambient sampler and the delivery tick on the timer
// loop. The returned func unregisters both.
func (e *Engine) Start() timer.CancelFunc {
	stopAmbient := e.loop.OnTick("ambient", e.opts.AmbientInterval, e.sampleAmbient)
	stopTick := e.loop.OnTick("delivery", e.opts.TickInterval, e.deliverTick)
	return func() {
		stopAmbient()
		stopTick()
	}
}

// Run starts the timers and blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	stop := e.Start()
	defer stop()

	e.logger.Info("Simulator running",
		zap.Duration("tick", e.opts.TickInterval),
		zap.Duration("ambient", e.opts.AmbientInterval))
	return e.loop.Run(ctx)
}

func (e *Engine) sampleAmbient(ctx context.Context, now time.Time) {
	st, err := e.guard.Snapshot(ctx)
	if err != nil {
		e.logger.Error("Failed to load state for ambient sampling", zap.Error(err))
		return
	}
	e.scheduler.SampleAmbient(st.Bots, now)
}

func (e *Engine) deliverTick(ctx context.Context, now time.Time) {
	msgs, err := e.delivery.Tick(ctx, now)
	if err != nil {
		e.logger.Error("Failed to deliver messages", zap.Error(err))
		return
	}
	e.publish(msgs)
}

// Snapshot returns the current state.
func (e *Engine) Snapshot(ctx context.Context) (*models.State, error) {
	return e.guard.Snapshot(ctx)
}

// Pending returns the queued speak intents in due order.
func (e *Engine) Pending() []models.ScheduledItem {
	return e.queue.Items()
}

// AddBot puts a new bot, built from the defaults plus patch, at the top of
// the roster.
func (e *Engine) AddBot(ctx context.Context, patch models.BotPatch) (*models.State, error) {
	return e.guard.Update(ctx, func(st *models.State) error {
		bot := models.DefaultBot()
		patch.Apply(&bot)
		bot.ID = uuid.New().String()
		bot.LastSpokeAt = time.Time{}
		st.Bots = append([]models.Bot{bot}, st.Bots...)
		e.logger.Info("Bot added", zap.String("bot_id", bot.ID), zap.String("bot", bot.Name))
		return nil
	})
}

// UpdateBot patches a bot. Unknown ids change nothing.
func (e *Engine) UpdateBot(ctx context.Context, id string, patch models.BotPatch) (*models.State, error) {
	return e.guard.Update(ctx, func(st *models.State) error {
		if bot := st.Bot(id); bot != nil {
			patch.Apply(bot)
		}
		return nil
	})
}

// RemoveBot deletes a bot. A pending item for it is dropped at delivery.
func (e *Engine) RemoveBot(ctx context.Context, id string) (*models.State, error) {
	return e.guard.Update(ctx, func(st *models.State) error {
		bots := st.Bots[:0]
		for _, b := range st.Bots {
			if b.ID != id {
				bots = append(bots, b)
			}
		}
		st.Bots = bots
		return nil
	})
}

// OnUserMessage records a message from the human user, picks up a
// "topic: X" line as a new topic and asks a couple of bots to answer.
func (e *Engine) OnUserMessage(ctx context.Context, text string) (*models.State, error) {
	now := e.now()
	st, err := e.guard.Update(ctx, func(st *models.State) error {
		if m := topicPattern.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
			if topic := strings.TrimSpace(m[2]); topic != "" && st.AddTopic(topic) {
				e.logger.Info("Topic added", zap.String("topic", topic))
			}
		}
		st.Messages = append(st.Messages, models.NewMessage(models.UserAuthor, text, now))
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.scheduler.OnUserMessage(st.Bots, now)
	return st, nil
}

// RequestImmediateSpeak schedules a bot to talk in about a second and a half.
func (e *Engine) RequestImmediateSpeak(ctx context.Context, botID string) (*models.State, error) {
	st, err := e.guard.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if bot := st.Bot(botID); bot != nil {
		e.scheduler.RequestImmediate(*bot, e.now())
	}
	return st, nil
}

// SetSettings patches the generation settings.
func (e *Engine) SetSettings(ctx context.Context, patch models.SettingsPatch) (*models.State, error) {
	return e.guard.Update(ctx, func(st *models.State) error {
		patch.Apply(&st.Settings)
		return nil
	})
}

// ResetAll wipes the stored state and every pending item.
func (e *Engine) ResetAll(ctx context.Context) (*models.State, error) {
	e.queue.Clear()
	st, err := e.guard.Reset(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info("State reset")
	return st.Clone(), nil
}
