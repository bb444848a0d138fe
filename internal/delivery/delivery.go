// Package delivery turns due pending items into conversation messages.
package delivery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/botchat/internal/activity"
	"github.com/xaenox/botchat/internal/generator"
	"github.com/xaenox/botchat/internal/models"
	"github.com/xaenox/botchat/internal/scheduler"
	"github.com/xaenox/botchat/internal/storage"
)

const defaultFarewell = "gtg, bye"

// Rand draws the farewell coin.
type Rand interface {
	Float64() float64
}

type Options struct {
	// FarewellProbability is the chance of a goodbye line when a bot
	// speaks within FarewellWindow of its window end.
	FarewellProbability float64
	FarewellWindow      time.Duration
	// FarewellDelay separates the goodbye from the line before it.
	FarewellDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		FarewellProbability: 0.1,
		FarewellWindow:      time.Minute,
		FarewellDelay:       time.Second,
	}
}

// Loop consumes the pending queue on every tick.
type Loop struct {
	queue     *scheduler.Queue
	guard     *storage.Guard
	generator generator.TextGenerator
	rand      Rand
	opts      Options
	logger    *zap.Logger
}

func New(queue *scheduler.Queue, guard *storage.Guard, gen generator.TextGenerator, r Rand, opts Options, logger *zap.Logger) *Loop {
	d := DefaultOptions()
	if opts.FarewellWindow <= 0 {
		opts.FarewellWindow = d.FarewellWindow
	}
	if opts.FarewellDelay <= 0 {
		opts.FarewellDelay = d.FarewellDelay
	}
	return &Loop{
		queue:     queue,
		guard:     guard,
		generator: gen,
		rand:      r,
		opts:      opts,
		logger:    logger,
	}
}

// Tick delivers every item due at now and commits the result in one write.
// It returns the messages that were appended.
func (l *Loop) Tick(ctx context.Context, now time.Time) ([]models.Message, error) {
	due := l.queue.PopDue(now)
	if len(due) == 0 {
		return nil, nil
	}

	var delivered []models.Message
	_, err := l.guard.Update(ctx, func(st *models.State) error {
		delivered = l.deliver(ctx, st, due, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit delivery batch: %w", err)
	}
	return delivered, nil
}

func (l *Loop) deliver(ctx context.Context, st *models.State, due []models.ScheduledItem, now time.Time) []models.Message {
	var out []models.Message
	for _, item := range due {
		bot := st.Bot(item.BotID)
		if bot == nil || !activity.Eligible(*bot, now) {
			l.logger.Debug("Dropped pending item",
				zap.String("bot_id", item.BotID),
				zap.String("reason", string(item.Reason)))
			continue
		}

		text := l.generator.Generate(ctx, st.Settings, generator.Request{
			Bot:     *bot,
			Topics:  st.Topics,
			History: st.Messages,
		})
		msg := models.NewMessage(bot.Name, text, now)
		st.Messages = append(st.Messages, msg)
		bot.LastSpokeAt = now
		out = append(out, msg)

		if l.leaving(*bot, now) {
			farewell := bot.Farewell
			if farewell == "" {
				farewell = defaultFarewell
			}
			bye := models.NewMessage(bot.Name, farewell, now.Add(l.opts.FarewellDelay))
			st.Messages = append(st.Messages, bye)
			out = append(out, bye)
		}

		l.logger.Info("Bot spoke",
			zap.String("bot_id", bot.ID),
			zap.String("bot", bot.Name),
			zap.String("reason", string(item.Reason)))
	}
	return out
}

// leaving decides whether a bot close to its window end says goodbye.
func (l *Loop) leaving(bot models.Bot, now time.Time) bool {
	left, ok := activity.UntilEnd(bot, now)
	if !ok || left >= l.opts.FarewellWindow {
		return false
	}
	return l.rand.Float64() < l.opts.FarewellProbability
}
