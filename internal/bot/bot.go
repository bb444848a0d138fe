package bot

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/botchat/internal/models"
	"github.com/xaenox/botchat/internal/sim"
)

// Engine is the part of the simulator the relay drives.
type Engine interface {
	Snapshot(ctx context.Context) (*models.State, error)
	OnUserMessage(ctx context.Context, text string) (*models.State, error)
	RequestImmediateSpeak(ctx context.Context, botID string) (*models.State, error)
	UpdateBot(ctx context.Context, id string, patch models.BotPatch) (*models.State, error)
	ResetAll(ctx context.Context) (*models.State, error)
	Subscribe(fn sim.Listener)
}

// Sender is satisfied by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot relays one Telegram chat into the simulator and posts every bot line
// back to it.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender Sender
	engine Engine
	chatID atomic.Int64
	logger *zap.Logger
}

// New connects to Telegram. chatID 0 binds to the first chat that writes.
func New(token string, chatID int64, engine Engine, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, engine, chatID, logger)
	b.api = api
	return b, nil
}

func newBot(sender Sender, engine Engine, chatID int64, logger *zap.Logger) *Bot {
	b := &Bot{
		sender: sender,
		engine: engine,
		logger: logger,
	}
	b.chatID.Store(chatID)
	engine.Subscribe(b.relay)
	return b
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.logger.Info("Telegram relay started", zap.String("username", b.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) relay(m models.Message) {
	chatID := b.chatID.Load()
	if chatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(chatID, formatLine(m))
	msg.ParseMode = "MarkdownV2"
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to relay message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.String("author", m.Author))
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	b.chatID.CompareAndSwap(0, message.Chat.ID)
	if message.Chat.ID != b.chatID.Load() {
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		return
	}

	if _, err := b.engine.OnUserMessage(ctx, content); err != nil {
		b.logger.Error("Failed to record user message",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't post your message. Please try again.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "bots":
		b.handleBots(ctx, message)
	case "topics":
		b.handleTopics(ctx, message)
	case "speak":
		b.handleSpeak(ctx, message)
	case "online":
		b.handleOnline(ctx, message, true)
	case "offline":
		b.handleOnline(ctx, message, false)
	case "reset":
		b.handleReset(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to the bot chat! 💬
A few simulated regulars hang out here and chat at their own pace.

Just say something and some of them will answer.
Type "topic: something" to give them a new topic.
Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the chat
/help - Show this help message
/bots - List the bots and when they last talked
/topics - Show the current topics
/speak <name> - Make a bot talk right away
/online <name> - Bring a bot online
/offline <name> - Take a bot offline
/reset - Start over with a fresh chat`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleBots(ctx context.Context, message *tgbotapi.Message) {
	st, err := b.engine.Snapshot(ctx)
	if err != nil {
		b.logger.Error("Failed to load state", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, failed to retrieve the bots. Please try again later.")
		return
	}

	if len(st.Bots) == 0 {
		b.sendMessage(message.Chat.ID, "There are no bots yet.")
		return
	}

	response := "*Bots:*\n"
	for _, bot := range st.Bots {
		response += escapeMarkdown(describeBot(bot)) + "\n"
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, response)
	msg.ParseMode = "MarkdownV2"
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send bot list", zap.Error(err), zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) handleTopics(ctx context.Context, message *tgbotapi.Message) {
	st, err := b.engine.Snapshot(ctx)
	if err != nil {
		b.logger.Error("Failed to load state", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, failed to retrieve the topics. Please try again later.")
		return
	}

	if len(st.Topics) == 0 {
		b.sendMessage(message.Chat.ID, `No topics yet. Say "topic: something" to add one.`)
		return
	}

	response := "*Topics:*\n"
	for _, topic := range st.Topics {
		response += escapeMarkdown("#"+strings.ReplaceAll(topic, " ", "_")) + "\n"
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, response)
	msg.ParseMode = "MarkdownV2"
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send topics", zap.Error(err), zap.Int64("chat_id", message.Chat.ID))
	}
}

// findBot resolves the bot named in the command arguments.
func (b *Bot) findBot(ctx context.Context, message *tgbotapi.Message) (*models.Bot, bool) {
	name := strings.TrimSpace(message.CommandArguments())
	if name == "" {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Usage: /%s <bot name>", message.Command()))
		return nil, false
	}

	st, err := b.engine.Snapshot(ctx)
	if err != nil {
		b.logger.Error("Failed to load state", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, something went wrong. Please try again later.")
		return nil, false
	}

	bot := st.BotByName(name)
	if bot == nil {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("No bot called %q.", name))
		return nil, false
	}
	return bot, true
}

func (b *Bot) handleSpeak(ctx context.Context, message *tgbotapi.Message) {
	bot, ok := b.findBot(ctx, message)
	if !ok {
		return
	}
	if _, err := b.engine.RequestImmediateSpeak(ctx, bot.ID); err != nil {
		b.logger.Error("Failed to schedule bot", zap.Error(err), zap.String("bot_id", bot.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, couldn't wake that bot up.")
	}
}

func (b *Bot) handleOnline(ctx context.Context, message *tgbotapi.Message, online bool) {
	bot, ok := b.findBot(ctx, message)
	if !ok {
		return
	}
	if _, err := b.engine.UpdateBot(ctx, bot.ID, models.BotPatch{Online: &online}); err != nil {
		b.logger.Error("Failed to update bot", zap.Error(err), zap.String("bot_id", bot.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, couldn't update that bot.")
		return
	}

	state := "offline"
	if online {
		state = "online"
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf("%s is %s.", bot.Name, state))
}

func (b *Bot) handleReset(ctx context.Context, message *tgbotapi.Message) {
	if _, err := b.engine.ResetAll(ctx); err != nil {
		b.logger.Error("Failed to reset", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, the reset failed.")
		return
	}
	b.sendMessage(message.Chat.ID, "Fresh start. Everyone's back to defaults.")
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
