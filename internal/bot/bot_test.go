package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xaenox/botchat/internal/models"
	"github.com/xaenox/botchat/internal/sim"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (s *fakeSender) last() tgbotapi.MessageConfig {
	return s.sent[len(s.sent)-1]
}

type fakeEngine struct {
	state     *models.State
	userTexts []string
	speak     []string
	patches   map[string]models.BotPatch
	resets    int
	listener  sim.Listener
}

func newFakeEngine() *fakeEngine {
	st := models.DefaultState()
	st.Topics = []string{"beaming", "late night"}
	return &fakeEngine{state: st, patches: map[string]models.BotPatch{}}
}

func (e *fakeEngine) Snapshot(ctx context.Context) (*models.State, error) {
	return e.state.Clone(), nil
}

func (e *fakeEngine) OnUserMessage(ctx context.Context, text string) (*models.State, error) {
	e.userTexts = append(e.userTexts, text)
	return e.state.Clone(), nil
}

func (e *fakeEngine) RequestImmediateSpeak(ctx context.Context, botID string) (*models.State, error) {
	e.speak = append(e.speak, botID)
	return e.state.Clone(), nil
}

func (e *fakeEngine) UpdateBot(ctx context.Context, id string, patch models.BotPatch) (*models.State, error) {
	e.patches[id] = patch
	return e.state.Clone(), nil
}

func (e *fakeEngine) ResetAll(ctx context.Context) (*models.State, error) {
	e.resets++
	return e.state.Clone(), nil
}

func (e *fakeEngine) Subscribe(fn sim.Listener) {
	e.listener = fn
}

func newTestBot(t *testing.T, chatID int64) (*Bot, *fakeSender, *fakeEngine) {
	t.Helper()
	sender := &fakeSender{}
	engine := newFakeEngine()
	return newBot(sender, engine, chatID, zaptest.NewLogger(t)), sender, engine
}

func textMessage(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: 7},
	}
}

func commandMessage(chatID int64, command, args string) *tgbotapi.Message {
	text := "/" + command
	if args != "" {
		text += " " + args
	}
	m := textMessage(chatID, text)
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}}
	return m
}

func TestHandleMessage_ForwardsUserText(t *testing.T) {
	b, _, engine := newTestBot(t, 0)

	b.handleMessage(context.Background(), textMessage(42, "topic: beaming"))
	assert.Equal(t, []string{"topic: beaming"}, engine.userTexts)
	assert.Equal(t, int64(42), b.chatID.Load())

	// Other chats are ignored once bound.
	b.handleMessage(context.Background(), textMessage(99, "hi"))
	assert.Len(t, engine.userTexts, 1)
}

func TestHandleMessage_UsesCaption(t *testing.T) {
	b, _, engine := newTestBot(t, 42)
	m := textMessage(42, "")
	m.Caption = "look at this"

	b.handleMessage(context.Background(), m)
	assert.Equal(t, []string{"look at this"}, engine.userTexts)
}

func TestSpeakCommand(t *testing.T) {
	b, sender, engine := newTestBot(t, 42)
	id := engine.state.Bots[0].ID

	b.handleMessage(context.Background(), commandMessage(42, "speak", "chillbro"))
	assert.Equal(t, []string{id}, engine.speak)

	b.handleMessage(context.Background(), commandMessage(42, "speak", "nobody"))
	assert.Contains(t, sender.last().Text, `No bot called "nobody"`)

	b.handleMessage(context.Background(), commandMessage(42, "speak", ""))
	assert.Equal(t, "Usage: /speak <bot name>", sender.last().Text)
}

func TestOnlineCommands(t *testing.T) {
	b, sender, engine := newTestBot(t, 42)
	id := engine.state.Bots[0].ID

	b.handleMessage(context.Background(), commandMessage(42, "offline", "ChillBro"))
	require.Contains(t, engine.patches, id)
	require.NotNil(t, engine.patches[id].Online)
	assert.False(t, *engine.patches[id].Online)
	assert.Equal(t, "ChillBro is offline.", sender.last().Text)

	b.handleMessage(context.Background(), commandMessage(42, "online", "ChillBro"))
	assert.True(t, *engine.patches[id].Online)
}

func TestTopicsAndBotsCommands(t *testing.T) {
	b, sender, _ := newTestBot(t, 42)

	b.handleMessage(context.Background(), commandMessage(42, "topics", ""))
	assert.Equal(t, "*Topics:*\n\\#beaming\n\\#late\\_night\n", sender.last().Text)
	assert.Equal(t, "MarkdownV2", sender.last().ParseMode)

	b.handleMessage(context.Background(), commandMessage(42, "bots", ""))
	assert.Contains(t, sender.last().Text, "ChillBro \\(online, 10:00\\-22:00, 10/h, last talked never\\)")
}

func TestResetAndUnknownCommands(t *testing.T) {
	b, sender, engine := newTestBot(t, 42)

	b.handleMessage(context.Background(), commandMessage(42, "reset", ""))
	assert.Equal(t, 1, engine.resets)

	b.handleMessage(context.Background(), commandMessage(42, "dance", ""))
	assert.Contains(t, sender.last().Text, "Unknown command")
}

func TestRelay(t *testing.T) {
	b, sender, engine := newTestBot(t, 0)
	require.NotNil(t, engine.listener)

	// Nothing to relay to before a chat is bound.
	engine.listener(models.NewMessage("ChillBro", "yo", time.Now()))
	assert.Empty(t, sender.sent)

	b.chatID.Store(42)
	engine.listener(models.NewMessage("ChillBro", "yo. fr!", time.Now()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Equal(t, "*ChillBro*: yo\\. fr\\!", sender.sent[0].Text)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\_b\*c\\d`, escapeMarkdown(`a_b*c\d`))
	assert.Equal(t, "plain", escapeMarkdown("plain"))
}
