package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/botchat/internal/models"
	"github.com/xaenox/botchat/internal/sim"
)

type recordingEngine struct {
	state    *models.State
	said     []string
	speak    []string
	added    []models.BotPatch
	removed  []string
	resets   int
	listener sim.Listener
}

func (e *recordingEngine) Snapshot(ctx context.Context) (*models.State, error) {
	return e.state.Clone(), nil
}

func (e *recordingEngine) OnUserMessage(ctx context.Context, text string) (*models.State, error) {
	e.said = append(e.said, text)
	return e.state.Clone(), nil
}

func (e *recordingEngine) RequestImmediateSpeak(ctx context.Context, botID string) (*models.State, error) {
	e.speak = append(e.speak, botID)
	return e.state.Clone(), nil
}

func (e *recordingEngine) AddBot(ctx context.Context, patch models.BotPatch) (*models.State, error) {
	e.added = append(e.added, patch)
	return e.state.Clone(), nil
}

func (e *recordingEngine) RemoveBot(ctx context.Context, id string) (*models.State, error) {
	e.removed = append(e.removed, id)
	return e.state.Clone(), nil
}

func (e *recordingEngine) ResetAll(ctx context.Context) (*models.State, error) {
	e.resets++
	return e.state.Clone(), nil
}

func (e *recordingEngine) Subscribe(fn sim.Listener) {
	e.listener = fn
}

func TestRunConsole(t *testing.T) {
	engine := &recordingEngine{state: models.DefaultState()}
	id := engine.state.Bots[0].ID

	in := strings.NewReader(strings.Join([]string{
		"topic: beaming",
		"",
		"/speak chillbro",
		"/speak nobody",
		"/add HypeDude beaming tricks",
		"/remove ChillBro",
		"/reset",
		"/dance",
		"/quit",
		"never read",
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, runConsole(context.Background(), engine, in, &out))

	assert.Equal(t, []string{"topic: beaming"}, engine.said)
	assert.Equal(t, []string{id}, engine.speak)
	assert.Equal(t, []string{id}, engine.removed)
	require.Len(t, engine.added, 1)
	assert.Equal(t, "HypeDude", *engine.added[0].Name)
	assert.Equal(t, "beaming tricks", *engine.added[0].Subject)
	assert.Equal(t, 1, engine.resets)
	assert.Contains(t, out.String(), `no bot called "nobody"`)
	assert.Contains(t, out.String(), "unknown command /dance")
}

func TestRunConsole_PrintsBotLines(t *testing.T) {
	engine := &recordingEngine{state: models.DefaultState()}
	var out bytes.Buffer

	require.NoError(t, runConsole(context.Background(), engine, strings.NewReader(""), &out))
	require.NotNil(t, engine.listener)

	engine.listener(models.NewMessage("ChillBro", "yo wsg", time.Date(2024, 5, 10, 14, 0, 5, 0, time.UTC)))
	assert.Contains(t, out.String(), "[14:00:05] ChillBro: yo wsg\n")
}
