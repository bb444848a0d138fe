package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/botchat/internal/models"
)

var errEmptyCompletion = errors.New("completion has no text")

// OpenAIOptions tunes the remote strategy. Zero values fall back to the
// defaults below.
type OpenAIOptions struct {
	BaseURL      string
	MaxTokens    int
	Temperature  float64
	MaxSentences int
	HistoryTurns int
	Timeout      time.Duration
	HTTPClient   *http.Client
}

const (
	defaultMaxTokens    = 120
	defaultTemperature  = 0.85
	defaultHistoryTurns = 12
	defaultTimeout      = 20 * time.Second
)

// OpenAIGenerator asks a chat-completion endpoint for the bot's next line
// and falls back to the local strategy whenever that does not work out.
type OpenAIGenerator struct {
	opts     OpenAIOptions
	fallback TextGenerator
	logger   *zap.Logger
}

func NewOpenAIGenerator(opts OpenAIOptions, fallback TextGenerator, logger *zap.Logger) *OpenAIGenerator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.MaxSentences <= 0 {
		opts.MaxSentences = 2
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = defaultHistoryTurns
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &OpenAIGenerator{
		opts:     opts,
		fallback: fallback,
		logger:   logger,
	}
}

// Generate uses the remote endpoint only when it is enabled and a key is set.
func (g *OpenAIGenerator) Generate(ctx context.Context, settings models.Settings, req Request) string {
	if !settings.UseOpenAI || settings.APIKey == "" {
		return g.fallback.Generate(ctx, settings, req)
	}

	text, err := g.complete(ctx, settings, req)
	if err != nil {
		g.logger.Warn("Remote generation failed, using local fallback",
			zap.Error(err),
			zap.String("bot_id", req.Bot.ID),
			zap.String("model", settings.Model))
		return g.fallback.Generate(ctx, settings, req)
	}
	return text
}

func (g *OpenAIGenerator) client(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if g.opts.BaseURL != "" {
		cfg.BaseURL = g.opts.BaseURL
	}
	if g.opts.HTTPClient != nil {
		cfg.HTTPClient = g.opts.HTTPClient
	}
	return openai.NewClientWithConfig(cfg)
}

func (g *OpenAIGenerator) complete(ctx context.Context, settings models.Settings, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	model := settings.Model
	if model == "" {
		model = models.DefaultModel
	}

	resp, err := g.client(settings.APIKey).CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt(req.Bot, req.Topics, g.opts.MaxSentences),
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: conversationPrompt(req.History, g.opts.HistoryTurns),
				},
			},
			MaxTokens:   g.opts.MaxTokens,
			Temperature: float32(g.opts.Temperature),
		},
	)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

func systemPrompt(bot models.Bot, topics []string, maxSentences int) string {
	preferred := make([]string, 0, 1+len(bot.Topics)+len(topics))
	for _, t := range append(append([]string{bot.Subject}, bot.Topics...), topics...) {
		if t != "" {
			preferred = append(preferred, t)
		}
	}
	topicLine := strings.Join(preferred, ", ")
	if topicLine == "" {
		topicLine = "general chatter"
	}

	return strings.Join([]string{
		fmt.Sprintf("You are a casual Discord-style bot called %s.", bot.Name),
		fmt.Sprintf("Persona: %s. Use modern slang appropriately (e.g., wsg, yo, gtg).", bot.Persona),
		fmt.Sprintf("Stay concise: %d sentences max. Avoid long paragraphs.", maxSentences),
		fmt.Sprintf("Preferred topics: %s.", topicLine),
		"If the user introduces a new topic, acknowledge and riff briefly.",
	}, "\n")
}

func conversationPrompt(history []models.Message, turns int) string {
	if len(history) > turns {
		history = history[len(history)-turns:]
	}
	lines := make([]string, len(history))
	for i, m := range history {
		lines[i] = m.Author + ": " + m.Text
	}
	return "Recent conversation:\n" + strings.Join(lines, "\n") + "\nReply now in your style."
}
