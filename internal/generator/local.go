package generator

import (
	"context"
	"strings"

	"github.com/xaenox/botchat/internal/models"
)

var slangLex = []string{
	"yo", "wsg", "wassup", "fr", "bet", "ngl", "lowkey", "highkey",
	"sheesh", "bruh", "oomf", "tbf", "idk", "gtg", "ttyl", "ight",
	"say less", "no cap", "deadass", "bro", "fam",
}

var interjections = []string{"tbh", "ngl", "okok", "look", "real talk", "lowkey", "highkey"}

const (
	defaultSubject = "random vibes"
	refMaxLen      = 40
	sentenceSep    = ". "
)

// LocalGenerator composes slang-heavy one-liners without any network call.
type LocalGenerator struct {
	rand         Rand
	maxSentences int
}

func NewLocalGenerator(r Rand, maxSentences int) *LocalGenerator {
	if maxSentences < 1 {
		maxSentences = 1
	}
	return &LocalGenerator{rand: r, maxSentences: maxSentences}
}

func (g *LocalGenerator) Generate(_ context.Context, _ models.Settings, req Request) string {
	return strings.Join(g.sentences(req), sentenceSep)
}

func (g *LocalGenerator) pick(list []string) string {
	return list[g.rand.Intn(len(list))]
}

func (g *LocalGenerator) maybe(p float64) bool {
	return g.rand.Float64() < p
}

// sentences builds the utterance, already cut to maxSentences.
func (g *LocalGenerator) sentences(req Request) []string {
	subject := req.Bot.Subject
	if len(req.Topics) > 0 {
		subject = g.pick(req.Topics)
	}
	if subject == "" {
		subject = defaultSubject
	}

	slang := make([]string, 1+g.rand.Intn(2))
	for i := range slang {
		slang[i] = g.pick(slangLex)
	}

	interj := ""
	if g.maybe(0.4) {
		interj = g.pick(interjections) + ", "
	}

	var first strings.Builder
	first.WriteString(interj)
	first.WriteString(strings.Join(slang, " "))
	first.WriteString(" " + tone(req.Bot.Persona) + " on " + subject)
	if g.maybe(0.5) {
		first.WriteString(" rn")
	}
	if g.maybe(0.3) {
		first.WriteString(" no cap")
	}
	first.WriteString(reference(req.History))

	out := []string{strings.TrimSpace(first.String())}
	if g.maybe(0.5) {
		s := "like " + subject + " kinda wild"
		if g.maybe(0.5) {
			s += " fr"
		}
		out = append(out, s)
	}
	if g.maybe(0.3) {
		out = append(out, "gtg soon but "+subject+" still on my mind lol")
	}

	if len(out) > g.maxSentences {
		out = out[:g.maxSentences]
	}
	return out
}

func tone(persona string) string {
	p := strings.ToLower(persona)
	switch {
	case strings.Contains(p, "hype"):
		return "LET'S GOO"
	case strings.Contains(p, "chill"):
		return "chillin"
	case strings.Contains(p, "nerd"):
		return "FYI"
	default:
		return "vibes"
	}
}

// reference quotes the latest message the human user wrote.
func reference(history []models.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Author != models.UserAuthor {
			continue
		}
		text := []rune(history[i].Text)
		if len(text) > refMaxLen {
			text = text[:refMaxLen]
		}
		return " re: " + string(text)
	}
	return ""
}
