package generator

import (
	"context"
	"math/rand"
	"time"

	"github.com/xaenox/botchat/internal/models"
)

// Rand is the random source the generator draws from. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// NewRand returns a time-seeded source.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Request carries everything a strategy needs to produce one utterance.
type Request struct {
	Bot     models.Bot
	Topics  []string
	History []models.Message
}

// TextGenerator produces a line for a bot. Implementations never fail;
// they degrade instead.
type TextGenerator interface {
	Generate(ctx context.Context, settings models.Settings, req Request) string
}
