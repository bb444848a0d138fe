package storage

import (
	"context"
	"sync"

	"github.com/xaenox/botchat/internal/models"
)

// Storage persists the whole simulator state. Load on an empty store
// returns the default state instead of failing.
type Storage interface {
	Load(ctx context.Context) (*models.State, error)
	Save(ctx context.Context, state *models.State) error
	Reset(ctx context.Context) (*models.State, error)
	Close() error
}

// Guard serializes read-modify-write cycles against a Storage so no other
// write lands between a batch's load and its save.
type Guard struct {
	mu    sync.Mutex
	store Storage
}

func NewGuard(store Storage) *Guard {
	return &Guard{store: store}
}

// Update loads the state, hands it to fn and saves it if fn returns nil.
// The returned state is a copy the caller may keep.
func (g *Guard) Update(ctx context.Context, fn func(*models.State) error) (*models.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, err := g.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(st); err != nil {
		return st.Clone(), err
	}
	if err := g.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

// Snapshot loads the current state without writing.
func (g *Guard) Snapshot(ctx context.Context) (*models.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.store.Load(ctx)
}

func (g *Guard) Reset(ctx context.Context) (*models.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.store.Reset(ctx)
}
