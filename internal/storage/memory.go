package storage

import (
	"context"
	"sync"

	"github.com/xaenox/botchat/internal/models"
)

type MemoryStorage struct {
	mu    sync.Mutex
	state *models.State
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Load(ctx context.Context) (*models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		s.state = models.DefaultState()
	}
	return s.state.Clone(), nil
}

func (s *MemoryStorage) Save(ctx context.Context, state *models.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state.Clone()
	return nil
}

func (s *MemoryStorage) Reset(ctx context.Context) (*models.State, error) {
	s.mu.Lock()
	s.state = nil
	s.mu.Unlock()

	return s.Load(ctx)
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
