package store

import (
	"context"
	"sync"

	"github.com/RichardoC/aether-chat/internal/db"
	"github.com/RichardoC/aether-chat/internal/models"
)

type ThemeStore struct {
	mu     sync.RWMutex
	state  models.Theme
	userID string
	blobs  db.BlobStore
	emit   func(Event)
}

func (s *ThemeStore) IsDark() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsDark
}

// Toggle flips dark mode and returns the new value.
func (s *ThemeStore) Toggle(ctx context.Context) (bool, error) {
	s.mu.Lock()
	next := models.Theme{IsDark: !s.state.IsDark}
	if err := saveBlob(ctx, s.blobs, blobName(ThemeStorage, s.userID), next); err != nil {
		s.mu.Unlock()
		return s.IsDark(), err
	}
	s.state = next
	s.mu.Unlock()

	isDark := next.IsDark
	s.emit(Event{Type: EventTheme, UserID: s.userID, IsDark: &isDark})
	return isDark, nil
}
