package store

import (
	"context"
	"sync"

	"github.com/RichardoC/aether-chat/internal/db"
	"github.com/RichardoC/aether-chat/internal/models"
)

type authState struct {
	User            *models.User `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	// Generation increases on every logout. Sessions issued under an older
	// generation are no longer valid.
	Generation int `json:"generation"`
}

// AuthState remembers who is logged in for a user id.
type AuthState struct {
	mu     sync.RWMutex
	state  authState
	userID string
	blobs  db.BlobStore
}

func (s *AuthState) commit(ctx context.Context, next authState) error {
	if err := saveBlob(ctx, s.blobs, blobName(AuthStorage, s.userID), next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// Login marks user as logged in and returns the session generation new
// tokens must carry.
func (s *AuthState) Login(ctx context.Context, user models.User) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := authState{User: &user, IsAuthenticated: true, Generation: s.state.Generation}
	if err := s.commit(ctx, next); err != nil {
		return 0, err
	}
	return next.Generation, nil
}

// Logout ends every session of the user, not just the caller's.
func (s *AuthState) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, authState{Generation: s.state.Generation + 1})
}

func (s *AuthState) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// Valid reports whether a session issued under generation is still live.
func (s *AuthState) Valid(generation int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated && s.state.Generation == generation
}

func (s *AuthState) Generation() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Generation
}

func (s *AuthState) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return nil
	}
	u := *s.state.User
	return &u
}
