package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/RichardoC/aether-chat/internal/db"
	"github.com/RichardoC/aether-chat/internal/models"
)

// UserState is the application state owned by one logged-in user.
type UserState struct {
	Chat  *ChatStore
	Theme *ThemeStore
	Auth  *AuthState
}

// Registry hands out per-user state, rehydrating it from the blob store the
// first time a user is seen.
type Registry struct {
	blobs db.BlobStore
	now   func() time.Time
	newID func() string

	mu    sync.RWMutex
	users map[string]*UserState
	loads singleflight.Group

	lmu       sync.RWMutex
	listeners map[int]func(Event)
	nextLID   int
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) { r.newID = newID }
}

func NewRegistry(blobs db.BlobStore, opts ...Option) *Registry {
	r := &Registry{
		blobs:     blobs,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		users:     make(map[string]*UserState),
		listeners: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers fn for every committed change. The returned func
// removes it.
func (r *Registry) Subscribe(fn func(Event)) func() {
	r.lmu.Lock()
	id := r.nextLID
	r.nextLID++
	r.listeners[id] = fn
	r.lmu.Unlock()

	return func() {
		r.lmu.Lock()
		delete(r.listeners, id)
		r.lmu.Unlock()
	}
}

func (r *Registry) emit(ev Event) {
	r.lmu.RLock()
	defer r.lmu.RUnlock()
	for _, fn := range r.listeners {
		fn(ev)
	}
}

// For returns userID's state. The first call loads it from the blob store;
// concurrent first calls for the same user share one load, and loads for
// different users do not wait on each other.
func (r *Registry) For(ctx context.Context, userID string) (*UserState, error) {
	r.mu.RLock()
	us, ok := r.users[userID]
	r.mu.RUnlock()
	if ok {
		return us, nil
	}

	v, err, _ := r.loads.Do(userID, func() (any, error) {
		r.mu.RLock()
		us, ok := r.users[userID]
		r.mu.RUnlock()
		if ok {
			return us, nil
		}

		// the load is shared, so one caller's cancellation must not fail the rest
		us, err := r.load(context.WithoutCancel(ctx), userID)
		if err != nil {
			return nil, fmt.Errorf("failed to rehydrate state for %s: %w", userID, err)
		}

		r.mu.Lock()
		r.users[userID] = us
		r.mu.Unlock()
		return us, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*UserState), nil
}

func (r *Registry) load(ctx context.Context, userID string) (*UserState, error) {
	chat := &ChatStore{userID: userID, blobs: r.blobs, emit: r.emit, now: r.now, newID: r.newID}
	if _, err := loadBlob(ctx, r.blobs, blobName(ChatStorage, userID), &chat.state); err != nil {
		return nil, err
	}
	for _, room := range chat.state.Chatrooms {
		if room.Messages == nil {
			room.Messages = []models.Message{}
		}
	}

	theme := &ThemeStore{userID: userID, blobs: r.blobs, emit: r.emit}
	found, err := loadBlob(ctx, r.blobs, blobName(ThemeStorage, userID), &theme.state)
	if err != nil {
		return nil, err
	}
	if !found {
		// first load defaults to dark mode
		theme.state.IsDark = true
	}

	auth := &AuthState{userID: userID, blobs: r.blobs}
	if _, err := loadBlob(ctx, r.blobs, blobName(AuthStorage, userID), &auth.state); err != nil {
		return nil, err
	}

	return &UserState{Chat: chat, Theme: theme, Auth: auth}, nil
}
