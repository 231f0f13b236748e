package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RichardoC/aether-chat/internal/db"
)

const (
	ChatStorage  = "chat-storage"
	ThemeStorage = "theme-storage"
	AuthStorage  = "auth-storage"
)

// envelope matches the layout the web client's persist middleware wrote to
// local storage, so exported blobs stay interchangeable.
type envelope[T any] struct {
	State   T   `json:"state"`
	Version int `json:"version"`
}

func blobName(storage, userID string) string {
	return storage + ":" + userID
}

// loadBlob reports false when nothing was persisted yet.
func loadBlob[T any](ctx context.Context, blobs db.BlobStore, name string, into *T) (bool, error) {
	data, err := blobs.Load(ctx, name)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	*into = env.State
	return true, nil
}

func saveBlob[T any](ctx context.Context, blobs db.BlobStore, name string, state T) error {
	data, err := json.Marshal(envelope[T]{State: state})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return blobs.Save(ctx, name, data)
}
