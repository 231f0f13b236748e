package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/RichardoC/aether-chat/internal/db"
	"github.com/RichardoC/aether-chat/internal/models"
)

var (
	ErrEmptyTitle       = errors.New("chatroom title is required")
	ErrChatroomNotFound = errors.New("chatroom not found")
	ErrInvalidRole      = errors.New("role must be user or assistant")
)

type chatState struct {
	Chatrooms        []*models.Chatroom `json:"chatrooms"`
	ActiveChatroomID *string            `json:"activeChatroomId"`
}

// ChatStore holds one user's chatrooms and the active selection. Every
// mutation builds the next state, mirrors it to the blob store and only then
// swaps it in, so a failed save leaves the previous state untouched.
// Chatroom values are never mutated in place once published.
type ChatStore struct {
	mu     sync.RWMutex
	state  chatState
	typing bool

	userID string
	blobs  db.BlobStore
	emit   func(Event)
	now    func() time.Time
	newID  func() string
}

func (s *ChatStore) commit(ctx context.Context, next chatState) error {
	if err := saveBlob(ctx, s.blobs, blobName(ChatStorage, s.userID), next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *ChatStore) indexOf(id string) int {
	for i, room := range s.state.Chatrooms {
		if room.ID == id {
			return i
		}
	}
	return -1
}

func (s *ChatStore) CreateChatroom(ctx context.Context, title string) (*models.Chatroom, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	room := &models.Chatroom{
		ID:        s.newID(),
		Title:     title,
		CreatedAt: s.now(),
		Messages:  []models.Message{},
	}

	s.mu.Lock()
	rooms := make([]*models.Chatroom, 0, len(s.state.Chatrooms)+1)
	rooms = append(rooms, s.state.Chatrooms...)
	rooms = append(rooms, room)
	id := room.ID
	err := s.commit(ctx, chatState{Chatrooms: rooms, ActiveChatroomID: &id})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.emit(Event{Type: EventChatroomCreated, UserID: s.userID, ChatroomID: room.ID, Chatroom: room.Clone()})
	s.emit(Event{Type: EventActiveChanged, UserID: s.userID, ChatroomID: room.ID})
	return room.Clone(), nil
}

func (s *ChatStore) DeleteChatroom(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrChatroomNotFound
	}

	rooms := make([]*models.Chatroom, 0, len(s.state.Chatrooms)-1)
	rooms = append(rooms, s.state.Chatrooms[:idx]...)
	rooms = append(rooms, s.state.Chatrooms[idx+1:]...)

	active := s.state.ActiveChatroomID
	cleared := active != nil && *active == id
	if cleared {
		active = nil
	}
	err := s.commit(ctx, chatState{Chatrooms: rooms, ActiveChatroomID: active})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emit(Event{Type: EventChatroomDeleted, UserID: s.userID, ChatroomID: id})
	if cleared {
		s.emit(Event{Type: EventActiveChanged, UserID: s.userID})
	}
	return nil
}

// SetActiveChatroom selects id, or clears the selection when id is nil.
func (s *ChatStore) SetActiveChatroom(ctx context.Context, id *string) error {
	s.mu.Lock()
	var active *string
	if id != nil {
		if s.indexOf(*id) < 0 {
			s.mu.Unlock()
			return ErrChatroomNotFound
		}
		v := *id
		active = &v
	}
	err := s.commit(ctx, chatState{Chatrooms: s.state.Chatrooms, ActiveChatroomID: active})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	ev := Event{Type: EventActiveChanged, UserID: s.userID}
	if active != nil {
		ev.ChatroomID = *active
	}
	s.emit(ev)
	return nil
}

func (s *ChatStore) AddMessage(ctx context.Context, chatroomID string, draft models.MessageDraft) (*models.Message, error) {
	if !draft.Role.Valid() {
		return nil, ErrInvalidRole
	}

	msg := models.Message{
		ID:        s.newID(),
		Content:   draft.Content,
		Role:      draft.Role,
		Timestamp: s.now(),
		Image:     draft.Image,
	}

	s.mu.Lock()
	idx := s.indexOf(chatroomID)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrChatroomNotFound
	}

	room := *s.state.Chatrooms[idx]
	room.Messages = make([]models.Message, 0, len(s.state.Chatrooms[idx].Messages)+1)
	room.Messages = append(room.Messages, s.state.Chatrooms[idx].Messages...)
	room.Messages = append(room.Messages, msg)

	rooms := make([]*models.Chatroom, len(s.state.Chatrooms))
	copy(rooms, s.state.Chatrooms)
	rooms[idx] = &room
	err := s.commit(ctx, chatState{Chatrooms: rooms, ActiveChatroomID: s.state.ActiveChatroomID})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := msg
	s.emit(Event{Type: EventMessageAdded, UserID: s.userID, ChatroomID: chatroomID, Message: &out})
	return &msg, nil
}

// SetTyping flips the transient typing indicator. It is not persisted.
func (s *ChatStore) SetTyping(typing bool) {
	s.mu.Lock()
	changed := s.typing != typing
	s.typing = typing
	s.mu.Unlock()

	if changed {
		v := typing
		s.emit(Event{Type: EventTyping, UserID: s.userID, Typing: &v})
	}
}

func (s *ChatStore) IsTyping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing
}

func (s *ChatStore) ActiveChatroomID() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.ActiveChatroomID == nil {
		return nil
	}
	id := *s.state.ActiveChatroomID
	return &id
}

// ActiveChatroom returns nil when nothing is selected.
func (s *ChatStore) ActiveChatroom() *models.Chatroom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.ActiveChatroomID == nil {
		return nil
	}
	if idx := s.indexOf(*s.state.ActiveChatroomID); idx >= 0 {
		return s.state.Chatrooms[idx].Clone()
	}
	return nil
}

func (s *ChatStore) Chatroom(id string) (*models.Chatroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, ErrChatroomNotFound
	}
	return s.state.Chatrooms[idx].Clone(), nil
}

func (s *ChatStore) Chatrooms() []*models.Chatroom {
	return s.Search("")
}

// Search filters chatrooms whose title contains query, ignoring case.
// An empty query matches everything.
func (s *ChatStore) Search(query string) []*models.Chatroom {
	q := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Chatroom, 0, len(s.state.Chatrooms))
	for _, room := range s.state.Chatrooms {
		if strings.Contains(strings.ToLower(room.Title), q) {
			out = append(out, room.Clone())
		}
	}
	return out
}
