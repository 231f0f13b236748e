package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RichardoC/aether-chat/internal/db"
	"github.com/RichardoC/aether-chat/internal/llm"
	"github.com/RichardoC/aether-chat/internal/models"
	"github.com/RichardoC/aether-chat/internal/store"
)

type stubResponder struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubResponder) Reply(_ context.Context, prompt string, _ []models.Message) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func newTestService(t *testing.T, responder llm.Responder) (*Service, *store.Registry) {
	t.Helper()
	reg := store.NewRegistry(db.NewMemoryStore())
	svc := NewService(reg, responder, Config{}, zap.NewNop())
	t.Cleanup(svc.Close)
	return svc, reg
}

func createRoom(t *testing.T, svc *Service, userID string) *models.Chatroom {
	t.Helper()
	room, err := svc.CreateChatroom(context.Background(), userID, "test room")
	require.NoError(t, err)
	return room
}

func messages(t *testing.T, reg *store.Registry, userID, chatroomID string) []models.Message {
	t.Helper()
	us, err := reg.For(context.Background(), userID)
	require.NoError(t, err)
	room, err := us.Chat.Chatroom(chatroomID)
	require.NoError(t, err)
	return room.Messages
}

func TestSendMessageAppendsUserThenAssistant(t *testing.T) {
	svc, reg := newTestService(t, llm.NewCanned())
	room := createRoom(t, svc, "u1")

	msg, err := svc.SendMessage(context.Background(), SendMessageInput{
		UserID: "u1", ChatroomID: room.ID, Content: "Any advice for me?",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, msg.Role)

	svc.Wait()

	msgs := messages(t, reg, "u1", room.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Any advice for me?", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.True(t, strings.HasPrefix(msgs[1].Content, "Here's my advice:"))

	us, err := reg.For(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, us.Chat.IsTyping())
}

func TestTypingIsSetWhileThinking(t *testing.T) {
	svc, reg := newTestService(t, llm.NewCanned())
	release := make(chan struct{})
	svc.think = func() time.Duration {
		<-release
		return 0
	}
	room := createRoom(t, svc, "u1")

	_, err := svc.SendMessage(context.Background(), SendMessageInput{UserID: "u1", ChatroomID: room.ID, Content: "hi"})
	require.NoError(t, err)

	us, err := reg.For(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, us.Chat.IsTyping())

	close(release)
	svc.Wait()
	assert.False(t, us.Chat.IsTyping())
}

func TestSendMessageValidation(t *testing.T) {
	svc, _ := newTestService(t, llm.NewCanned())
	room := createRoom(t, svc, "u1")
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, SendMessageInput{UserID: "u1", ChatroomID: room.ID, Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.SendMessage(ctx, SendMessageInput{UserID: "u1", ChatroomID: room.ID, Image: "http://example.com/a.png"})
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = svc.SendMessage(ctx, SendMessageInput{UserID: "u1", ChatroomID: "missing", Content: "hi"})
	assert.ErrorIs(t, err, store.ErrChatroomNotFound)
}

func TestImageOnlyMessageGetsPlaceholder(t *testing.T) {
	responder := &stubResponder{reply: "nice picture"}
	svc, reg := newTestService(t, responder)
	room := createRoom(t, svc, "u1")

	msg, err := svc.SendMessage(context.Background(), SendMessageInput{
		UserID: "u1", ChatroomID: room.ID, Image: "data:image/png;base64,AAAA",
	})
	require.NoError(t, err)
	assert.Equal(t, "📷 Image", msg.Content)
	assert.Equal(t, "data:image/png;base64,AAAA", msg.Image)

	svc.Wait()
	assert.Equal(t, []string{""}, responder.prompts)
	assert.Len(t, messages(t, reg, "u1", room.ID), 2)
}

func TestReplyDroppedWhenChatroomDeleted(t *testing.T) {
	svc, reg := newTestService(t, llm.NewCanned())
	release := make(chan struct{})
	svc.think = func() time.Duration {
		<-release
		return 0
	}
	room := createRoom(t, svc, "u1")
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, SendMessageInput{UserID: "u1", ChatroomID: room.ID, Content: "hi"})
	require.NoError(t, err)

	title, err := svc.DeleteChatroom(ctx, "u1", room.ID)
	require.NoError(t, err)
	assert.Equal(t, "test room", title)

	close(release)
	svc.Wait()

	us, err := reg.For(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, us.Chat.Chatrooms())
	assert.False(t, us.Chat.IsTyping())
}

func TestResponderErrorLeavesOnlyUserMessage(t *testing.T) {
	svc, reg := newTestService(t, &stubResponder{err: errors.New("model down")})
	room := createRoom(t, svc, "u1")

	_, err := svc.SendMessage(context.Background(), SendMessageInput{UserID: "u1", ChatroomID: room.ID, Content: "hi"})
	require.NoError(t, err)
	svc.Wait()

	assert.Len(t, messages(t, reg, "u1", room.ID), 1)
}

func TestCloseAbandonsThinkingReplies(t *testing.T) {
	reg := store.NewRegistry(db.NewMemoryStore())
	svc := NewService(reg, llm.NewCanned(), Config{MinThink: time.Hour, MaxThink: time.Hour}, zap.NewNop())
	room, err := svc.CreateChatroom(context.Background(), "u1", "slow")
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), SendMessageInput{UserID: "u1", ChatroomID: room.ID, Content: "hi"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		svc.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.Len(t, messages(t, reg, "u1", room.ID), 1)
}

func TestSuggestions(t *testing.T) {
	got := Suggestions()
	assert.Equal(t, []string{"Any advice for me?", "Some youtube video idea", "Life lessons from kratos"}, got)

	got[0] = "changed"
	assert.Equal(t, "Any advice for me?", Suggestions()[0])
}

func TestSendSuggestion(t *testing.T) {
	svc, reg := newTestService(t, llm.NewCanned())
	room := createRoom(t, svc, "u1")

	_, err := svc.SendSuggestion(context.Background(), "u1", room.ID, "Life lessons from kratos")
	require.NoError(t, err)
	svc.Wait()

	msgs := messages(t, reg, "u1", room.ID)
	require.Len(t, msgs, 2)
	assert.True(t, strings.HasPrefix(msgs[1].Content, "Kratos teaches us"))
}

func TestRandomThinkStaysInRange(t *testing.T) {
	svc := NewService(nil, nil, Config{MinThink: 2 * time.Second, MaxThink: 4 * time.Second}, zap.NewNop())
	defer svc.Close()

	for i := 0; i < 100; i++ {
		d := svc.randomThink()
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 4*time.Second)
	}
}
