package chat

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RichardoC/aether-chat/internal/llm"
	"github.com/RichardoC/aether-chat/internal/metrics"
	"github.com/RichardoC/aether-chat/internal/models"
	"github.com/RichardoC/aether-chat/internal/store"
)

var (
	ErrEmptyMessage = errors.New("message content or image is required")
	ErrInvalidImage = errors.New("image must be a data URL")
)

const imagePlaceholder = "📷 Image"

var suggestions = []string{
	"Any advice for me?",
	"Some youtube video idea",
	"Life lessons from kratos",
}

type Config struct {
	MinThink time.Duration
	MaxThink time.Duration
}

type Service struct {
	registry  *store.Registry
	responder llm.Responder
	logger    *zap.Logger
	cfg       Config

	// think picks how long the assistant "thinks" before replying.
	think func() time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

func NewService(registry *store.Registry, responder llm.Responder, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxThink < cfg.MinThink {
		cfg.MaxThink = cfg.MinThink
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		registry:  registry,
		responder: responder,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.think = s.randomThink
	return s
}

func (s *Service) randomThink() time.Duration {
	spread := s.cfg.MaxThink - s.cfg.MinThink
	if spread <= 0 {
		return s.cfg.MinThink
	}
	return s.cfg.MinThink + time.Duration(rand.Int63n(int64(spread)))
}

func Suggestions() []string {
	out := make([]string, len(suggestions))
	copy(out, suggestions)
	return out
}

type SendMessageInput struct {
	UserID     string
	ChatroomID string
	Content    string
	Image      string
}

// SendMessage appends the user's message and schedules the assistant reply
// in the background. The returned message is the user's own.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	content := in.Content
	if strings.TrimSpace(content) == "" && in.Image == "" {
		return nil, ErrEmptyMessage
	}
	if in.Image != "" {
		if !strings.HasPrefix(in.Image, "data:") {
			return nil, ErrInvalidImage
		}
		if strings.TrimSpace(content) == "" {
			content = imagePlaceholder
		}
	}

	us, err := s.registry.For(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	msg, err := us.Chat.AddMessage(ctx, in.ChatroomID, models.MessageDraft{
		Content: content,
		Role:    models.RoleUser,
		Image:   in.Image,
	})
	if err != nil {
		return nil, err
	}
	metrics.Messages.WithLabelValues(string(models.RoleUser)).Inc()

	s.scheduleReply(us.Chat, in.UserID, in.ChatroomID, in.Content)
	return msg, nil
}

// SendSuggestion sends one of the suggestion chips as a user message.
func (s *Service) SendSuggestion(ctx context.Context, userID, chatroomID, suggestion string) (*models.Message, error) {
	return s.SendMessage(ctx, SendMessageInput{UserID: userID, ChatroomID: chatroomID, Content: suggestion})
}

// scheduleReply answers prompt, the text the user typed. Image-only messages
// reply to an empty prompt.
func (s *Service) scheduleReply(chat *store.ChatStore, userID, chatroomID, prompt string) {
	chat.SetTyping(true)
	s.pending.Add(1)
	metrics.PendingReplies.Inc()

	go func() {
		defer s.pending.Done()
		defer metrics.PendingReplies.Dec()
		defer chat.SetTyping(false)

		log := s.logger.With(zap.String("user_id", userID), zap.String("chatroom_id", chatroomID))

		t := time.NewTimer(s.think())
		defer t.Stop()
		select {
		case <-s.ctx.Done():
			log.Debug("reply abandoned on shutdown")
			return
		case <-t.C:
		}

		room, err := chat.Chatroom(chatroomID)
		if err != nil {
			log.Info("chatroom gone before reply", zap.Error(err))
			return
		}

		reply, err := s.responder.Reply(s.ctx, prompt, room.Messages)
		if err != nil {
			log.Error("failed to generate reply", zap.Error(err))
			return
		}

		if _, err := chat.AddMessage(s.ctx, chatroomID, models.MessageDraft{
			Content: reply,
			Role:    models.RoleAssistant,
		}); err != nil {
			log.Warn("failed to append reply", zap.Error(err))
			return
		}
		metrics.Messages.WithLabelValues(string(models.RoleAssistant)).Inc()
	}()
}

// Wait blocks until every scheduled reply has been appended or dropped.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Close abandons replies that are still thinking and waits for the rest.
func (s *Service) Close() {
	s.cancel()
	s.pending.Wait()
}
