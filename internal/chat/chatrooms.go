package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/RichardoC/aether-chat/internal/metrics"
	"github.com/RichardoC/aether-chat/internal/models"
)

func (s *Service) CreateChatroom(ctx context.Context, userID, title string) (*models.Chatroom, error) {
	us, err := s.registry.For(ctx, userID)
	if err != nil {
		return nil, err
	}
	room, err := us.Chat.CreateChatroom(ctx, title)
	if err != nil {
		return nil, err
	}
	metrics.ChatroomsCreated.Inc()
	s.logger.Info("chatroom created", zap.String("user_id", userID), zap.String("chatroom_id", room.ID))
	return room, nil
}

// DeleteChatroom returns the deleted chatroom's title for the confirmation
// notice.
func (s *Service) DeleteChatroom(ctx context.Context, userID, chatroomID string) (string, error) {
	us, err := s.registry.For(ctx, userID)
	if err != nil {
		return "", err
	}
	room, err := us.Chat.Chatroom(chatroomID)
	if err != nil {
		return "", err
	}
	if err := us.Chat.DeleteChatroom(ctx, chatroomID); err != nil {
		return "", err
	}
	metrics.ChatroomsDeleted.Inc()
	s.logger.Info("chatroom deleted", zap.String("user_id", userID), zap.String("chatroom_id", chatroomID))
	return room.Title, nil
}
