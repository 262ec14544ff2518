package lark

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/fraudguard/internal/application/port"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

const receiveIDTypeChat = "chat_id"

// MessageCreator is the part of the Lark IM API the messenger uses
type MessageCreator interface {
	Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error)
}

// Messenger implements port.MessageSender by posting text messages to one Lark group chat
type Messenger struct {
	messages MessageCreator
	chatID   string
	logger   *zap.Logger
}

// NewMessenger creates a messenger on top of a Lark SDK client
func NewMessenger(client *lark.Client, chatID string, logger *zap.Logger) *Messenger {
	return NewMessengerWithCreator(client.Im.Message, chatID, logger)
}

// NewMessengerWithCreator creates a messenger on top of any MessageCreator
func NewMessengerWithCreator(messages MessageCreator, chatID string, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: messages,
		chatID:   chatID,
		logger:   logger,
	}
}

// SendText sends a plain text message to the configured chat
func (m *Messenger) SendText(ctx context.Context, content string) error {
	if m.chatID == "" {
		return fmt.Errorf("chat ID cannot be empty")
	}
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}

	textContent, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeChat).
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(m.chatID).
			MsgType("text").
			Content(string(textContent)).
			Build()).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("chat_id", m.chatID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("chat_id", m.chatID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Debug("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("chat_id", m.chatID))

	return nil
}

var _ port.MessageSender = (*Messenger)(nil)
