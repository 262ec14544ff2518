package service

import (
	"context"
	"fmt"

	"github.com/garyjia/fraudguard/internal/application/dispatcher"
	"github.com/garyjia/fraudguard/internal/application/port"
	"github.com/garyjia/fraudguard/internal/domain/event"
)

// Notification is the user-facing form of an upload event
type Notification struct {
	Title       string
	Description string
	Destructive bool
}

// Text renders the notification as a single chat line
func (n Notification) Text() string {
	return n.Title + ": " + n.Description
}

// NotificationService turns upload events into notifications: always logged, and sent to
// the review chat when a sender is configured
type NotificationService struct {
	sender port.MessageSender
	logger Logger
}

// NewNotificationService creates a new NotificationService. sender may be nil.
func NewNotificationService(sender port.MessageSender, logger Logger) *NotificationService {
	return &NotificationService{
		sender: sender,
		logger: logger,
	}
}

// Register subscribes the service to every upload event type as one async subscriber.
// Notifications are delivered off the upload path, in event order.
func (s *NotificationService) Register(d dispatcher.Dispatcher) {
	d.SubscribeAsync("notification", s.Handle, event.AllTypes()...)
}

// Handle logs the notification for evt and forwards it to the chat.
// Send failures are logged and swallowed so they never affect the batch.
func (s *NotificationService) Handle(ctx context.Context, evt *event.Event) error {
	n, ok := NotificationFor(evt)
	if !ok {
		return nil
	}

	keysAndValues := []interface{}{
		"title", n.Title,
		"description", n.Description,
		"batch_id", evt.BatchID,
	}
	if evt.FileID != "" {
		keysAndValues = append(keysAndValues, "file_id", evt.FileID)
	}
	if n.Destructive {
		s.logger.Error("Upload notification", keysAndValues...)
	} else {
		s.logger.Info("Upload notification", keysAndValues...)
	}

	if s.sender == nil {
		return nil
	}
	if err := s.sender.SendText(ctx, n.Text()); err != nil {
		s.logger.Error("Failed to send chat notification",
			"error", err,
			"batch_id", evt.BatchID,
			"event_type", evt.Type,
		)
	}
	return nil
}

// NotificationFor builds the notification for an upload event
func NotificationFor(evt *event.Event) (Notification, bool) {
	name := evt.GetPayloadString(event.KeyFileName)

	switch evt.Type {
	case event.TypeBatchStarted:
		return Notification{
			Title:       "Upload Started",
			Description: fmt.Sprintf("Processing %d file(s) for fraud detection", evt.GetPayloadInt(event.KeyFileCount)),
		}, true
	case event.TypeFileCompleted:
		return Notification{
			Title:       "Processing Complete",
			Description: fmt.Sprintf("%s analyzed - Status: %s", name, evt.GetPayloadString(event.KeyFraudStatus)),
		}, true
	case event.TypeFileFailed:
		return Notification{
			Title:       "Upload Failed",
			Description: fmt.Sprintf("Failed to process %s", name),
			Destructive: true,
		}, true
	case event.TypeBatchFinished:
		return Notification{
			Title: "Upload Finished",
			Description: fmt.Sprintf("%d of %d file(s) analyzed, %d failed",
				evt.GetPayloadInt(event.KeyCompleted),
				evt.GetPayloadInt(event.KeyFileCount),
				evt.GetPayloadInt(event.KeyFailed)),
		}, true
	}
	return Notification{}, false
}
