package notify

import (
	"context"
	"fmt"

	"github.com/harvestlink/bid-engine/pkg/types"
	"go.uber.org/zap"
)

// Recorder persists notifications.
type Recorder interface {
	SaveNotification(ctx context.Context, n *types.Notification) error
}

// StoreSink persists each notification so it can be listed later.
type StoreSink struct {
	recorder Recorder
}

// NewStoreSink creates a sink that writes to recorder.
func NewStoreSink(recorder Recorder) *StoreSink {
	return &StoreSink{recorder: recorder}
}

// Notify saves the notification.
func (s *StoreSink) Notify(ctx context.Context, n types.Notification) error {
	err := s.recorder.SaveNotification(ctx, &n)
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

// LogSink writes each notification to the log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-only sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify logs the notification.
func (s *LogSink) Notify(_ context.Context, n types.Notification) error {
	s.logger.Info("notification",
		zap.String("notification-id", n.ID),
		zap.String("user-id", n.UserID),
		zap.String("kind", string(n.Kind)),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
		zap.String("reference-id", n.ReferenceID))
	return nil
}
