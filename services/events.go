package services

import (
	"context"

	"mfanalytics/types"

	"go.uber.org/zap"
)

// EventPublisher is satisfied by the kafka and rabbitmq clients.
type EventPublisher interface {
	SendMessage(ctx context.Context, event types.ScreeningEvent) error
}

type nopPublisher struct{}

func (nopPublisher) SendMessage(_ context.Context, event types.ScreeningEvent) error {
	zap.L().Debug("Event publishing disabled", zap.String("eventId", event.EventID))
	return nil
}

func NewNopPublisher() EventPublisher { return nopPublisher{} }
