package repo

import (
	"context"
	"engage/entity"
	"engage/pkg/mq"
)

type MessageSender interface {
	SendMessage(ctx context.Context, msg *mq.Message) error
}

type queuedEventWriter struct {
	sender MessageSender
}

// NewQueuedEventWriter publishes events for the persist-tracking-events job instead of writing them to the store.
func NewQueuedEventWriter(sender MessageSender) EventWriter {
	return &queuedEventWriter{sender: sender}
}

func (w *queuedEventWriter) Append(ctx context.Context, evt *entity.TrackingEvent) error {
	// keep one session's events on one partition
	key := evt.GetSessionID()
	if key == "" {
		key = evt.GetRef()
	}
	if key == "" {
		key = evt.GetID()
	}

	return w.sender.SendMessage(ctx, &mq.Message{
		Payload: mq.PayloadTrackingEvent,
		Key:     key,
		Body:    evt,
	})
}
