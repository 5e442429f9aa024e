package persist_tracking_events

import (
	"context"
	"engage/config"
	"engage/entity"
	"engage/pkg/metric"
	"engage/pkg/mq"
	"engage/pkg/service"
	"engage/repo"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

var ErrMalformedEvent = errors.New("malformed tracking event")

// PersistTrackingEvents drains the tracking event topic into the event store.
type PersistTrackingEvents struct {
	cfg         config.EventQueue
	eventWriter repo.EventWriter
	consumer    *mq.Consumer
}

func New(cfg config.EventQueue, eventWriter repo.EventWriter) service.Job {
	return &PersistTrackingEvents{
		cfg:         cfg,
		eventWriter: eventWriter,
	}
}

func (j *PersistTrackingEvents) Init(_ context.Context) error {
	mq.RegisterHandler(mq.PayloadTrackingEvent, j.HandleTrackingEvent)
	return nil
}

// Run consumes until SIGINT, SIGTERM or ctx is done.
func (j *PersistTrackingEvents) Run(ctx context.Context) error {
	consumer, err := mq.NewConsumer(ctx, j.cfg.Consumer)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("init consumer failed: %v", err)
		return err
	}
	j.consumer = consumer

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Ctx(ctx).Info().Msgf("received signal %v, stop consuming", sig)
	case <-ctx.Done():
	}

	return nil
}

func (j *PersistTrackingEvents) CleanUp(ctx context.Context) error {
	if j.consumer == nil {
		return nil
	}

	if err := j.consumer.Close(); err != nil {
		log.Ctx(ctx).Error().Msgf("close consumer failed: %v", err)
		return err
	}

	return nil
}

// HandleTrackingEvent appends one queued event. Malformed events are never retried.
func (j *PersistTrackingEvents) HandleTrackingEvent(ctx context.Context, msg *mq.Message) error {
	evt := new(entity.TrackingEvent)
	if err := msg.ParseBody(evt); err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrMalformedEvent, err))
	}

	if !entity.IsValidID(evt.GetID()) || evt.GetTs() == 0 || evt.Type == "" {
		return backoff.Permanent(fmt.Errorf("%w: id: %q, type: %q", ErrMalformedEvent, evt.GetID(), evt.Type))
	}

	if err := j.eventWriter.Append(ctx, evt); err != nil {
		return err
	}

	metric.TrackingEventsPersisted.Inc()

	return nil
}
