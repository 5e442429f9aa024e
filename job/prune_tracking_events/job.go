package prune_tracking_events

import (
	"context"
	"engage/config"
	"engage/pkg/service"
	"engage/repo"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultEventDays = 400
	defaultBatchSize = 5_000
)

// PruneTrackingEvents deletes tracking events older than the retention window, one batch at a time.
type PruneTrackingEvents struct {
	cfg       config.Retention
	eventRepo repo.EventRepo
	now       func() time.Time
}

func New(cfg config.Retention, eventRepo repo.EventRepo) service.Job {
	return &PruneTrackingEvents{
		cfg:       cfg,
		eventRepo: eventRepo,
		now:       time.Now,
	}
}

func (j *PruneTrackingEvents) Init(_ context.Context) error {
	return nil
}

func (j *PruneTrackingEvents) Run(ctx context.Context) error {
	var (
		batchSize = j.batchSize()
		before    = uint64(j.now().AddDate(0, 0, -j.eventDays()).UnixMilli())
		total     uint64
	)

	log.Ctx(ctx).Info().Msgf("prune tracking events before ts: %d, batch size: %d", before, batchSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deleted, err := j.eventRepo.DeleteBefore(ctx, before, batchSize)
		if err != nil {
			log.Ctx(ctx).Error().Msgf("delete tracking events failed: %v, deleted so far: %d", err, total)
			return err
		}
		total += deleted

		if deleted < uint64(batchSize) {
			break
		}
	}

	log.Ctx(ctx).Info().Msgf("pruned tracking events: %d", total)

	return nil
}

func (j *PruneTrackingEvents) CleanUp(_ context.Context) error {
	return nil
}

func (j *PruneTrackingEvents) eventDays() int {
	if j.cfg.EventDays > 0 {
		return j.cfg.EventDays
	}
	return defaultEventDays
}

func (j *PruneTrackingEvents) batchSize() int {
	if j.cfg.BatchSize > 0 {
		return j.cfg.BatchSize
	}
	return defaultBatchSize
}
