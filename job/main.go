package main

import (
	"context"
	"engage/config"
	"engage/job/persist_tracking_events"
	"engage/job/prune_tracking_events"
	"engage/pkg/logutil"
	"engage/pkg/service"
	"engage/repo"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	opt := config.NewOptions()
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		opt.LogLevel = logLevel
	}
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		opt.ConfigPath = configPath
	}

	ctx := logutil.InitZeroLog(context.Background(), opt.LogLevel)

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go <job_name>")
		os.Exit(1)
	}

	cfg := config.NewConfig()
	if err := cfg.Load(ctx, opt.ConfigPath); err != nil {
		log.Ctx(ctx).Error().Msgf("load config failed: %v", err)
		os.Exit(1)
	}

	// base repo
	baseRepo, err := repo.NewBaseRepo(ctx, cfg.MetadataDB)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("init base repo failed, err: %v", err)
		os.Exit(1)
	}

	// event repo
	eventRepo := repo.NewEventRepo(ctx, baseRepo)

	jobs := map[string]service.Job{
		"persist-tracking-events": persist_tracking_events.New(cfg.EventQueue, eventRepo),
		"prune-tracking-events":   prune_tracking_events.New(cfg.Retention, eventRepo),
	}

	jobName := os.Args[1]
	job, exists := jobs[jobName]
	if !exists {
		log.Ctx(ctx).Error().Msgf("job %s not found", jobName)
		os.Exit(1)
	}

	ctx = logutil.WithLogID(ctx, jobName)

	code := run(ctx, job)

	if err := eventRepo.Close(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("close event repo failed, err: %v", err)
	}

	os.Exit(code)
}

func run(ctx context.Context, job service.Job) int {
	if err := job.Init(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("init job err: %v", err)
		return 1
	}

	if err := job.Run(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("run job err: %v", err)
		_ = job.CleanUp(ctx)
		return 1
	}

	if err := job.CleanUp(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("cleanup job err: %v", err)
		return 1
	}

	log.Ctx(ctx).Info().Msg("job executed successfully")
	return 0
}
