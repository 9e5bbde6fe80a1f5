package scheduler

import (
	"context"
	"fmt"

	"dealroom_backend/internal/followup"
	"dealroom_backend/platform/config"
	"dealroom_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// SweepRunner runs one dispatch sweep. Satisfied by *followup.Sweeper.
type SweepRunner interface {
	RunSweep(ctx context.Context) (followup.SweepStats, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	sweeper SweepRunner
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweeper SweepRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		sweeper: sweeper,
		log:     log,
	}

	mux.HandleFunc(TaskFollowupSweep, w.handleFollowupSweep)

	return w, nil
}

func (w *Worker) handleFollowupSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowupSweepPayload(task)
	if err != nil {
		return err
	}

	stats, err := w.sweeper.RunSweep(ctx)
	if err != nil {
		return err
	}

	w.log.Info("followup sweep completed",
		"triggeredAt", payload.TriggeredAt,
		"processed", stats.Processed,
		"sent", stats.Sent,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
