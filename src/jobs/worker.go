package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Sweeper closes sessions left open past 12 hours.
type Sweeper interface {
	SweepOvertime(ctx context.Context) (int, error)
}

// HandleSweepOvertimeTask runs one sweep.
func HandleSweepOvertimeTask(s Sweeper) asynq.HandlerFunc {
	logger := zap.L().Named("jobs")
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SweepOvertimePayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				logger.Error("payload decode error", zap.String("type", t.Type()), zap.Error(err))
				return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
			}
		}

		closed, err := s.SweepOvertime(ctx)
		if err != nil {
			logger.Error("overtime sweep failed", zap.String("reason", payload.Reason), zap.Int("closed", closed), zap.Error(err))
			return err
		}
		logger.Info("overtime sweep done", zap.String("reason", payload.Reason), zap.Int("closed", closed))
		return nil
	}
}

func NewMux(s Sweeper) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeSweepOvertime, HandleSweepOvertimeTask(s))
	return mux
}

// RunWorker serves the task queue and registers the periodic sweep until
// ctx is done.
func RunWorker(ctx context.Context, redisAddr string, s Sweeper) error {
	opt := asynq.RedisClientOpt{Addr: redisAddr}
	logger := zap.L().Named("jobs")

	srv := asynq.NewServer(opt, asynq.Config{Concurrency: 2})
	if err := srv.Start(NewMux(s)); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	defer srv.Shutdown()

	scheduler := asynq.NewScheduler(opt, nil)
	task, err := NewSweepOvertimeTask("periodic")
	if err != nil {
		return err
	}
	entryID, err := scheduler.Register(SweepSchedule, task)
	if err != nil {
		return fmt.Errorf("register overtime sweep: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start asynq scheduler: %w", err)
	}
	defer scheduler.Shutdown()

	logger.Info("asynq worker started", zap.String("sweep_entry", entryID), zap.String("schedule", SweepSchedule))
	<-ctx.Done()
	return nil
}

// EnqueueSweep schedules an immediate sweep, e.g. right after startup.
func EnqueueSweep(client *asynq.Client, reason string) error {
	task, err := NewSweepOvertimeTask(reason)
	if err != nil {
		return err
	}
	_, err = client.Enqueue(task)
	return err
}
