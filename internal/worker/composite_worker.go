package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/backdrop/internal/domain"
	"github.com/yokitheyo/backdrop/internal/dto"
)

// CompositeWorker runs queued composite jobs.
type CompositeWorker struct {
	processor  domain.JobProcessor
	jobTimeout time.Duration
}

func NewCompositeWorker(processor domain.JobProcessor, jobTimeout time.Duration) *CompositeWorker {
	return &CompositeWorker{
		processor:  processor,
		jobTimeout: jobTimeout,
	}
}

// HandleCompositeTask is the kafka.MessageHandler of the worker process.
// Tasks with a malformed id are dropped without error.
func (w *CompositeWorker) HandleCompositeTask(ctx context.Context, task *dto.CompositeTask) error {
	if _, err := uuid.Parse(task.CompositeID); err != nil {
		zlog.Logger.Error().
			Str("composite_id", task.CompositeID).
			Msg("invalid composite id in task")
		return nil
	}

	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	zlog.Logger.Info().
		Str("composite_id", task.CompositeID).
		Msg("starting composite task")

	if err := w.processor.ProcessJob(ctx, task.CompositeID); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("composite_id", task.CompositeID).
			Msg("failed to process composite job")
		return fmt.Errorf("process composite %s: %w", task.CompositeID, err)
	}

	zlog.Logger.Info().
		Str("composite_id", task.CompositeID).
		Dur("duration", time.Since(start)).
		Msg("composite task finished")

	return nil
}
