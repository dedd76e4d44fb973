// pkg/queue/server.go
package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"shopsync/pkg/config"
)

// NewServer builds the asynq consumer for the worker binary. The events queue
// outweighs sync so webhook fan-out is not starved by long collection pulls.
func NewServer(cfg config.Config, log *zap.SugaredLogger) (*asynq.Server, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues: map[string]int{
			QueueEvents: 6,
			QueueSync:   4,
		},
		Logger: log,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			log.Errorw("task failed", "type", task.Type(), "retried", retried, "err", err)
		}),
	})
	return srv, nil
}
