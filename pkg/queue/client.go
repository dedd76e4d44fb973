// pkg/queue/client.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"shopsync/pkg/config"
)

// ErrDuplicate reports that an equivalent task is already queued or running.
var ErrDuplicate = errors.New("queue: duplicate task")

// Enqueuer is what the HTTP layer needs from the broker. Tests swap in fakes.
type Enqueuer interface {
	EnqueueResourceSync(ctx context.Context, shop, resource, trigger string) error
	EnqueueWebhookProcess(ctx context.Context, p WebhookProcessPayload) error
	EnqueueDataExport(ctx context.Context, shop string, requestID int64) error
}

// Client enqueues tasks onto Redis via asynq.
type Client struct {
	inner       *asynq.Client
	syncTimeout time.Duration
	maxRetry    int
}

func NewClient(cfg config.Config) (*Client, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	return &Client{
		inner:       asynq.NewClient(opt),
		syncTimeout: cfg.TaskTimeout,
		maxRetry:    cfg.MaxAttempts,
	}, nil
}

func (c *Client) Close() error { return c.inner.Close() }

// EnqueueResourceSync queues a full pull of one resource for one shop. The
// task id makes concurrent requests for the same (shop, resource) collapse:
// the second enqueue gets ErrDuplicate while the first is still in flight.
// MaxRetry 1 so a task orphaned by a worker crash is delivered once more;
// business failures return SkipRetry from the handler instead.
func (c *Client) EnqueueResourceSync(ctx context.Context, shop, resource, trigger string) error {
	b, err := json.Marshal(ResourceSyncPayload{Shop: shop, Resource: resource, Trigger: trigger})
	if err != nil {
		return err
	}
	_, err = c.inner.EnqueueContext(ctx, asynq.NewTask(TypeResourceSync, b),
		asynq.Queue(QueueSync),
		asynq.TaskID(SyncTaskID(shop, resource)),
		asynq.MaxRetry(1),
		asynq.Timeout(c.syncTimeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return ErrDuplicate
	}
	return err
}

// EnqueueWebhookProcess hands a verified delivery to the worker. Retried on
// failure; the receipt table keeps redeliveries idempotent.
func (c *Client) EnqueueWebhookProcess(ctx context.Context, p WebhookProcessPayload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = c.inner.EnqueueContext(ctx, asynq.NewTask(TypeWebhookProcess, b),
		asynq.Queue(QueueEvents),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(30*time.Second),
	)
	return err
}

// EnqueueDataExport schedules assembly of a customer data request export.
func (c *Client) EnqueueDataExport(ctx context.Context, shop string, requestID int64) error {
	b, err := json.Marshal(DataExportPayload{Shop: shop, RequestID: requestID})
	if err != nil {
		return err
	}
	_, err = c.inner.EnqueueContext(ctx, asynq.NewTask(TypeDataExport, b),
		asynq.Queue(QueueEvents),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
	)
	return err
}
