// pkg/queue/inline.go
package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Inline runs tasks in-process instead of through Redis. Dev fallback for
// bring-up without a broker; the handler fields are wired by main to the same
// functions the worker registers. Nil handlers drop the task with a warning.
type Inline struct {
	Log     *zap.SugaredLogger
	Timeout time.Duration

	SyncFn    func(ctx context.Context, p ResourceSyncPayload) error
	WebhookFn func(ctx context.Context, p WebhookProcessPayload) error
	ExportFn  func(ctx context.Context, p DataExportPayload) error

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func (q *Inline) EnqueueResourceSync(ctx context.Context, shop, resource, trigger string) error {
	if q.SyncFn == nil {
		q.Log.Warnw("no inline sync handler", "shop", shop, "resource", resource)
		return nil
	}
	id := SyncTaskID(shop, resource)
	q.mu.Lock()
	if q.inFlight == nil {
		q.inFlight = map[string]struct{}{}
	}
	if _, busy := q.inFlight[id]; busy {
		q.mu.Unlock()
		return ErrDuplicate
	}
	q.inFlight[id] = struct{}{}
	q.mu.Unlock()

	go func() {
		defer func() {
			q.mu.Lock()
			delete(q.inFlight, id)
			q.mu.Unlock()
		}()
		tctx, cancel := context.WithTimeout(context.Background(), q.timeout())
		defer cancel()
		if err := q.SyncFn(tctx, ResourceSyncPayload{Shop: shop, Resource: resource, Trigger: trigger}); err != nil {
			q.Log.Errorw("inline sync failed", "shop", shop, "resource", resource, "err", err)
		}
	}()
	return nil
}

func (q *Inline) EnqueueWebhookProcess(ctx context.Context, p WebhookProcessPayload) error {
	if q.WebhookFn == nil {
		q.Log.Warnw("no inline webhook handler", "topic", p.Topic)
		return nil
	}
	go func() {
		tctx, cancel := context.WithTimeout(context.Background(), q.timeout())
		defer cancel()
		if err := q.WebhookFn(tctx, p); err != nil {
			q.Log.Errorw("inline webhook processing failed", "shop", p.Shop, "topic", p.Topic, "err", err)
		}
	}()
	return nil
}

func (q *Inline) EnqueueDataExport(ctx context.Context, shop string, requestID int64) error {
	if q.ExportFn == nil {
		q.Log.Warnw("no inline export handler", "shop", shop)
		return nil
	}
	go func() {
		tctx, cancel := context.WithTimeout(context.Background(), q.timeout())
		defer cancel()
		if err := q.ExportFn(tctx, DataExportPayload{Shop: shop, RequestID: requestID}); err != nil {
			q.Log.Errorw("inline export failed", "shop", shop, "request_id", requestID, "err", err)
		}
	}()
	return nil
}

func (q *Inline) timeout() time.Duration {
	if q.Timeout > 0 {
		return q.Timeout
	}
	return 30 * time.Minute
}
