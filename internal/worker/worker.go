// internal/worker/worker.go
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"shopsync/internal/compliance"
	"shopsync/internal/syncer"
	"shopsync/internal/webhooks"
	"shopsync/pkg/queue"
)

// Handlers binds queue task types to the services that execute them.
type Handlers struct {
	Engine     *syncer.Engine
	Processor  *webhooks.Processor
	Compliance *compliance.Service
	Log        *zap.SugaredLogger
}

// Register attaches every task type to mux. Permanent failures return
// SkipRetry so the queue archives them instead of burning retries.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TypeResourceSync, h.handleResourceSync)
	mux.HandleFunc(queue.TypeWebhookProcess, h.handleWebhookProcess)
	mux.HandleFunc(queue.TypeDataExport, h.handleDataExport)
}

func (h *Handlers) handleResourceSync(ctx context.Context, t *asynq.Task) error {
	var p queue.ResourceSyncPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := h.Engine.SyncResource(ctx, p.Shop, p.Resource)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syncer.ErrSyncInFlight):
		// A redelivered task raced the original; the original finishes the job.
		h.Log.Infow("duplicate sync task dropped", "shop", p.Shop, "resource", p.Resource)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case errors.Is(err, syncer.ErrUnknownResource),
		errors.Is(err, syncer.ErrShopNotFound),
		errors.Is(err, syncer.ErrSyncFailed):
		// Failed runs are re-triggered deliberately, not replayed blindly.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		return err
	}
}

func (h *Handlers) handleWebhookProcess(ctx context.Context, t *asynq.Task) error {
	var p queue.WebhookProcessPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	err := h.Processor.Process(ctx, p)
	if errors.Is(err, webhooks.ErrBadPayload) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func (h *Handlers) handleDataExport(ctx context.Context, t *asynq.Task) error {
	var p queue.DataExportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	err := h.Compliance.BuildExport(ctx, p.Shop, p.RequestID)
	if errors.Is(err, compliance.ErrExportUnbuildable) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}
