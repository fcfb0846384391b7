package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wealthwise/internal/amqp"
	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	wlog "wealthwise/internal/log"
	"wealthwise/internal/services"
)

const reconcileQueue = "reconcile"

// Reconciler is the engine entry point the worker drives.
type Reconciler interface {
	Reconcile(ctx context.Context, userID int64, target cycle.Key, now time.Time) (services.Result, error)
}

// ReconcileWorker runs queued reconciliation requests.
type ReconcileWorker struct {
	reconciler Reconciler
	now        func() time.Time
}

func NewReconcileWorker(reconciler Reconciler) *ReconcileWorker {
	return &ReconcileWorker{reconciler: reconciler, now: time.Now}
}

// HandleReconcileRequest reconciles the requested user. Malformed requests
// and unknown users are dropped; storage failures are returned so the
// delivery is requeued.
func (w *ReconcileWorker) HandleReconcileRequest(ctx context.Context, msg *amqp.ReconcileRequestMessage) error {
	return observe(reconcileQueue, w.handle(ctx, msg))
}

func (w *ReconcileWorker) handle(ctx context.Context, msg *amqp.ReconcileRequestMessage) error {
	logger := wlog.FromContext(ctx).WithComponent(wlog.ComponentWorker)

	if msg == nil || msg.UserID <= 0 {
		return fmt.Errorf("%w: reconcile request without user id", amqp.ErrDrop)
	}

	var target cycle.Key
	if msg.Cycle != "" {
		k, err := cycle.Parse(msg.Cycle)
		if err != nil {
			return fmt.Errorf("%w: %v", amqp.ErrDrop, err)
		}
		target = k
	}

	logger.InfoContext(ctx, "Processing reconcile request",
		wlog.FieldUserID, msg.UserID,
		wlog.FieldCycle, msg.Cycle,
		"requested_at", msg.RequestedAt)

	res, err := w.reconciler.Reconcile(ctx, msg.UserID, target, w.now())
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return fmt.Errorf("%w: user %d: %v", amqp.ErrDrop, msg.UserID, err)
		}
		return fmt.Errorf("reconcile user %d: %w", msg.UserID, err)
	}

	logger.InfoContext(ctx, "Reconcile request completed",
		wlog.FieldUserID, msg.UserID,
		wlog.FieldCycle, res.Cycle.String(),
		"inserted", len(res.Inserted),
		"skipped", len(res.Skipped))
	return nil
}
