package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"wealthwise/internal/amqp"
	"wealthwise/internal/cycle"
	wlog "wealthwise/internal/log"
)

// UserLister enumerates the users a sweep covers.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// ReconcileRequestPublisher queues reconciliations for a worker.
type ReconcileRequestPublisher interface {
	PublishReconcileRequest(ctx context.Context, msg *amqp.ReconcileRequestMessage) error
}

// SweepReport counts the outcome of one sweep. A failed user does not stop
// the others.
type SweepReport struct {
	Users    int
	Inserted int
	Failed   []int64
}

// Sweeper reconciles every user.
type Sweeper struct {
	users       UserLister
	reconciler  *Reconciler
	concurrency int
}

func NewSweeper(users UserLister, reconciler *Reconciler, concurrency int) *Sweeper {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Sweeper{users: users, reconciler: reconciler, concurrency: concurrency}
}

// Run reconciles target for every user, at most concurrency at a time. It
// only fails when the user list cannot be read or ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, target cycle.Key, now time.Time) (SweepReport, error) {
	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list users: %w", err)
	}
	logger := wlog.FromContext(ctx).WithComponent(wlog.ComponentReconcile)

	var (
		mu     sync.Mutex
		report = SweepReport{Users: len(ids)}
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res, err := s.reconciler.Reconcile(gCtx, id, target, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, id)
				return nil
			}
			report.Inserted += len(res.Inserted)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	logger.InfoContext(ctx, "Sweep finished",
		wlog.FieldOperation, wlog.OpSweep,
		"users", report.Users,
		"inserted", report.Inserted,
		"failed", len(report.Failed))
	return report, nil
}

// Enqueue publishes one reconcile request per user and returns how many were
// queued. A zero target lets the worker pick the cycle current when it runs.
func Enqueue(ctx context.Context, users UserLister, pub ReconcileRequestPublisher, target cycle.Key) (int, error) {
	ids, err := users.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	var c string
	if !target.IsZero() {
		c = target.String()
	}
	for i, id := range ids {
		if err := pub.PublishReconcileRequest(ctx, amqp.NewReconcileRequestMessage(id, c)); err != nil {
			return i, fmt.Errorf("enqueue user %d: %w", id, err)
		}
	}

	wlog.FromContext(ctx).WithComponent(wlog.ComponentReconcile).InfoContext(ctx, "Reconcile requests queued",
		wlog.FieldOperation, wlog.OpSweep,
		"users", len(ids))
	return len(ids), nil
}
