package services

import (
	"context"
	"errors"
	"time"

	"wealthwise/internal/amqp"
	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	"wealthwise/internal/ledger"
	"wealthwise/internal/lock"
	wlog "wealthwise/internal/log"
	"wealthwise/internal/metrics"
)

// ReconcileLockNamespace scopes the per-user lock taken by reconciliation.
const ReconcileLockNamespace = "ledger-reconcile"

// EntryEventPublisher receives entry events after commit.
type EntryEventPublisher interface {
	PublishEntryCreated(ctx context.Context, msg *amqp.EntryCreatedMessage) error
}

// SkippedStep records a step that could not run because its system
// category is missing.
type SkippedStep struct {
	Step   string
	Reason string
}

type Result struct {
	UserID   int64
	Cycle    cycle.Key
	Inserted []core.Entry
	Skipped  []SkippedStep

	// steps[i] is the step that wrote Inserted[i]
	steps []string
}

// Reconciler materializes the recurring entries of a user's cycle exactly
// once, however often and concurrently it is called.
type Reconciler struct {
	store     ledger.Transactor
	location  *time.Location
	publisher EntryEventPublisher
}

type ReconcilerOption func(*Reconciler)

// WithLocation sets the zone that decides "today" and the current cycle.
func WithLocation(loc *time.Location) ReconcilerOption {
	return func(r *Reconciler) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithPublisher announces inserted entries. Publishing is best effort.
func WithPublisher(p EntryEventPublisher) ReconcilerOption {
	return func(r *Reconciler) {
		r.publisher = p
	}
}

func NewReconciler(store ledger.Transactor, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{store: store, location: time.UTC}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile ensures the recurring entries of target exist for userID. A zero
// target means the cycle containing now. Errors are core.ErrUserNotFound or
// a *StorageError; nothing is written in either case.
func (r *Reconciler) Reconcile(ctx context.Context, userID int64, target cycle.Key, now time.Time) (Result, error) {
	start := time.Now()
	now = now.In(r.location)
	if target.IsZero() {
		target = cycle.Of(now)
	}
	logger := wlog.FromContext(ctx).WithComponent(wlog.ComponentReconcile).
		With(wlog.FieldUserID, userID, wlog.FieldCycle, target.String())

	res, err := r.reconcile(ctx, logger, userID, target, now)
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		metrics.ObserveReconcile("not_found", time.Since(start))
		return Result{UserID: userID, Cycle: target}, err
	case err != nil:
		metrics.ObserveReconcile("error", time.Since(start))
		logger.ErrorContext(ctx, "Reconciliation failed",
			wlog.FieldErrorType, wlog.ErrorTypeDatabase,
			wlog.FieldError, err)
		return Result{UserID: userID, Cycle: target}, err
	}

	metrics.ObserveReconcile("ok", time.Since(start))
	for _, step := range res.steps {
		metrics.EntriesInserted.WithLabelValues(step).Inc()
	}
	r.publish(ctx, logger, res.Inserted)

	logger.DebugContext(ctx, "Reconciliation finished",
		"inserted", len(res.Inserted),
		"skipped", len(res.Skipped))
	return res, nil
}

func (r *Reconciler) reconcile(ctx context.Context, logger *wlog.Logger, userID int64, target cycle.Key, now time.Time) (Result, error) {
	res := Result{UserID: userID, Cycle: target}

	err := lock.WithUserLock(ctx, r.store, userID, ReconcileLockNamespace, func(ctx context.Context, tx ledger.Tx) error {
		profile, err := tx.GetUserProfile(ctx, userID)
		if errors.Is(err, core.ErrUserNotFound) {
			return err
		}
		if err != nil {
			return &StorageError{Op: "load profile", Err: err}
		}
		catalog, err := tx.SystemCategories(ctx)
		if err != nil {
			return &StorageError{Op: "load system categories", Err: err}
		}

		facts := newCycleFacts(profile, target, now)
		for _, step := range reconcileSteps {
			plans, err := step.Plan(ctx, tx, facts)
			if err != nil {
				return &StorageError{Op: step.Name(), Err: err}
			}
			for _, p := range plans {
				if err := r.ensure(ctx, logger, tx, catalog, userID, p, &res); err != nil {
					return err
				}
			}
		}
		return nil
	})

	var storageErr *StorageError
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, core.ErrUserNotFound), errors.As(err, &storageErr):
		return res, err
	default:
		// Lock, begin or commit failures
		return res, &StorageError{Op: "transaction", Err: err}
	}
}

// ensure inserts p unless an entry with the same fingerprint exists.
func (r *Reconciler) ensure(ctx context.Context, logger *wlog.Logger, tx ledger.Tx, catalog core.SystemCatalog, userID int64, p plannedEntry, res *Result) error {
	cat, ok := catalog.Lookup(p.category.Name, p.category.Kind)
	if !ok {
		cfgErr := &ConfigurationError{Step: p.step, Category: p.category}
		res.Skipped = append(res.Skipped, SkippedStep{Step: p.step, Reason: cfgErr.Error()})
		metrics.StepsSkipped.WithLabelValues(p.step, wlog.ErrorTypeConfiguration).Inc()
		logger.WarnContext(ctx, "Skipping reconciliation step",
			wlog.FieldStep, p.step,
			wlog.FieldErrorType, wlog.ErrorTypeConfiguration,
			wlog.FieldError, cfgErr)
		return nil
	}

	found, err := tx.FindEntry(ctx, p.fingerprint(userID, cat))
	if err != nil {
		return &StorageError{Op: p.step + " lookup", Err: err}
	}
	if found {
		return nil
	}

	entry, err := tx.InsertEntry(ctx, core.Entry{
		UserID:       userID,
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Description:  p.description,
		Amount:       p.amount,
		Date:         p.date,
		Kind:         cat.Kind,
	})
	if err != nil {
		return &StorageError{Op: p.step + " insert", Err: err}
	}
	entry.CategoryName = cat.Name
	res.Inserted = append(res.Inserted, entry)
	res.steps = append(res.steps, p.step)

	logger.InfoContext(ctx, "Inserted reconciliation entry", wlog.NewFields().
		With(wlog.FieldStep, p.step).
		WithEntry(entry.ID, cat.Name, string(cat.Kind), entry.Date.String(), entry.Amount.Cents).
		Args()...)
	return nil
}

func (r *Reconciler) publish(ctx context.Context, logger *wlog.Logger, entries []core.Entry) {
	if r.publisher == nil {
		return
	}
	for _, e := range entries {
		if err := r.publisher.PublishEntryCreated(ctx, entryCreatedMessage(e, amqp.SourceReconcile)); err != nil {
			logger.WarnContext(ctx, "Failed to publish entry event",
				wlog.FieldEntryID, e.ID,
				wlog.FieldErrorType, wlog.ErrorTypeNetwork,
				wlog.FieldError, err)
		}
	}
}

func entryCreatedMessage(e core.Entry, source string) *amqp.EntryCreatedMessage {
	return &amqp.EntryCreatedMessage{
		EntryID:     e.ID,
		UserID:      e.UserID,
		CategoryID:  e.CategoryID,
		Kind:        string(e.Kind),
		AmountCents: e.Amount.Cents,
		Date:        e.Date.String(),
		Source:      source,
		Timestamp:   time.Now().UTC(),
	}
}
