package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wealthwise/internal/amqp"
	"wealthwise/internal/core"
	"wealthwise/internal/ledger"
	wlog "wealthwise/internal/log"
)

// EntryPublisher announces user-driven ledger changes.
type EntryPublisher interface {
	EntryEventPublisher
	PublishEntryDeleted(ctx context.Context, msg *amqp.EntryDeletedMessage) error
}

// EntryRepository is the part of the Ledger Store EntryService needs.
type EntryRepository interface {
	GetUserProfile(ctx context.Context, userID int64) (core.UserProfile, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	ledger.EntryWriter
	ledger.EntryStore
}

// EntryInput carries the user-editable fields of an entry. An empty Kind
// takes the category's kind.
type EntryInput struct {
	CategoryID  int64
	Description string
	Amount      core.Money
	Date        core.Date
	Kind        core.Kind
}

// EntryService orchestrates entry operations across the store and AMQP.
type EntryService struct {
	store     EntryRepository
	publisher EntryPublisher
	onChange  func(userID int64)
}

// NewEntryService wires the service. publisher and onChange may be nil;
// onChange runs after every successful write, typically to drop cached
// analytics.
func NewEntryService(store EntryRepository, publisher EntryPublisher, onChange func(userID int64)) *EntryService {
	return &EntryService{
		store:     store,
		publisher: publisher,
		onChange:  onChange,
	}
}

// Create saves an entry and publishes an EntryCreated event.
func (s *EntryService) Create(ctx context.Context, userID int64, in EntryInput) (core.Entry, error) {
	if _, err := s.store.GetUserProfile(ctx, userID); err != nil {
		return core.Entry{}, err
	}
	e, err := s.build(ctx, userID, in)
	if err != nil {
		return core.Entry{}, err
	}

	created, err := s.store.InsertEntry(ctx, e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	wlog.FromContext(ctx).WithComponent(wlog.ComponentEntries).InfoContext(ctx, "Entry created",
		wlog.NewFields().
			WithOperation(wlog.OpCreate).
			WithUser(userID).
			WithEntry(created.ID, created.CategoryName, string(created.Kind), created.Date.String(), created.Amount.Cents).
			Args()...)

	s.publishCreated(ctx, created)
	s.changed(userID)
	return created, nil
}

// Update replaces the editable fields of an existing entry.
func (s *EntryService) Update(ctx context.Context, userID, entryID int64, in EntryInput) (core.Entry, error) {
	existing, err := s.store.GetEntry(ctx, userID, entryID)
	if err != nil {
		return core.Entry{}, err
	}
	e, err := s.build(ctx, userID, in)
	if err != nil {
		return core.Entry{}, err
	}
	e.ID = existing.ID
	e.CreatedAt = existing.CreatedAt

	updated, err := s.store.UpdateEntry(ctx, e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("update entry: %w", err)
	}

	wlog.FromContext(ctx).WithComponent(wlog.ComponentEntries).InfoContext(ctx, "Entry updated",
		wlog.FieldOperation, wlog.OpUpdate,
		wlog.FieldUserID, userID,
		wlog.FieldEntryID, updated.ID)
	s.changed(userID)
	return updated, nil
}

// Delete removes an entry and publishes an EntryDeleted event.
func (s *EntryService) Delete(ctx context.Context, userID, entryID int64) error {
	if err := s.store.DeleteEntry(ctx, userID, entryID); err != nil {
		if errors.Is(err, core.ErrEntryNotFound) {
			return err
		}
		return fmt.Errorf("delete entry: %w", err)
	}

	wlog.FromContext(ctx).WithComponent(wlog.ComponentEntries).InfoContext(ctx, "Entry deleted",
		wlog.FieldOperation, wlog.OpDelete,
		wlog.FieldUserID, userID,
		wlog.FieldEntryID, entryID)

	if s.publisher != nil {
		msg := &amqp.EntryDeletedMessage{EntryID: entryID, UserID: userID, Timestamp: time.Now().UTC()}
		if err := s.publisher.PublishEntryDeleted(ctx, msg); err != nil {
			wlog.FromContext(ctx).ErrorContext(ctx, "Failed to publish delete message",
				wlog.FieldEntryID, entryID,
				wlog.FieldError, err)
		}
	}
	s.changed(userID)
	return nil
}

func (s *EntryService) Get(ctx context.Context, userID, entryID int64) (core.Entry, error) {
	return s.store.GetEntry(ctx, userID, entryID)
}

// List returns the user's entries newest first. UserID in f is overwritten.
func (s *EntryService) List(ctx context.Context, userID int64, f ledger.EntryFilter) ([]core.Entry, error) {
	f.UserID = userID
	entries, err := s.store.ListEntries(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// build validates in against the category it references.
func (s *EntryService) build(ctx context.Context, userID int64, in EntryInput) (core.Entry, error) {
	if in.CategoryID <= 0 {
		return core.Entry{}, invalid(core.ErrMissingCategory)
	}
	cat, err := s.store.GetCategory(ctx, in.CategoryID)
	if errors.Is(err, core.ErrCategoryNotFound) {
		return core.Entry{}, invalid(err)
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("load category: %w", err)
	}
	if !cat.VisibleTo(userID) {
		return core.Entry{}, invalid(core.ErrCategoryNotFound)
	}

	kind := in.Kind
	if kind == "" {
		kind = cat.Kind
	}
	if kind != cat.Kind {
		return core.Entry{}, invalid(core.ErrCategoryKindMismatch)
	}

	e := core.Entry{
		UserID:       userID,
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Description:  strings.TrimSpace(in.Description),
		Amount:       in.Amount,
		Date:         in.Date,
		Kind:         kind,
	}
	if err := e.Validate(); err != nil {
		return core.Entry{}, invalid(err)
	}
	return e, nil
}

func (s *EntryService) publishCreated(ctx context.Context, e core.Entry) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEntryCreated(ctx, entryCreatedMessage(e, amqp.SourceUser)); err != nil {
		wlog.FromContext(ctx).ErrorContext(ctx, "Failed to publish sync message",
			wlog.FieldEntryID, e.ID,
			wlog.FieldError, err)
	}
}

func (s *EntryService) changed(userID int64) {
	if s.onChange != nil {
		s.onChange(userID)
	}
}
