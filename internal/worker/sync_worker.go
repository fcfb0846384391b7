package worker

import (
	"context"
	"errors"
	"fmt"

	"wealthwise/internal/amqp"
	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	"wealthwise/internal/ledger"
	wlog "wealthwise/internal/log"
	"wealthwise/internal/sheets"
)

const entryQueue = "entries"

// EntryReader loads the entries announced by events.
type EntryReader interface {
	GetEntry(ctx context.Context, userID, id int64) (core.Entry, error)
	ListEntries(ctx context.Context, f ledger.EntryFilter) ([]core.Entry, error)
}

// SyncWorker mirrors ledger entries into a spreadsheet.
type SyncWorker struct {
	entries EntryReader
	sheets  sheets.EntryWriter
}

func NewSyncWorker(entries EntryReader, writer sheets.EntryWriter) *SyncWorker {
	return &SyncWorker{entries: entries, sheets: writer}
}

// Handlers wires the worker to amqp.Client.ConsumeEntryEvents.
func (w *SyncWorker) Handlers() amqp.EntryHandlers {
	return amqp.EntryHandlers{
		Created: w.HandleEntryCreated,
		Deleted: w.HandleEntryDeleted,
	}
}

// HandleEntryCreated appends the announced entry to the sheet. The event
// carries no description, so the entry is read back from the store; an
// entry deleted in the meantime is dropped.
func (w *SyncWorker) HandleEntryCreated(ctx context.Context, msg *amqp.EntryCreatedMessage) error {
	return observe(entryQueue, w.appendEntry(ctx, msg))
}

func (w *SyncWorker) appendEntry(ctx context.Context, msg *amqp.EntryCreatedMessage) error {
	logger := wlog.FromContext(ctx).WithComponent(wlog.ComponentWorker)

	entry, err := w.entries.GetEntry(ctx, msg.UserID, msg.EntryID)
	if errors.Is(err, core.ErrEntryNotFound) {
		return fmt.Errorf("%w: entry %d no longer exists", amqp.ErrDrop, msg.EntryID)
	}
	if err != nil {
		return fmt.Errorf("get entry from storage: %w", err)
	}

	ref, err := w.sheets.AppendEntries(ctx, msg.UserID, []core.Entry{entry})
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	logger.InfoContext(ctx, "Synced entry to sheets",
		wlog.FieldEntryID, entry.ID,
		wlog.FieldUserID, msg.UserID,
		wlog.FieldKind, string(entry.Kind),
		wlog.FieldAmountCents, entry.Amount.Cents,
		"source", msg.Source,
		"sheets_ref", ref)
	return nil
}

// HandleEntryDeleted acknowledges deletions. Exported rows are an append-only
// journal and are not removed.
func (w *SyncWorker) HandleEntryDeleted(ctx context.Context, msg *amqp.EntryDeletedMessage) error {
	wlog.FromContext(ctx).WithComponent(wlog.ComponentWorker).InfoContext(ctx, "Entry deleted, sheet rows kept",
		wlog.FieldEntryID, msg.EntryID,
		wlog.FieldUserID, msg.UserID)
	return observe(entryQueue, nil)
}

// ExportCycle appends every entry of the user's cycle, oldest first, and
// returns the number of rows written.
func (w *SyncWorker) ExportCycle(ctx context.Context, userID int64, c cycle.Key) (int, string, error) {
	entries, err := w.entries.ListEntries(ctx, ledger.EntryFilter{UserID: userID, Cycle: c})
	if err != nil {
		return 0, "", fmt.Errorf("list entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, "", nil
	}

	// ListEntries returns newest first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	ref, err := w.sheets.AppendEntries(ctx, userID, entries)
	if err != nil {
		return 0, "", fmt.Errorf("append to sheets: %w", err)
	}
	return len(entries), ref, nil
}
