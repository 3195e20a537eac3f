// Package worker mirrors credit events from the message broker into the
// spreadsheet history.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"creditledger/internal/amqp"
	"creditledger/internal/sheets"
)

// EventConsumer delivers credit events until ctx is cancelled.
type EventConsumer interface {
	ConsumeCreditEvents(ctx context.Context, handler func(context.Context, *amqp.CreditEvent) error) error
}

// SyncWorker appends one history row per credit event.
type SyncWorker struct {
	consumer EventConsumer
	history  sheets.HistoryWriter

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

func NewSyncWorker(consumer EventConsumer, history sheets.HistoryWriter) *SyncWorker {
	return &SyncWorker{consumer: consumer, history: history}
}

// HandleCreditEvent writes a single event to the history sheet. Returning an
// error makes the broker redeliver the message.
func (w *SyncWorker) HandleCreditEvent(ctx context.Context, event *amqp.CreditEvent) error {
	if event == nil {
		return errors.New("nil credit event")
	}
	slog.InfoContext(ctx, "Processing credit event",
		"type", event.Type,
		"id", event.ID)

	row := HistoryRowFromEvent(event)
	ref, err := w.history.AppendHistory(ctx, row)
	if err != nil {
		return fmt.Errorf("append history row: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored credit event",
		"type", event.Type,
		"id", event.ID,
		"sheets_ref", ref)
	return nil
}

// HistoryRowFromEvent maps an event onto a history row. Deletions carry only the id.
func HistoryRowFromEvent(event *amqp.CreditEvent) sheets.HistoryRow {
	row := sheets.HistoryRow{
		Timestamp: event.Timestamp,
		Event:     string(event.Type),
		ID:        event.ID,
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}
	if event.Credit != nil && event.Type != amqp.CreditDeleted {
		row.Date = event.Credit.Date
		row.Description = event.Credit.Description
		row.Amount = event.Credit.Amount.String()
	}
	return row
}

// Start begins consuming. Returns an error if already running.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.err = nil
	w.mu.Unlock()

	go w.run(runCtx, w.doneCh)

	slog.InfoContext(ctx, "Sync worker started")
	return nil
}

func (w *SyncWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	err := w.consumer.ConsumeCreditEvents(ctx, w.HandleCreditEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "Credit event consumer stopped", "error", err)
	} else {
		err = nil
	}
	w.mu.Lock()
	w.err = err
	w.running = false
	w.mu.Unlock()
}

// Done is closed when the consumer loop exits.
func (w *SyncWorker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doneCh
}

// Err returns the error that ended the consumer loop, if any.
func (w *SyncWorker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Stop cancels consumption and waits for the in-flight message to finish.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
		slog.InfoContext(ctx, "Sync worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
