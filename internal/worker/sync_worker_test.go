package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"creditledger/internal/amqp"
	"creditledger/internal/core"
	"creditledger/internal/sheets"
	"creditledger/internal/sheets/memory"
)

// chanConsumer feeds events from a channel until ctx ends.
type chanConsumer struct {
	events chan *amqp.CreditEvent
	errs   chan error
}

func (c *chanConsumer) ConsumeCreditEvents(ctx context.Context, handler func(context.Context, *amqp.CreditEvent) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-c.events:
			c.errs <- handler(ctx, e)
		}
	}
}

type failingHistory struct{}

func (failingHistory) AppendHistory(context.Context, sheets.HistoryRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestHistoryRowFromEvent(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	credit := &core.Credit{ID: 7, Date: "2025-06-01", Description: "Milk", Amount: core.Money{Cents: 4500}}

	tests := []struct {
		name  string
		event *amqp.CreditEvent
		want  sheets.HistoryRow
	}{
		{
			name:  "created",
			event: &amqp.CreditEvent{Type: amqp.CreditCreated, ID: 7, Credit: credit, Timestamp: ts},
			want:  sheets.HistoryRow{Timestamp: ts, Event: "created", ID: 7, Date: "2025-06-01", Description: "Milk", Amount: "45.00"},
		},
		{
			name:  "updated",
			event: &amqp.CreditEvent{Type: amqp.CreditUpdated, ID: 7, Credit: credit, Timestamp: ts},
			want:  sheets.HistoryRow{Timestamp: ts, Event: "updated", ID: 7, Date: "2025-06-01", Description: "Milk", Amount: "45.00"},
		},
		{
			name:  "deleted",
			event: &amqp.CreditEvent{Type: amqp.CreditDeleted, ID: 7, Timestamp: ts},
			want:  sheets.HistoryRow{Timestamp: ts, Event: "deleted", ID: 7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HistoryRowFromEvent(tt.event); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHandleCreditEvent(t *testing.T) {
	history := memory.New()
	w := NewSyncWorker(nil, history)
	event := amqp.NewCreditEvent(amqp.CreditCreated, 1, &core.Credit{ID: 1, Date: "2025-06-01", Description: "Bread", Amount: core.Money{Cents: 250}})

	if err := w.HandleCreditEvent(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rows := history.Rows()
	if len(rows) != 1 || rows[0].Amount != "2.50" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if err := w.HandleCreditEvent(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil event")
	}
}

func TestHandleCreditEventPropagatesWriteFailure(t *testing.T) {
	w := NewSyncWorker(nil, failingHistory{})
	err := w.HandleCreditEvent(context.Background(), amqp.NewCreditEvent(amqp.CreditDeleted, 3, nil))
	if err == nil {
		t.Fatal("expected write failure to surface so the message is redelivered")
	}
}

func TestSyncWorkerLifecycle(t *testing.T) {
	consumer := &chanConsumer{events: make(chan *amqp.CreditEvent), errs: make(chan error, 1)}
	history := memory.New()
	w := NewSyncWorker(consumer, history)
	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.Start(ctx); err == nil {
		t.Fatal("second start should fail")
	}
	if !w.IsRunning() {
		t.Fatal("worker should be running")
	}

	consumer.events <- amqp.NewCreditEvent(amqp.CreditDeleted, 9, nil)
	if err := <-consumer.errs; err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rows := history.Rows(); len(rows) != 1 || rows[0].ID != 9 {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if w.IsRunning() {
		t.Fatal("worker should be stopped")
	}
	if err := w.Err(); err != nil {
		t.Fatalf("cancellation must not be reported as an error: %v", err)
	}
	// Stopping twice is a no-op.
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

type failingConsumer struct{ calls int }

func (c *failingConsumer) ConsumeCreditEvents(context.Context, func(context.Context, *amqp.CreditEvent) error) error {
	c.calls++
	return errors.New("broker gone")
}

func TestSyncWorkerRestartsAfterConsumerFailure(t *testing.T) {
	consumer := &failingConsumer{}
	w := NewSyncWorker(consumer, memory.New())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := w.Start(ctx); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		select {
		case <-w.Done():
		case <-time.After(time.Second):
			t.Fatal("consumer loop did not exit")
		}
		if err := w.Err(); err == nil {
			t.Fatal("consumer failure should be reported")
		}
		if w.IsRunning() {
			t.Fatal("worker should not be running after its consumer exits")
		}
	}
	if consumer.calls != 2 {
		t.Fatalf("calls = %d, want 2", consumer.calls)
	}
}
