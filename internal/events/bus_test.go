package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinicdesk/pkg/logging"
)

type badEvent struct{}

func (badEvent) EventType() string { return "" }

func TestNewEnvelope(t *testing.T) {
	fixedNow := time.Unix(0, 123456000).UTC()
	prevNow := nowFunc
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = prevNow }()

	id := uuid.MustParse("9a20d7d1-bf6a-4d33-bd55-5d25a816f1a8")
	env, err := newEnvelope(AppointmentAggregate(42), AppointmentUpdatedV1{
		AppointmentID: 42,
		From:          "pending",
		To:            "confirmed",
		Action:        "transition",
		OccurredAt:    fixedNow,
	}, WithEventID(id), WithCorrelationID(" corr-1 "))
	if err != nil {
		t.Fatalf("newEnvelope failed: %v", err)
	}
	if env.EventID != id {
		t.Fatalf("expected event id override, got %s", env.EventID)
	}
	if env.TimestampMicros != fixedNow.UnixMicro() || !env.Time().Equal(fixedNow) {
		t.Fatalf("unexpected timestamp: %d", env.TimestampMicros)
	}
	if env.EventType != TypeAppointmentUpdated {
		t.Fatalf("unexpected type: %s", env.EventType)
	}
	if env.Aggregate != "appointment:42" || env.CorrelationID != "corr-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	var decoded AppointmentUpdatedV1
	if err := env.Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.To != "confirmed" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestNewEnvelope_Errors(t *testing.T) {
	if _, err := newEnvelope("", BillingPaidV1{}); !errors.Is(err, errMissingAggregate) {
		t.Fatalf("expected missing aggregate, got %v", err)
	}
	if _, err := newEnvelope("billing:1", nil); !errors.Is(err, errNilEvent) {
		t.Fatalf("expected nil event error, got %v", err)
	}
	if _, err := newEnvelope("billing:1", badEvent{}); err == nil {
		t.Fatal("expected error for empty event type")
	}
}

func TestBus_FiltersByType(t *testing.T) {
	bus := NewBus(logging.Discard())
	all := bus.Subscribe(4)
	paid := bus.Subscribe(4, TypeBillingPaid)
	defer all.Close()
	defer paid.Close()

	if _, err := bus.Publish(BillingAggregate(1), BillingCreatedV1{BillingID: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := bus.Publish(BillingAggregate(1), BillingPaidV1{BillingID: 1, Channel: "cash"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if got := len(all.C()); got != 2 {
		t.Fatalf("expected 2 events for catch-all subscriber, got %d", got)
	}
	if got := len(paid.C()); got != 1 {
		t.Fatalf("expected 1 event for filtered subscriber, got %d", got)
	}
	env := <-paid.C()
	if env.EventType != TypeBillingPaid {
		t.Fatalf("unexpected event: %s", env.EventType)
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus(logging.Discard())
	sub := bus.Subscribe(1)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_, _ = bus.Publish(AppointmentAggregate(int64(i)), AppointmentUpdatedV1{AppointmentID: int64(i)})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if got := len(sub.C()); got != 1 {
		t.Fatalf("expected buffer of 1, got %d", got)
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(0)
	if bus.Subscribers() != 1 {
		t.Fatalf("expected one subscriber")
	}
	sub.Close()
	sub.Close()
	if bus.Subscribers() != 0 {
		t.Fatalf("expected no subscribers after close")
	}
	if _, ok := <-sub.C(); ok {
		t.Fatal("expected closed channel")
	}
	// publishing after close is harmless
	if _, err := bus.Publish(BillingAggregate(2), BillingPaidV1{BillingID: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestSubscription_Drain(t *testing.T) {
	bus := NewBus(logging.Discard())
	sub := bus.Subscribe(8)

	var mu sync.Mutex
	var seen []int64
	handler := func(ctx context.Context, env Envelope) error {
		var evt BillingCreatedV1
		if err := env.Decode(&evt); err != nil {
			return err
		}
		mu.Lock()
		seen = append(seen, evt.BillingID)
		mu.Unlock()
		if evt.BillingID == 2 {
			return errors.New("handler failure")
		}
		return nil
	}

	for i := int64(1); i <= 3; i++ {
		_, _ = bus.Publish(BillingAggregate(i), BillingCreatedV1{BillingID: i})
	}
	sub.Close()

	sub.Drain(context.Background(), handler)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("expected all buffered events drained in order, got %v", seen)
	}
}
