package reconcileworker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicdesk/internal/appointments"
	"github.com/wolfman30/clinicdesk/internal/workflow"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

type fakeLister struct {
	appts []appointments.Appointment
	err   error
}

func (f fakeLister) ListAppointments(context.Context) ([]appointments.Appointment, error) {
	return f.appts, f.err
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls int
	seen  []appointments.Appointment
}

func (f *fakeReconciler) Reconcile(_ context.Context, appts []appointments.Appointment) ([]workflow.Resumable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = appts
	var out []workflow.Resumable
	for _, a := range appts {
		if a.Status == appointments.StatusInProgress && a.Billing != nil {
			out = append(out, workflow.Resumable{Appointment: a, BillingID: a.Billing.ID})
		}
	}
	return out, nil
}

func (f *fakeReconciler) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestScanReportsResumable(t *testing.T) {
	lister := fakeLister{appts: []appointments.Appointment{
		{ID: 1, Status: appointments.StatusInProgress, Billing: &appointments.Billing{ID: 10}},
		{ID: 2, Status: appointments.StatusInProgress},
		{ID: 3, Status: appointments.StatusCompleted, Billing: &appointments.Billing{ID: 11}},
	}}
	rec := &fakeReconciler{}
	var got []workflow.Resumable
	w := New(lister, rec, logging.Discard()).OnFound(func(found []workflow.Resumable) { got = found })

	w.scan(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Appointment.ID)
	assert.Equal(t, int64(10), got[0].BillingID)
}

func TestScanHandlesListError(t *testing.T) {
	rec := &fakeReconciler{}
	called := false
	w := New(fakeLister{err: errors.New("boom")}, rec, logging.Discard()).OnFound(func([]workflow.Resumable) { called = true })

	w.scan(context.Background())
	assert.Equal(t, 0, rec.Calls())
	assert.False(t, called)
}

func TestRunScansUntilCancelled(t *testing.T) {
	rec := &fakeReconciler{}
	w := New(fakeLister{}, rec, logging.Discard()).WithInterval(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return rec.Calls() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
