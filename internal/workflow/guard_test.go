package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicdesk/internal/appointments"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func exerciseGuard(t *testing.T, g Guard) {
	t.Helper()
	ctx := context.Background()
	key := ActionKey(ActionFinishAndBill, 42)
	assert.Equal(t, "finish_and_bill:42", key)

	release, err := g.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = g.Acquire(ctx, key)
	assert.ErrorIs(t, err, appointments.ErrActionInFlight)

	other, err := g.Acquire(ctx, ActionKey(ActionFinishAndBill, 43))
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := g.Acquire(ctx, key)
	require.NoError(t, err)
	again()
}

func TestMemoryGuard(t *testing.T) {
	exerciseGuard(t, NewMemoryGuard())
}

func TestRedisGuard(t *testing.T) {
	_, client := newRedis(t)
	exerciseGuard(t, NewRedisGuard(client, time.Minute))
}

func TestRedisGuard_ExpiresAfterTTL(t *testing.T) {
	mr, client := newRedis(t)
	g := NewRedisGuard(client, 30*time.Second)
	ctx := context.Background()

	stale, err := g.Acquire(ctx, "confirm_cash:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(guardKeyPrefix+"confirm_cash:1"))

	mr.FastForward(31 * time.Second)

	fresh, err := g.Acquire(ctx, "confirm_cash:1")
	require.NoError(t, err)

	// the expired holder must not release the new holder's key
	stale()
	_, err = g.Acquire(ctx, "confirm_cash:1")
	assert.ErrorIs(t, err, appointments.ErrActionInFlight)
	fresh()
}

func TestRedisGuard_SharedAcrossWorkflows(t *testing.T) {
	_, client := newRedis(t)
	guard := NewRedisGuard(client, time.Minute)
	backend := newFakeBackend()
	backend.block = make(chan struct{})

	wfA := New(backend, Options{Guard: guard})
	wfB := New(newFakeBackend(), Options{Guard: guard})

	done := make(chan error, 1)
	go func() {
		_, err := wfA.RequestTransition(context.Background(), appt(8, appointments.StatusPending), appointments.StatusConfirmed)
		done <- err
	}()
	require.Eventually(t, func() bool { return len(backend.Calls()) == 1 }, time.Second, time.Millisecond)

	_, err := wfB.RequestTransition(context.Background(), appt(8, appointments.StatusPending), appointments.StatusConfirmed)
	assert.ErrorIs(t, err, appointments.ErrActionInFlight)

	close(backend.block)
	require.NoError(t, <-done)
}

func exercisePendingStore(t *testing.T, s PendingCompletionStore) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, s.Save(ctx, PendingCompletion{AppointmentID: 2, BillingID: 20, AmountCents: 50000, LastError: "boom", RecordedAt: at}))
	require.NoError(t, s.Save(ctx, PendingCompletion{AppointmentID: 1, BillingID: 10}))

	got, err = s.Get(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(20), got.BillingID)
	assert.Equal(t, int64(50000), got.AmountCents)
	assert.True(t, got.RecordedAt.Equal(at))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].AppointmentID)
	assert.Equal(t, int64(2), list[1].AppointmentID)

	require.NoError(t, s.Delete(ctx, 2))
	require.NoError(t, s.Delete(ctx, 99))
	got, err = s.Get(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryPendingStore(t *testing.T) {
	exercisePendingStore(t, NewMemoryPendingStore())
}

func TestRedisPendingStore(t *testing.T) {
	_, client := newRedis(t)
	exercisePendingStore(t, NewRedisPendingStore(client))
}

func TestRedisPendingStore_SurvivesCoordinatorRestart(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	backend := newFakeBackend()
	backend.fail("status:completed")

	first := NewBillingCoordinator(New(backend, Options{}), backend, BillingOptions{Pending: NewRedisPendingStore(client)})
	_, err := first.FinishAndBill(ctx, readyToBill(12), appointments.Units(100))
	require.ErrorIs(t, err, appointments.ErrPartialCompletion)

	healthy := newFakeBackend()
	second := NewBillingCoordinator(New(healthy, Options{}), healthy, BillingOptions{Pending: NewRedisPendingStore(client)})
	resumable, err := second.Reconcile(ctx, []appointments.Appointment{*readyToBill(12)})
	require.NoError(t, err)
	require.Len(t, resumable, 1)
	assert.True(t, resumable[0].FromMarker)

	_, err = second.ResumeCompletion(ctx, readyToBill(12))
	require.NoError(t, err)
	assert.Equal(t, []string{"status:completed"}, healthy.Calls())
}
