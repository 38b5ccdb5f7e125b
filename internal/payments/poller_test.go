package payments

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicdesk/pkg/logging"
)

func fastPoller() *Poller {
	return NewPoller(logging.Discard()).
		WithInterval(2 * time.Millisecond).
		WithMaxInterval(10 * time.Millisecond).
		WithTimeout(time.Second)
}

func TestPoller_StopsOnFirstPaid(t *testing.T) {
	var calls int32
	check := func(ctx context.Context) (PollStatus, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return PollStatus{Status: "pending"}, nil
		}
		return PollStatus{Status: "paid", Paid: true}, nil
	}

	res, err := fastPoller().Poll(context.Background(), check)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPoller_CheckErrorsDoNotStopPolling(t *testing.T) {
	var calls int32
	check := func(ctx context.Context) (PollStatus, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return PollStatus{}, errors.New("gateway timeout")
		}
		return PollStatus{Status: "paid", Paid: true}, nil
	}
	res, err := fastPoller().Poll(context.Background(), check)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
}

func TestPoller_TimesOut(t *testing.T) {
	p := fastPoller().WithTimeout(30 * time.Millisecond)
	res, err := p.Poll(context.Background(), func(ctx context.Context) (PollStatus, error) {
		return PollStatus{Status: "pending"}, nil
	})
	require.ErrorIs(t, err, ErrPaymentTimeout)
	assert.False(t, res.Paid)
	assert.Equal(t, "pending", res.Status)
	assert.GreaterOrEqual(t, res.Attempts, 2)
}

func TestPoller_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fastPoller().Poll(ctx, func(ctx context.Context) (PollStatus, error) {
		return PollStatus{Status: "pending"}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrPaymentTimeout)
}

func TestPoller_RequiresCheck(t *testing.T) {
	_, err := fastPoller().Poll(context.Background(), nil)
	assert.Error(t, err)
}

func TestPoller_Backoff(t *testing.T) {
	p := NewPoller(nil)
	delays := []time.Duration{}
	d := p.interval
	for i := 0; i < 5; i++ {
		delays = append(delays, d)
		d = p.nextDelay(d)
	}
	assert.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 15 * time.Second, 15 * time.Second,
	}, delays)
}

func TestHandle_Stop(t *testing.T) {
	p := fastPoller().WithTimeout(time.Minute)
	h := p.Start(context.Background(), func(ctx context.Context) (PollStatus, error) {
		return PollStatus{Status: "pending"}, nil
	}, nil)
	h.Stop()
	h.Stop()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("poll did not stop")
	}
	_, err := h.Wait()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandle_WaitReturnsPaid(t *testing.T) {
	var seen Result
	h := fastPoller().Start(context.Background(), func(ctx context.Context) (PollStatus, error) {
		return PollStatus{Status: "paid", Paid: true}, nil
	}, func(res Result, err error) {
		seen = res
	})
	res, err := h.Wait()
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, res, seen, "onDone runs before Wait returns")
	h.Stop()
}

func TestParseChannel(t *testing.T) {
	cases := map[string]Channel{
		"cash":        ChannelCash,
		" Stripe ":    ChannelCard,
		"M-PESA":      ChannelMpesa,
		"flw":         ChannelFlutterwave,
		"transaction": ChannelFlutterwave,
	}
	for in, want := range cases {
		got, err := ParseChannel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseChannel("paypal")
	assert.Error(t, err)

	assert.True(t, ChannelMpesa.Async())
	assert.True(t, ChannelFlutterwave.Async())
	assert.False(t, ChannelCash.Async())
}
