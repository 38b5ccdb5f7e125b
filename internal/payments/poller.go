package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// ErrPaymentTimeout is returned when no paid status arrived inside the window.
var ErrPaymentTimeout = errors.New("payments: timed out waiting for payment")

// CheckFunc asks the backend for the current payment status of one bill.
type CheckFunc func(ctx context.Context) (PollStatus, error)

// PollStatus is one observation returned by a CheckFunc.
type PollStatus struct {
	Status string
	Paid   bool
}

// Result summarizes a finished poll.
type Result struct {
	Status   string
	Paid     bool
	Attempts int
}

// Poller checks a payment until it is paid or the window closes. The delay
// between attempts doubles from interval up to maxInterval.
type Poller struct {
	logger      *logging.Logger
	interval    time.Duration
	maxInterval time.Duration
	timeout     time.Duration
}

// NewPoller creates a poller with a 2s base interval, 15s cap and 2m window.
func NewPoller(logger *logging.Logger) *Poller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Poller{
		logger:      logger,
		interval:    2 * time.Second,
		maxInterval: 15 * time.Second,
		timeout:     2 * time.Minute,
	}
}

// WithInterval sets the first delay between checks.
func (p *Poller) WithInterval(interval time.Duration) *Poller {
	if interval > 0 {
		p.interval = interval
	}
	return p
}

// WithMaxInterval caps the backoff.
func (p *Poller) WithMaxInterval(d time.Duration) *Poller {
	if d > 0 {
		p.maxInterval = d
	}
	return p
}

// WithTimeout sets the overall polling window.
func (p *Poller) WithTimeout(d time.Duration) *Poller {
	if d > 0 {
		p.timeout = d
	}
	return p
}

// nextDelay doubles cur without exceeding maxInterval.
func (p *Poller) nextDelay(cur time.Duration) time.Duration {
	next := cur * 2
	if next > p.maxInterval || next <= 0 {
		return p.maxInterval
	}
	return next
}

// Poll blocks until check reports paid, the window elapses (ErrPaymentTimeout)
// or ctx is cancelled. Check errors are logged and the poll continues.
func (p *Poller) Poll(ctx context.Context, check CheckFunc) (Result, error) {
	if check == nil {
		return Result{}, fmt.Errorf("payments: check func required")
	}
	windowCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var res Result
	delay := p.interval
	if delay > p.maxInterval {
		delay = p.maxInterval
	}
	for {
		res.Attempts++
		st, err := check(windowCtx)
		if err != nil {
			p.logger.Debug("payment check failed", "attempt", res.Attempts, "error", err)
		} else {
			res.Status = st.Status
			if st.Paid {
				res.Paid = true
				p.logger.Info("payment confirmed", "attempts", res.Attempts)
				return res, nil
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-windowCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			p.logger.Warn("payment poll window elapsed", "attempts", res.Attempts, "last_status", res.Status)
			return res, fmt.Errorf("%w after %d attempts (last status %q)", ErrPaymentTimeout, res.Attempts, res.Status)
		case <-timer.C:
		}
		delay = p.nextDelay(delay)
	}
}

// Handle controls a poll running in the background.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	res    Result
	err    error
}

// Start runs Poll on a goroutine and returns immediately. onDone, when set,
// receives the outcome before Wait and Done observe it.
func (p *Poller) Start(ctx context.Context, check CheckFunc, onDone func(Result, error)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		h.res, h.err = p.Poll(ctx, check)
		if onDone != nil {
			onDone(h.res, h.err)
		}
	}()
	return h
}

// Stop cancels the poll. Wait then returns context.Canceled unless the poll
// had already finished.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
}

// Done is closed when the poll finishes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the poll finishes and returns its outcome.
func (h *Handle) Wait() (Result, error) {
	<-h.done
	return h.res, h.err
}
