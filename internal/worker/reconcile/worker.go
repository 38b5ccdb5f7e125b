package reconcileworker

import (
	"context"
	"time"

	"github.com/wolfman30/clinicdesk/internal/appointments"
	"github.com/wolfman30/clinicdesk/internal/workflow"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

type appointmentLister interface {
	ListAppointments(ctx context.Context) ([]appointments.Appointment, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, appts []appointments.Appointment) ([]workflow.Resumable, error)
}

// Worker periodically looks for visits that were billed but never completed
// and reports them. It does not resume them; that stays an explicit action.
type Worker struct {
	lister     appointmentLister
	reconciler reconciler
	logger     *logging.Logger
	interval   time.Duration
	onFound    func([]workflow.Resumable)
}

func New(lister appointmentLister, r reconciler, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		lister:     lister,
		reconciler: r,
		logger:     logger,
		interval:   5 * time.Minute,
	}
}

func (w *Worker) WithInterval(d time.Duration) *Worker {
	if d > 0 {
		w.interval = d
	}
	return w
}

// OnFound registers a hook that receives every non-empty scan result.
func (w *Worker) OnFound(fn func([]workflow.Resumable)) *Worker {
	w.onFound = fn
	return w
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *Worker) scan(ctx context.Context) {
	if w.lister == nil || w.reconciler == nil {
		return
	}
	appts, err := w.lister.ListAppointments(ctx)
	if err != nil {
		w.logger.Error("reconcile fetch failed", "error", err)
		return
	}
	found, err := w.reconciler.Reconcile(ctx, appts)
	if err != nil {
		w.logger.Error("reconcile failed", "error", err)
		return
	}
	for _, r := range found {
		w.logger.Warn("appointment billed but not completed",
			"appointment_id", r.Appointment.ID,
			"billing_id", r.BillingID,
			"from_marker", r.FromMarker,
		)
	}
	if len(found) > 0 && w.onFound != nil {
		w.onFound(found)
	}
}
