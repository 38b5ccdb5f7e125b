package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinicdesk/internal/appointments"
	"github.com/wolfman30/clinicdesk/internal/clinicapi"
	"github.com/wolfman30/clinicdesk/internal/events"
	"github.com/wolfman30/clinicdesk/internal/observability/metrics"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

var tracer = otel.Tracer("clinicdesk.internal.workflow")

// Guarded action names.
const (
	ActionTransition    = "transition"
	ActionCancel        = "cancel"
	ActionReschedule    = "reschedule"
	ActionCreateRecord  = "create_record"
	ActionPrescription  = "add_prescription"
	ActionFinishAndBill = "finish_and_bill"
	ActionConfirmCash   = "confirm_cash"
	ActionStartPayment  = "start_payment"
)

// CancelMode picks how a pending appointment is cancelled.
type CancelMode int

const (
	// CancelByStatus moves the appointment to cancelled.
	CancelByStatus CancelMode = iota
	// CancelByDelete removes the appointment from the backend.
	CancelByDelete
)

// Options configures a Workflow. Zero values pick in-memory defaults.
type Options struct {
	Guard     Guard
	Publisher events.Publisher
	Metrics   *metrics.WorkflowMetrics
	Logger    *logging.Logger
	Tracer    trace.Tracer
	Now       func() time.Time
}

// Workflow enforces the appointment lifecycle against the clinic backend.
// Returned appointments are copies; arguments are never mutated.
type Workflow struct {
	backend   AppointmentBackend
	guard     Guard
	publisher events.Publisher
	metrics   *metrics.WorkflowMetrics
	logger    *logging.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func New(backend AppointmentBackend, opts Options) *Workflow {
	if backend == nil {
		panic("workflow: backend cannot be nil")
	}
	w := &Workflow{
		backend:   backend,
		guard:     opts.Guard,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
		now:       opts.Now,
	}
	if w.guard == nil {
		w.guard = NewMemoryGuard()
	}
	if w.logger == nil {
		w.logger = logging.Default()
	}
	if w.tracer == nil {
		w.tracer = tracer
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// CanStart reports whether the visit may begin.
func CanStart(appt *appointments.Appointment) bool {
	return appt != nil && appt.Status == appointments.StatusConfirmed
}

// CanFinishAndBill reports whether the appointment may be billed and completed.
func CanFinishAndBill(appt *appointments.Appointment) bool {
	return appt != nil && appt.Status == appointments.StatusInProgress && appt.HasPrescriptions()
}

// RequestTransition moves appt to target. Transitions outside the table fail
// with ErrInvalidTransition before any backend call. Completion additionally
// requires prescriptions and an existing bill.
func (w *Workflow) RequestTransition(ctx context.Context, appt *appointments.Appointment, target appointments.Status) (*appointments.Appointment, error) {
	if appt == nil {
		return nil, appointments.Required("appointment")
	}
	if err := appointments.ValidateTransition(appt.Status, target); err != nil {
		w.metrics.ObserveTransition(string(appt.Status), string(target), "rejected")
		return nil, err
	}
	if target == appointments.StatusCompleted && !(CanFinishAndBill(appt) && appt.HasBilling()) {
		w.metrics.ObserveTransition(string(appt.Status), string(target), "rejected")
		return nil, &appointments.TransitionError{From: appt.Status, To: target}
	}
	release, err := w.guard.Acquire(ctx, ActionKey(ActionTransition, appt.ID))
	if err != nil {
		return nil, err
	}
	defer release()
	return w.transition(ctx, appt, target)
}

// transition assumes the table check and guard are handled by the caller.
func (w *Workflow) transition(ctx context.Context, appt *appointments.Appointment, target appointments.Status) (*appointments.Appointment, error) {
	ctx, span := w.tracer.Start(ctx, "workflow.transition")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("appointment.id", appt.ID),
		attribute.String("status.from", string(appt.Status)),
		attribute.String("status.to", string(target)),
	)

	remote, err := w.backend.UpdateAppointmentStatus(ctx, appt.ID, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update status")
		w.metrics.ObserveTransition(string(appt.Status), string(target), "failed")
		w.logger.Warn("appointment transition failed",
			"appointment_id", appt.ID, "from", appt.Status, "to", target, "error", err)
		return nil, &appointments.RemoteError{Op: "update appointment status", Err: err}
	}

	updated := mergeAppointment(appt, remote)
	updated.Status = target
	w.metrics.ObserveTransition(string(appt.Status), string(target), "success")
	w.logger.Info("appointment transitioned", "appointment_id", appt.ID, "from", appt.Status, "to", target)
	w.publish(events.AppointmentAggregate(appt.ID), events.AppointmentUpdatedV1{
		AppointmentID: appt.ID,
		From:          string(appt.Status),
		To:            string(target),
		Action:        ActionTransition,
		OccurredAt:    w.now().UTC(),
	})
	return updated, nil
}

// Confirm accepts a pending booking.
func (w *Workflow) Confirm(ctx context.Context, appt *appointments.Appointment) (*appointments.Appointment, error) {
	return w.RequestTransition(ctx, appt, appointments.StatusConfirmed)
}

// StartVisit moves a confirmed appointment to in_progress.
func (w *Workflow) StartVisit(ctx context.Context, appt *appointments.Appointment) (*appointments.Appointment, error) {
	if appt != nil && !CanStart(appt) {
		w.metrics.ObserveTransition(string(appt.Status), string(appointments.StatusInProgress), "rejected")
		return nil, &appointments.TransitionError{From: appt.Status, To: appointments.StatusInProgress}
	}
	return w.RequestTransition(ctx, appt, appointments.StatusInProgress)
}

// Cancel cancels a pending appointment. CancelByDelete returns a nil appointment.
func (w *Workflow) Cancel(ctx context.Context, appt *appointments.Appointment, mode CancelMode) (*appointments.Appointment, error) {
	if appt == nil {
		return nil, appointments.Required("appointment")
	}
	if appt.Status != appointments.StatusPending {
		w.metrics.ObserveTransition(string(appt.Status), string(appointments.StatusCancelled), "rejected")
		return nil, &appointments.TransitionError{From: appt.Status, To: appointments.StatusCancelled}
	}
	if mode == CancelByStatus {
		return w.RequestTransition(ctx, appt, appointments.StatusCancelled)
	}

	release, err := w.guard.Acquire(ctx, ActionKey(ActionCancel, appt.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, span := w.tracer.Start(ctx, "workflow.cancel_delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("appointment.id", appt.ID))

	if err := w.backend.DeleteAppointment(ctx, appt.ID); err != nil {
		span.RecordError(err)
		w.metrics.ObserveTransition(string(appt.Status), "deleted", "failed")
		return nil, &appointments.RemoteError{Op: "delete appointment", Err: err}
	}
	w.metrics.ObserveTransition(string(appt.Status), "deleted", "success")
	w.logger.Info("appointment deleted", "appointment_id", appt.ID)
	w.publish(events.AppointmentAggregate(appt.ID), events.AppointmentUpdatedV1{
		AppointmentID: appt.ID,
		From:          string(appt.Status),
		Action:        "delete",
		OccurredAt:    w.now().UTC(),
	})
	return nil, nil
}

// Reschedule moves a non-terminal appointment to at.
func (w *Workflow) Reschedule(ctx context.Context, appt *appointments.Appointment, at time.Time) (*appointments.Appointment, error) {
	if appt == nil {
		return nil, appointments.Required("appointment")
	}
	if at.IsZero() {
		return nil, appointments.Required("scheduled_at")
	}
	if appt.Status.IsTerminal() {
		return nil, &appointments.ValidationError{Field: "status", Reason: fmt.Sprintf("is %s and cannot be rescheduled", appt.Status)}
	}
	release, err := w.guard.Acquire(ctx, ActionKey(ActionReschedule, appt.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, span := w.tracer.Start(ctx, "workflow.reschedule")
	defer span.End()
	span.SetAttributes(attribute.Int64("appointment.id", appt.ID))

	if err := w.backend.RescheduleAppointment(ctx, appt.ID, at); err != nil {
		span.RecordError(err)
		return nil, &appointments.RemoteError{Op: "reschedule appointment", Err: err}
	}
	updated := mergeAppointment(appt, nil)
	updated.ScheduledAt = at
	w.publish(events.AppointmentAggregate(appt.ID), events.AppointmentUpdatedV1{
		AppointmentID: appt.ID,
		Action:        ActionReschedule,
		OccurredAt:    w.now().UTC(),
	})
	return updated, nil
}

// Book requests a new pending appointment. date is YYYY-MM-DD, clock is HH:MM.
func (w *Workflow) Book(ctx context.Context, req clinicapi.BookingRequest) (*appointments.Appointment, error) {
	if req.DoctorID <= 0 {
		return nil, appointments.Required("doctor_id")
	}
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	if req.Date == "" {
		return nil, appointments.Required("date")
	}
	if req.Time == "" {
		return nil, appointments.Required("time")
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return nil, &appointments.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		return nil, &appointments.ValidationError{Field: "time", Reason: "must be HH:MM"}
	}

	ctx, span := w.tracer.Start(ctx, "workflow.book")
	defer span.End()

	appt, err := w.backend.BookAppointment(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, &appointments.RemoteError{Op: "book appointment", Err: err}
	}
	if appt.Status == "" {
		appt.Status = appointments.StatusPending
	}
	w.publish(events.AppointmentAggregate(appt.ID), events.AppointmentUpdatedV1{
		AppointmentID: appt.ID,
		To:            string(appt.Status),
		Action:        "book",
		OccurredAt:    w.now().UTC(),
	})
	return appt, nil
}

// RecordInput is the visit outcome entered by the doctor.
type RecordInput struct {
	Diagnosis string
	Treatment string
	Notes     string
}

// CreateMedicalRecord attaches the single record of an in-progress appointment.
func (w *Workflow) CreateMedicalRecord(ctx context.Context, appt *appointments.Appointment, in RecordInput) (*appointments.MedicalRecord, error) {
	if appt == nil {
		return nil, appointments.Required("appointment")
	}
	if appt.Status != appointments.StatusInProgress {
		return nil, &appointments.ValidationError{Field: "status", Reason: "must be in_progress to record a visit"}
	}
	if appt.HasRecord() {
		return nil, &appointments.ValidationError{Field: "medical_record", Reason: "already exists"}
	}
	diagnosis := strings.TrimSpace(in.Diagnosis)
	treatment := strings.TrimSpace(in.Treatment)
	if diagnosis == "" {
		return nil, appointments.Required("diagnosis")
	}
	if treatment == "" {
		return nil, appointments.Required("treatment")
	}

	release, err := w.guard.Acquire(ctx, ActionKey(ActionCreateRecord, appt.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, span := w.tracer.Start(ctx, "workflow.create_record")
	defer span.End()
	span.SetAttributes(attribute.Int64("appointment.id", appt.ID))

	rec, err := w.backend.CreateMedicalRecord(ctx, clinicapi.MedicalRecordInput{
		PatientID:     appt.ResolvedPatientID(),
		AppointmentID: appt.ID,
		Diagnosis:     diagnosis,
		Treatment:     treatment,
		Notes:         strings.TrimSpace(in.Notes),
	})
	if err != nil {
		span.RecordError(err)
		return nil, &appointments.RemoteError{Op: "create medical record", Err: err}
	}
	if rec.AppointmentID == 0 {
		rec.AppointmentID = appt.ID
	}
	if rec.PatientID == 0 {
		rec.PatientID = appt.ResolvedPatientID()
	}
	if rec.Prescriptions == nil {
		rec.Prescriptions = []appointments.Prescription{}
	}
	w.logger.Info("medical record created", "appointment_id", appt.ID, "record_id", rec.ID)
	w.publish(events.AppointmentAggregate(appt.ID), events.AppointmentUpdatedV1{
		AppointmentID: appt.ID,
		Action:        ActionCreateRecord,
		OccurredAt:    w.now().UTC(),
	})
	return rec, nil
}

// AddPrescription appends one prescription to record and returns the new list.
func (w *Workflow) AddPrescription(ctx context.Context, record *appointments.MedicalRecord, in clinicapi.PrescriptionInput) ([]appointments.Prescription, error) {
	if record == nil || record.ID == 0 {
		return nil, appointments.Required("medical_record")
	}
	in.MedicationName = strings.TrimSpace(in.MedicationName)
	in.Dosage = strings.TrimSpace(in.Dosage)
	in.Instructions = strings.TrimSpace(in.Instructions)
	if in.MedicationName == "" {
		return nil, appointments.Required("medication_name")
	}
	if in.Dosage == "" {
		return nil, appointments.Required("dosage")
	}

	key := record.AppointmentID
	if key == 0 {
		key = record.ID
	}
	release, err := w.guard.Acquire(ctx, ActionKey(ActionPrescription, key))
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, span := w.tracer.Start(ctx, "workflow.add_prescription")
	defer span.End()
	span.SetAttributes(attribute.Int64("medical_record.id", record.ID))

	rx, err := w.backend.CreatePrescription(ctx, record.ID, in)
	if err != nil {
		span.RecordError(err)
		return nil, &appointments.RemoteError{Op: "create prescription", Err: err}
	}
	out := make([]appointments.Prescription, 0, len(record.Prescriptions)+1)
	out = append(out, record.Prescriptions...)
	out = append(out, *rx)

	if record.AppointmentID != 0 {
		w.publish(events.AppointmentAggregate(record.AppointmentID), events.AppointmentUpdatedV1{
			AppointmentID: record.AppointmentID,
			Action:        ActionPrescription,
			OccurredAt:    w.now().UTC(),
		})
	}
	return out, nil
}

func (w *Workflow) publish(aggregate string, evt events.Event) {
	if w.publisher == nil {
		return
	}
	if _, err := w.publisher.Publish(aggregate, evt); err != nil {
		w.logger.Warn("event publish failed", "aggregate", aggregate, "error", err)
	}
}

// mergeAppointment copies base and overlays the fields the backend echoed.
func mergeAppointment(base, remote *appointments.Appointment) *appointments.Appointment {
	out := *base
	if remote == nil {
		return &out
	}
	if !remote.ScheduledAt.IsZero() {
		out.ScheduledAt = remote.ScheduledAt
	}
	if remote.Notes != "" {
		out.Notes = remote.Notes
	}
	if remote.MedicalRecord != nil {
		out.MedicalRecord = remote.MedicalRecord
	}
	if remote.Billing != nil {
		out.Billing = remote.Billing
	}
	if !remote.UpdatedAt.IsZero() {
		out.UpdatedAt = remote.UpdatedAt
	}
	return &out
}
