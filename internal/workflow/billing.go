package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/clinicdesk/internal/appointments"
	"github.com/wolfman30/clinicdesk/internal/clinicapi"
	"github.com/wolfman30/clinicdesk/internal/events"
	"github.com/wolfman30/clinicdesk/internal/payments"
)

// BillingOptions configures a BillingCoordinator.
type BillingOptions struct {
	Pending PendingCompletionStore
	Roles   RoleSource
	Profile ProfileRefresher
	Poller  *payments.Poller
}

// BillingCoordinator runs the two-step finish-and-bill and payment confirmation.
type BillingCoordinator struct {
	wf      *Workflow
	backend BillingBackend
	pending PendingCompletionStore
	roles   RoleSource
	profile ProfileRefresher
	poller  *payments.Poller
}

func NewBillingCoordinator(wf *Workflow, backend BillingBackend, opts BillingOptions) *BillingCoordinator {
	if wf == nil || backend == nil {
		panic("workflow: billing coordinator requires workflow and backend")
	}
	c := &BillingCoordinator{
		wf:      wf,
		backend: backend,
		pending: opts.Pending,
		roles:   opts.Roles,
		profile: opts.Profile,
		poller:  opts.Poller,
	}
	if c.pending == nil {
		c.pending = NewMemoryPendingStore()
	}
	if c.poller == nil {
		c.poller = payments.NewPoller(wf.logger)
	}
	return c
}

// FinishAndBill creates the bill (step A) and then completes the appointment
// (step B). Completion is never attempted when step A fails. When step B fails
// the returned *PartialCompletionError carries the created bill and a pending
// marker is recorded for ResumeCompletion.
func (c *BillingCoordinator) FinishAndBill(ctx context.Context, appt *appointments.Appointment, amount appointments.Amount) (*appointments.Billing, error) {
	if appt == nil {
		return nil, appointments.Required("appointment")
	}
	if appt.Status != appointments.StatusInProgress {
		c.wf.metrics.ObserveFinishAndBill("rejected", 0)
		return nil, &appointments.TransitionError{From: appt.Status, To: appointments.StatusCompleted}
	}
	if !appt.HasRecord() {
		c.wf.metrics.ObserveFinishAndBill("rejected", 0)
		return nil, appointments.Required("medical_record")
	}
	if !appt.HasPrescriptions() {
		c.wf.metrics.ObserveFinishAndBill("rejected", 0)
		return nil, &appointments.ValidationError{Field: "prescriptions", Reason: "must contain at least one prescription"}
	}
	if !amount.IsPositive() {
		c.wf.metrics.ObserveFinishAndBill("rejected", 0)
		return nil, &appointments.ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if appt.HasBilling() {
		return nil, &appointments.ValidationError{Field: "billing", Reason: "already exists; resume completion instead"}
	}

	release, err := c.wf.guard.Acquire(ctx, ActionKey(ActionFinishAndBill, appt.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	if marker, err := c.pending.Get(ctx, appt.ID); err != nil {
		return nil, err
	} else if marker != nil {
		return nil, &appointments.ValidationError{Field: "billing", Reason: fmt.Sprintf("%d already created; resume completion instead", marker.BillingID)}
	}

	ctx, span := c.wf.tracer.Start(ctx, "workflow.finish_and_bill")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("appointment.id", appt.ID),
		attribute.Int64("billing.amount_cents", amount.Cents),
	)

	bill, err := c.backend.CreateBilling(ctx, appt.ID, amount, appointments.BillingUnpaid)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create billing")
		c.wf.metrics.ObserveFinishAndBill("billing_failed", 0)
		c.wf.logger.Error("billing creation failed", "appointment_id", appt.ID, "error", err)
		return nil, &appointments.BillingCreationError{AppointmentID: appt.ID, Err: err}
	}
	span.SetAttributes(attribute.Int64("billing.id", bill.ID))

	withBill := mergeAppointment(appt, nil)
	withBill.Billing = bill
	if _, err := c.wf.transition(ctx, withBill, appointments.StatusCompleted); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete appointment")
		return nil, c.recordPartial(ctx, appt.ID, bill, err)
	}

	if err := c.pending.Delete(ctx, appt.ID); err != nil {
		c.wf.logger.Warn("failed to clear pending completion", "appointment_id", appt.ID, "error", err)
	}
	c.wf.metrics.ObserveFinishAndBill("success", bill.Amount.Cents)
	c.wf.logger.Info("appointment finished and billed",
		"appointment_id", appt.ID, "billing_id", bill.ID, "amount", bill.Amount.String())
	c.publishCreated(bill, true)
	return bill, nil
}

func (c *BillingCoordinator) recordPartial(ctx context.Context, appointmentID int64, bill *appointments.Billing, cause error) error {
	marker := PendingCompletion{
		AppointmentID: appointmentID,
		BillingID:     bill.ID,
		AmountCents:   bill.Amount.Cents,
		LastError:     cause.Error(),
		RecordedAt:    c.wf.now().UTC(),
	}
	if err := c.pending.Save(ctx, marker); err != nil {
		c.wf.logger.Error("failed to record pending completion", "appointment_id", appointmentID, "error", err)
	}
	c.wf.metrics.ObserveFinishAndBill("partial", 0)
	c.wf.logger.Error("billing created but completion failed",
		"appointment_id", appointmentID, "billing_id", bill.ID, "error", cause)
	c.publishCreated(bill, false)
	return &appointments.PartialCompletionError{AppointmentID: appointmentID, Billing: bill, Err: cause}
}

// ResumeCompletion retries only step B for an appointment that already has a
// bill. The bill is never re-created.
func (c *BillingCoordinator) ResumeCompletion(ctx context.Context, appt *appointments.Appointment) (*appointments.Appointment, error) {
	if appt == nil {
		return nil, appointments.Required("appointment")
	}
	if appt.Status == appointments.StatusCompleted {
		if err := c.pending.Delete(ctx, appt.ID); err != nil {
			c.wf.logger.Warn("failed to clear pending completion", "appointment_id", appt.ID, "error", err)
		}
		return mergeAppointment(appt, nil), nil
	}
	if appt.Status != appointments.StatusInProgress {
		return nil, &appointments.TransitionError{From: appt.Status, To: appointments.StatusCompleted}
	}

	release, err := c.wf.guard.Acquire(ctx, ActionKey(ActionFinishAndBill, appt.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	bill, err := c.existingBilling(ctx, appt)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, &appointments.ValidationError{Field: "billing", Reason: "not found; run finish-and-bill first"}
	}

	ctx, span := c.wf.tracer.Start(ctx, "workflow.resume_completion")
	defer span.End()
	span.SetAttributes(attribute.Int64("appointment.id", appt.ID), attribute.Int64("billing.id", bill.ID))

	withBill := mergeAppointment(appt, nil)
	withBill.Billing = bill
	updated, err := c.wf.transition(ctx, withBill, appointments.StatusCompleted)
	if err != nil {
		span.RecordError(err)
		return nil, c.recordPartial(ctx, appt.ID, bill, err)
	}
	if err := c.pending.Delete(ctx, appt.ID); err != nil {
		c.wf.logger.Warn("failed to clear pending completion", "appointment_id", appt.ID, "error", err)
	}
	c.wf.metrics.ObserveFinishAndBill("resumed", 0)
	c.wf.logger.Info("appointment completion resumed", "appointment_id", appt.ID, "billing_id", bill.ID)
	return updated, nil
}

// existingBilling finds the bill from the appointment, the pending marker or
// the backend, in that order.
func (c *BillingCoordinator) existingBilling(ctx context.Context, appt *appointments.Appointment) (*appointments.Billing, error) {
	if appt.Billing != nil {
		return appt.Billing, nil
	}
	marker, err := c.pending.Get(ctx, appt.ID)
	if err != nil {
		return nil, err
	}
	if marker != nil {
		return &appointments.Billing{
			ID:            marker.BillingID,
			AppointmentID: appt.ID,
			Amount:        appointments.Cents(marker.AmountCents),
			Status:        appointments.BillingUnpaid,
		}, nil
	}
	bills, err := c.backend.ListAppointmentBillings(ctx, appt.ID)
	if err != nil {
		return nil, fmt.Errorf("workflow: list billings for appointment %d: %w", appt.ID, err)
	}
	if len(bills) == 0 {
		return nil, nil
	}
	return &bills[0], nil
}

// Resumable is an appointment left between step A and step B.
type Resumable struct {
	Appointment appointments.Appointment
	BillingID   int64
	FromMarker  bool
}

// Reconcile lists in-progress appointments that already carry a bill or a
// pending marker. Markers for appointments no longer in progress are dropped.
func (c *BillingCoordinator) Reconcile(ctx context.Context, appts []appointments.Appointment) ([]Resumable, error) {
	var out []Resumable
	for i := range appts {
		appt := appts[i]
		marker, err := c.pending.Get(ctx, appt.ID)
		if err != nil {
			return nil, err
		}
		if appt.Status != appointments.StatusInProgress {
			if marker != nil {
				if err := c.pending.Delete(ctx, appt.ID); err != nil {
					return nil, err
				}
				c.wf.logger.Debug("dropped stale pending completion", "appointment_id", appt.ID, "status", appt.Status)
			}
			continue
		}
		switch {
		case appt.Billing != nil:
			out = append(out, Resumable{Appointment: appt, BillingID: appt.Billing.ID, FromMarker: marker != nil})
		case marker != nil:
			out = append(out, Resumable{Appointment: appt, BillingID: marker.BillingID, FromMarker: true})
		}
	}
	return out, nil
}

// PendingCompletions returns every stored marker, including markers for
// appointments the caller cannot list.
func (c *BillingCoordinator) PendingCompletions(ctx context.Context) ([]PendingCompletion, error) {
	return c.pending.List(ctx)
}

// ConfirmCashPayment marks a bill paid. Only admins may confirm cash. The
// update is sent even when the bill already reads paid.
func (c *BillingCoordinator) ConfirmCashPayment(ctx context.Context, billingID int64) error {
	if billingID <= 0 {
		return appointments.Required("billing_id")
	}
	if c.roles != nil {
		if role := c.role(ctx); role != appointments.RoleAdmin {
			return fmt.Errorf("workflow: confirm cash payment as %q: %w", role, appointments.ErrForbidden)
		}
	}
	release, err := c.wf.guard.Acquire(ctx, ActionKey(ActionConfirmCash, billingID))
	if err != nil {
		return err
	}
	defer release()

	ctx, span := c.wf.tracer.Start(ctx, "workflow.confirm_cash")
	defer span.End()
	span.SetAttributes(attribute.Int64("billing.id", billingID))

	if err := c.backend.UpdateBillingStatus(ctx, billingID, appointments.BillingPaid); err != nil {
		span.RecordError(err)
		c.wf.metrics.ObservePayment(string(payments.ChannelCash), "failed")
		return &appointments.RemoteError{Op: "confirm cash payment", Err: err}
	}
	c.wf.metrics.ObservePayment(string(payments.ChannelCash), string(appointments.BillingPaid))
	c.wf.logger.Info("cash payment confirmed", "billing_id", billingID)
	c.publishPaid(billingID, payments.ChannelCash, "")
	return nil
}

// role reads the session role, refreshing the profile once when the token
// did not carry one.
func (c *BillingCoordinator) role(ctx context.Context) appointments.Role {
	role := c.roles.Role()
	if role == "" && c.profile != nil {
		c.profile.RefreshUser(ctx)
		role = c.roles.Role()
	}
	return role
}

// VerifyProviderPayment asks the backend for a provider outcome. With a
// providerRef the transaction endpoint is used, otherwise the billing's own
// verification endpoint. Non-paid statuses are returned as reported.
func (c *BillingCoordinator) VerifyProviderPayment(ctx context.Context, billingID int64, providerRef string) (*clinicapi.PaymentStatus, error) {
	channel := channelFor(providerRef, "")
	st, err := c.verify(ctx, billingID, providerRef)
	if err != nil {
		return nil, err
	}
	c.wf.metrics.ObservePayment(string(channel), normalizeStatus(st.Status))
	if st.Paid() {
		c.publishPaid(billingID, channel, providerRef)
	}
	return st, nil
}

// channelFor labels a provider check. An explicit channel wins; otherwise a
// provider reference means Flutterwave and its absence a card checkout.
func channelFor(providerRef string, channel payments.Channel) payments.Channel {
	switch {
	case channel != "":
		return channel
	case strings.TrimSpace(providerRef) != "":
		return payments.ChannelFlutterwave
	default:
		return payments.ChannelCard
	}
}

func (c *BillingCoordinator) verify(ctx context.Context, billingID int64, providerRef string) (*clinicapi.PaymentStatus, error) {
	if billingID <= 0 {
		return nil, appointments.Required("billing_id")
	}
	ctx, span := c.wf.tracer.Start(ctx, "workflow.verify_payment")
	defer span.End()
	span.SetAttributes(attribute.Int64("billing.id", billingID))

	providerRef = strings.TrimSpace(providerRef)
	var (
		st  *clinicapi.PaymentStatus
		err error
	)
	if providerRef != "" {
		st, err = c.backend.VerifyTransaction(ctx, providerRef, billingID)
	} else {
		st, err = c.backend.VerifyBillingPayment(ctx, billingID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("workflow: verify payment for billing %d: %w", billingID, err)
	}
	return st, nil
}

// WatchProviderPayment polls the provider outcome in the background until
// paid, the poller's window closes with payments.ErrPaymentTimeout, or the
// handle is stopped. channel labels the checks; empty derives it from
// providerRef. Cash cannot be watched.
func (c *BillingCoordinator) WatchProviderPayment(ctx context.Context, billingID int64, providerRef string, channel payments.Channel) (*payments.Handle, error) {
	if billingID <= 0 {
		return nil, appointments.Required("billing_id")
	}
	channel = channelFor(providerRef, channel)
	if !channel.Async() {
		return nil, &appointments.ValidationError{Field: "channel", Reason: fmt.Sprintf("%s payments are confirmed by an admin, not polled", channel)}
	}
	check := func(ctx context.Context) (payments.PollStatus, error) {
		st, err := c.verify(ctx, billingID, providerRef)
		if err != nil {
			return payments.PollStatus{}, err
		}
		return payments.PollStatus{Status: st.Status, Paid: st.Paid()}, nil
	}
	return c.poller.Start(ctx, check, func(_ payments.Result, err error) {
		switch {
		case err == nil:
			c.wf.metrics.ObservePayment(string(channel), string(appointments.BillingPaid))
			c.publishPaid(billingID, channel, providerRef)
		case errors.Is(err, context.Canceled):
			c.wf.metrics.ObservePayment(string(channel), "cancelled")
		default:
			c.wf.metrics.ObservePayment(string(channel), "timeout")
		}
	}), nil
}

// AwaitProviderPayment blocks on WatchProviderPayment.
func (c *BillingCoordinator) AwaitProviderPayment(ctx context.Context, billingID int64, providerRef string, channel payments.Channel) (payments.Result, error) {
	h, err := c.WatchProviderPayment(ctx, billingID, providerRef, channel)
	if err != nil {
		return payments.Result{}, err
	}
	defer h.Stop()
	return h.Wait()
}

// StartCardCheckout opens a hosted card checkout for an unpaid bill.
func (c *BillingCoordinator) StartCardCheckout(ctx context.Context, bill *appointments.Billing) (*clinicapi.CheckoutSession, error) {
	if err := payable(bill); err != nil {
		return nil, err
	}
	release, err := c.wf.guard.Acquire(ctx, ActionKey(ActionStartPayment, bill.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	cs, err := c.backend.CreateCheckoutSession(ctx, bill.ID)
	if err != nil {
		return nil, &appointments.RemoteError{Op: "create checkout session", Err: err}
	}
	c.wf.logger.Info("card checkout started", "billing_id", bill.ID)
	return cs, nil
}

// StartMpesaPayment pushes a payment prompt to phone for an unpaid bill.
func (c *BillingCoordinator) StartMpesaPayment(ctx context.Context, bill *appointments.Billing, phone string) (*clinicapi.MpesaPush, error) {
	if err := payable(bill); err != nil {
		return nil, err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, appointments.Required("phone_number")
	}
	release, err := c.wf.guard.Acquire(ctx, ActionKey(ActionStartPayment, bill.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	push, err := c.backend.InitiateMpesaPayment(ctx, bill.ID, phone)
	if err != nil {
		return nil, &appointments.RemoteError{Op: "initiate mpesa payment", Err: err}
	}
	c.wf.logger.Info("mpesa payment requested", "billing_id", bill.ID)
	return push, nil
}

func payable(bill *appointments.Billing) error {
	if bill == nil || bill.ID == 0 {
		return appointments.Required("billing")
	}
	if !bill.Status.CanMarkPaid() {
		return &appointments.ValidationError{Field: "billing", Reason: "is already paid"}
	}
	return nil
}

func (c *BillingCoordinator) publishCreated(bill *appointments.Billing, completed bool) {
	c.wf.publish(events.BillingAggregate(bill.ID), events.BillingCreatedV1{
		BillingID:     bill.ID,
		AppointmentID: bill.AppointmentID,
		AmountCents:   bill.Amount.Cents,
		Completed:     completed,
		OccurredAt:    c.wf.now().UTC(),
	})
}

func (c *BillingCoordinator) publishPaid(billingID int64, channel payments.Channel, ref string) {
	c.wf.publish(events.BillingAggregate(billingID), events.BillingPaidV1{
		BillingID:   billingID,
		Channel:     string(channel),
		ProviderRef: ref,
		OccurredAt:  c.wf.now().UTC(),
	})
}

func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
