package events

import "time"

const (
	TypeAppointmentUpdated = "appointment.updated"
	TypeBillingCreated     = "billing.created"
	TypeBillingPaid        = "billing.paid"
)

// AppointmentUpdatedV1 is published after any successful appointment mutation.
type AppointmentUpdatedV1 struct {
	AppointmentID int64     `json:"appointment_id"`
	From          string    `json:"from,omitempty"`
	To            string    `json:"to,omitempty"`
	Action        string    `json:"action"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (AppointmentUpdatedV1) EventType() string { return TypeAppointmentUpdated }

// BillingCreatedV1 is published when finish-and-bill created a bill.
type BillingCreatedV1 struct {
	BillingID     int64     `json:"billing_id"`
	AppointmentID int64     `json:"appointment_id"`
	AmountCents   int64     `json:"amount_cents"`
	Completed     bool      `json:"completed"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (BillingCreatedV1) EventType() string { return TypeBillingCreated }

// BillingPaidV1 is published when a bill is confirmed paid.
type BillingPaidV1 struct {
	BillingID   int64     `json:"billing_id"`
	Channel     string    `json:"channel"` // cash, card, mpesa, flutterwave
	ProviderRef string    `json:"provider_ref,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (BillingPaidV1) EventType() string { return TypeBillingPaid }
