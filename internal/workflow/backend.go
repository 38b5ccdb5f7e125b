package workflow

import (
	"context"
	"time"

	"github.com/wolfman30/clinicdesk/internal/appointments"
	"github.com/wolfman30/clinicdesk/internal/clinicapi"
)

// AppointmentBackend is the part of the clinic API the appointment workflow mutates.
type AppointmentBackend interface {
	UpdateAppointmentStatus(ctx context.Context, id int64, status appointments.Status) (*appointments.Appointment, error)
	RescheduleAppointment(ctx context.Context, id int64, at time.Time) error
	DeleteAppointment(ctx context.Context, id int64) error
	BookAppointment(ctx context.Context, req clinicapi.BookingRequest) (*appointments.Appointment, error)
	CreateMedicalRecord(ctx context.Context, in clinicapi.MedicalRecordInput) (*appointments.MedicalRecord, error)
	CreatePrescription(ctx context.Context, recordID int64, in clinicapi.PrescriptionInput) (*appointments.Prescription, error)
}

// BillingBackend is the part of the clinic API the billing coordinator uses.
type BillingBackend interface {
	CreateBilling(ctx context.Context, appointmentID int64, amount appointments.Amount, status appointments.BillingStatus) (*appointments.Billing, error)
	ListAppointmentBillings(ctx context.Context, appointmentID int64) ([]appointments.Billing, error)
	UpdateBillingStatus(ctx context.Context, billingID int64, status appointments.BillingStatus) error
	VerifyBillingPayment(ctx context.Context, billingID int64) (*clinicapi.PaymentStatus, error)
	VerifyTransaction(ctx context.Context, transactionID string, billingID int64) (*clinicapi.PaymentStatus, error)
	CreateCheckoutSession(ctx context.Context, billingID int64) (*clinicapi.CheckoutSession, error)
	InitiateMpesaPayment(ctx context.Context, billingID int64, phone string) (*clinicapi.MpesaPush, error)
}

// Backend is satisfied by *clinicapi.Client.
type Backend interface {
	AppointmentBackend
	BillingBackend
}

// RoleSource reports the signed-in role; *clinicapi.Session satisfies it.
type RoleSource interface {
	Role() appointments.Role
}

// ProfileRefresher reloads the signed-in profile into the RoleSource. It is
// consulted when the token carries no role claim.
type ProfileRefresher interface {
	RefreshUser(ctx context.Context)
}

var _ Backend = (*clinicapi.Client)(nil)
var _ RoleSource = (*clinicapi.Session)(nil)
var _ ProfileRefresher = (*clinicapi.Client)(nil)
