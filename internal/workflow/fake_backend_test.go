package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/clinicdesk/internal/appointments"
	"github.com/wolfman30/clinicdesk/internal/clinicapi"
)

// fakeBackend records every call and fails the operations named in failOn.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	failOn   map[string]error
	nextID   int64
	verify   []string // statuses returned by successive verify calls
	verified int
	bills    map[int64][]appointments.Billing
	block    chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{failOn: map[string]error{}, nextID: 100, bills: map[int64][]appointments.Billing{}}
}

func (f *fakeBackend) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	err := f.failOn[call]
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (f *fakeBackend) fail(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[call] = fmt.Errorf("clinicapi: %s: status 500: internal error", call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) id() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID
}

func (f *fakeBackend) UpdateAppointmentStatus(_ context.Context, id int64, status appointments.Status) (*appointments.Appointment, error) {
	if err := f.record("status:" + string(status)); err != nil {
		return nil, err
	}
	return &appointments.Appointment{ID: id, Status: status}, nil
}

func (f *fakeBackend) RescheduleAppointment(_ context.Context, id int64, at time.Time) error {
	return f.record("reschedule")
}

func (f *fakeBackend) DeleteAppointment(_ context.Context, id int64) error {
	return f.record("delete")
}

func (f *fakeBackend) BookAppointment(_ context.Context, req clinicapi.BookingRequest) (*appointments.Appointment, error) {
	if err := f.record("book"); err != nil {
		return nil, err
	}
	return &appointments.Appointment{ID: f.id(), DoctorID: req.DoctorID, Notes: req.Notes}, nil
}

func (f *fakeBackend) CreateMedicalRecord(_ context.Context, in clinicapi.MedicalRecordInput) (*appointments.MedicalRecord, error) {
	if err := f.record("create_record"); err != nil {
		return nil, err
	}
	return &appointments.MedicalRecord{ID: f.id(), Diagnosis: in.Diagnosis, Treatment: in.Treatment, Notes: in.Notes}, nil
}

func (f *fakeBackend) CreatePrescription(_ context.Context, recordID int64, in clinicapi.PrescriptionInput) (*appointments.Prescription, error) {
	if err := f.record("create_prescription"); err != nil {
		return nil, err
	}
	return &appointments.Prescription{
		ID: f.id(), MedicalRecordID: recordID,
		MedicationName: in.MedicationName, Dosage: in.Dosage, Instructions: in.Instructions,
	}, nil
}

func (f *fakeBackend) CreateBilling(_ context.Context, appointmentID int64, amount appointments.Amount, status appointments.BillingStatus) (*appointments.Billing, error) {
	if err := f.record("create_billing"); err != nil {
		return nil, err
	}
	b := appointments.Billing{ID: f.id(), AppointmentID: appointmentID, Amount: amount, Status: status}
	f.mu.Lock()
	f.bills[appointmentID] = append(f.bills[appointmentID], b)
	f.mu.Unlock()
	return &b, nil
}

func (f *fakeBackend) ListAppointmentBillings(_ context.Context, appointmentID int64) ([]appointments.Billing, error) {
	if err := f.record("list_billings"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]appointments.Billing(nil), f.bills[appointmentID]...), nil
}

func (f *fakeBackend) UpdateBillingStatus(_ context.Context, billingID int64, status appointments.BillingStatus) error {
	return f.record("billing:" + string(status))
}

func (f *fakeBackend) nextVerify() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.verify) == 0 {
		return "paid"
	}
	i := f.verified
	if i >= len(f.verify) {
		i = len(f.verify) - 1
	}
	f.verified++
	return f.verify[i]
}

func (f *fakeBackend) VerifyBillingPayment(_ context.Context, billingID int64) (*clinicapi.PaymentStatus, error) {
	if err := f.record("verify_payment"); err != nil {
		return nil, err
	}
	return &clinicapi.PaymentStatus{Status: f.nextVerify(), BillingID: billingID}, nil
}

func (f *fakeBackend) VerifyTransaction(_ context.Context, transactionID string, billingID int64) (*clinicapi.PaymentStatus, error) {
	if err := f.record("verify_transaction:" + transactionID); err != nil {
		return nil, err
	}
	return &clinicapi.PaymentStatus{Status: f.nextVerify(), BillingID: billingID}, nil
}

func (f *fakeBackend) CreateCheckoutSession(_ context.Context, billingID int64) (*clinicapi.CheckoutSession, error) {
	if err := f.record("checkout"); err != nil {
		return nil, err
	}
	return &clinicapi.CheckoutSession{URL: fmt.Sprintf("https://pay.example/%d", billingID)}, nil
}

func (f *fakeBackend) InitiateMpesaPayment(_ context.Context, billingID int64, phone string) (*clinicapi.MpesaPush, error) {
	if err := f.record("mpesa:" + phone); err != nil {
		return nil, err
	}
	return &clinicapi.MpesaPush{CheckoutRequestID: "ws_CO_1"}, nil
}

type staticRole appointments.Role

func (r staticRole) Role() appointments.Role { return appointments.Role(r) }
