package appointments

import (
	"strconv"
	"time"
)

// Role is the account role carried in the session token.
type Role string

const (
	RolePatient       Role = "patient"
	RoleDoctor        Role = "doctor"
	RolePendingDoctor Role = "pending_doctor"
	RoleAdmin         Role = "admin"
)

// Person is the embedded patient/doctor reference the backend nests in payloads.
type Person struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

// User is a full account as returned by /users and /me.
type User struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            Role      `json:"role"`
	Phone           string    `json:"phone,omitempty"`
	Specialization  string    `json:"specialization,omitempty"`
	LicenseNumber   string    `json:"license_number,omitempty"`
	Workplace       string    `json:"workplace,omitempty"`
	ConsultationFee Amount    `json:"consultation_fee"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// Appointment is a booked visit. MedicalRecord and Billing are nil until created.
type Appointment struct {
	ID            int64          `json:"id"`
	PatientID     int64          `json:"patient_id"`
	DoctorID      int64          `json:"doctor_id"`
	Patient       *Person        `json:"patient,omitempty"`
	Doctor        *Person        `json:"doctor,omitempty"`
	ScheduledAt   time.Time      `json:"scheduled_at"`
	Status        Status         `json:"status"`
	Notes         string         `json:"notes,omitempty"`
	MedicalRecord *MedicalRecord `json:"medical_record,omitempty"`
	Billing       *Billing       `json:"billing,omitempty"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at,omitempty"`
}

// HasRecord reports whether a medical record is linked.
func (a *Appointment) HasRecord() bool {
	return a != nil && a.MedicalRecord != nil
}

// HasPrescriptions reports whether the linked record carries at least one prescription.
func (a *Appointment) HasPrescriptions() bool {
	return a.HasRecord() && len(a.MedicalRecord.Prescriptions) > 0
}

// HasBilling reports whether a bill was created for the appointment.
func (a *Appointment) HasBilling() bool {
	return a != nil && a.Billing != nil
}

// PatientName returns the nested patient name or "N/A".
func (a *Appointment) PatientName() string {
	if a == nil || a.Patient == nil || a.Patient.Name == "" {
		return "N/A"
	}
	return a.Patient.Name
}

// ResolvedPatientID prefers the nested patient reference over the flat id.
func (a *Appointment) ResolvedPatientID() int64 {
	if a.Patient != nil && a.Patient.ID != 0 {
		return a.Patient.ID
	}
	return a.PatientID
}

// MedicalRecord is the clinical outcome of one appointment.
type MedicalRecord struct {
	ID            int64          `json:"id"`
	PatientID     int64          `json:"patient_id"`
	AppointmentID int64          `json:"appointment_id"`
	Patient       *Person        `json:"patient,omitempty"`
	Diagnosis     string         `json:"diagnosis"`
	Treatment     string         `json:"treatment"`
	Notes         string         `json:"notes,omitempty"`
	Prescriptions []Prescription `json:"prescriptions"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
}

// ResolvedPatientID prefers the nested patient reference over the flat id.
func (r MedicalRecord) ResolvedPatientID() int64 {
	if r.Patient != nil && r.Patient.ID != 0 {
		return r.Patient.ID
	}
	return r.PatientID
}

// Prescription is one medication line on a record.
type Prescription struct {
	ID              int64     `json:"id"`
	MedicalRecordID int64     `json:"medical_record_id"`
	MedicationName  string    `json:"medication_name"`
	Dosage          string    `json:"dosage"`
	Instructions    string    `json:"instructions,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// Billing is the bill for one appointment.
type Billing struct {
	ID              int64         `json:"id"`
	AppointmentID   int64         `json:"appointment_id"`
	Amount          Amount        `json:"amount"`
	Status          BillingStatus `json:"status"`
	SessionID       string        `json:"stripe_session_id,omitempty"`
	PaymentIntentID string        `json:"payment_intent_id,omitempty"`
	TransactionID   string        `json:"transaction_id,omitempty"`
	Appointment     *Appointment  `json:"appointment,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsPaid reports whether the bill is settled.
func (b Billing) IsPaid() bool {
	return b.Status == BillingPaid
}

// PatientName returns the nested patient name when the backend embedded the appointment.
func (b Billing) PatientName() string {
	if b.Appointment == nil || b.Appointment.Patient == nil {
		return ""
	}
	return b.Appointment.Patient.Name
}

// PatientEmail returns the nested patient email when present.
func (b Billing) PatientEmail() string {
	if b.Appointment == nil || b.Appointment.Patient == nil {
		return ""
	}
	return b.Appointment.Patient.Email
}

// AppointmentRef renders the appointment id for search and display.
func (b Billing) AppointmentRef() string {
	return strconv.FormatInt(b.AppointmentID, 10)
}
