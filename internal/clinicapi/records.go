package clinicapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wolfman30/clinicdesk/internal/appointments"
)

// MedicalRecordInput is the record-entry form.
type MedicalRecordInput struct {
	PatientID     int64  `json:"patient_id"`
	AppointmentID int64  `json:"appointment_id"`
	Diagnosis     string `json:"diagnosis"`
	Treatment     string `json:"treatment"`
	Notes         string `json:"notes"`
}

// PrescriptionInput is one prescription line.
type PrescriptionInput struct {
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Instructions   string `json:"instructions"`
}

// ListMedicalRecords returns records, optionally for one patient (patientID > 0).
// GET /medical_records[?patient_id=]
func (c *Client) ListMedicalRecords(ctx context.Context, patientID int64) ([]appointments.MedicalRecord, error) {
	path := "/medical_records"
	if patientID > 0 {
		path += "?" + url.Values{"patient_id": {strconv.FormatInt(patientID, 10)}}.Encode()
	}
	var out []appointments.MedicalRecord
	if err := c.do(ctx, http.MethodGet, "/medical_records", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMedicalRecord records the visit outcome.
// POST /medical_records {medical_record:{...}}
func (c *Client) CreateMedicalRecord(ctx context.Context, in MedicalRecordInput) (*appointments.MedicalRecord, error) {
	body := map[string]MedicalRecordInput{"medical_record": in}
	var out appointments.MedicalRecord
	if err := c.do(ctx, http.MethodPost, "/medical_records", "/medical_records", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPrescriptions returns the prescriptions on a record.
// GET /medical_records/{id}/prescriptions
func (c *Client) ListPrescriptions(ctx context.Context, recordID int64) ([]appointments.Prescription, error) {
	var out []appointments.Prescription
	path := fmt.Sprintf("/medical_records/%d/prescriptions", recordID)
	if err := c.do(ctx, http.MethodGet, "/medical_records/{id}/prescriptions", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePrescription appends a prescription to a record.
// POST /medical_records/{id}/prescriptions {medication_name, dosage, instructions}
func (c *Client) CreatePrescription(ctx context.Context, recordID int64, in PrescriptionInput) (*appointments.Prescription, error) {
	var out appointments.Prescription
	path := fmt.Sprintf("/medical_records/%d/prescriptions", recordID)
	if err := c.do(ctx, http.MethodPost, "/medical_records/{id}/prescriptions", path, in, &out); err != nil {
		return nil, err
	}
	if out.MedicalRecordID == 0 {
		out.MedicalRecordID = recordID
	}
	return &out, nil
}
