package clinicapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wolfman30/clinicdesk/internal/appointments"
)

// BookingRequest is the patient booking form.
type BookingRequest struct {
	DoctorID int64  `json:"doctor_id"`
	Date     string `json:"date"` // YYYY-MM-DD
	Time     string `json:"time"` // HH:MM
	Notes    string `json:"notes,omitempty"`
}

type statusPatch struct {
	Appointment struct {
		Status appointments.Status `json:"status"`
	} `json:"appointment"`
}

type reschedulePatch struct {
	ScheduledAt string `json:"scheduled_at"`
}

// ListAppointments returns the appointments visible to the session user.
// GET /appointments
func (c *Client) ListAppointments(ctx context.Context) ([]appointments.Appointment, error) {
	var out []appointments.Appointment
	if err := c.do(ctx, http.MethodGet, "/appointments", "/appointments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAppointment fetches one appointment with its nested record and bill.
// GET /appointments/{id}
func (c *Client) GetAppointment(ctx context.Context, id int64) (*appointments.Appointment, error) {
	var out appointments.Appointment
	if err := c.do(ctx, http.MethodGet, "/appointments/{id}", fmt.Sprintf("/appointments/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BookAppointment creates a pending appointment.
// POST /appointments
func (c *Client) BookAppointment(ctx context.Context, req BookingRequest) (*appointments.Appointment, error) {
	var out appointments.Appointment
	if err := c.do(ctx, http.MethodPost, "/appointments", "/appointments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAppointmentStatus writes a new status. The returned appointment is nil
// when the backend answers with an empty body.
// PATCH /appointments/{id} {appointment:{status}}
func (c *Client) UpdateAppointmentStatus(ctx context.Context, id int64, status appointments.Status) (*appointments.Appointment, error) {
	var body statusPatch
	body.Appointment.Status = status
	var out appointments.Appointment
	if err := c.do(ctx, http.MethodPatch, "/appointments/{id}", fmt.Sprintf("/appointments/%d", id), body, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, nil
	}
	return &out, nil
}

// RescheduleAppointment moves the appointment to a new local time.
// PATCH /appointments/{id} {scheduled_at}
func (c *Client) RescheduleAppointment(ctx context.Context, id int64, at time.Time) error {
	body := reschedulePatch{ScheduledAt: at.Format("2006-01-02T15:04:05")}
	return c.do(ctx, http.MethodPatch, "/appointments/{id}", fmt.Sprintf("/appointments/%d", id), body, nil)
}

// DeleteAppointment removes a pending appointment.
// DELETE /appointments/{id}
func (c *Client) DeleteAppointment(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/appointments/{id}", fmt.Sprintf("/appointments/%d", id), nil, nil)
}
