package clinicapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wolfman30/clinicdesk/internal/appointments"
)

type billingBody struct {
	Billing billingFields `json:"billing"`
}

type billingFields struct {
	Amount *appointments.Amount       `json:"amount,omitempty"`
	Status appointments.BillingStatus `json:"status"`
}

// ListAppointmentBillings returns the bills attached to one appointment.
// GET /appointments/{id}/billings
func (c *Client) ListAppointmentBillings(ctx context.Context, appointmentID int64) ([]appointments.Billing, error) {
	var out []appointments.Billing
	path := fmt.Sprintf("/appointments/%d/billings", appointmentID)
	if err := c.do(ctx, http.MethodGet, "/appointments/{id}/billings", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBilling creates the bill for an appointment.
// POST /appointments/{id}/billings {billing:{amount, status}}
func (c *Client) CreateBilling(ctx context.Context, appointmentID int64, amount appointments.Amount, status appointments.BillingStatus) (*appointments.Billing, error) {
	body := billingBody{Billing: billingFields{Amount: &amount, Status: status}}
	var out appointments.Billing
	path := fmt.Sprintf("/appointments/%d/billings", appointmentID)
	if err := c.do(ctx, http.MethodPost, "/appointments/{id}/billings", path, body, &out); err != nil {
		return nil, err
	}
	if out.AppointmentID == 0 {
		out.AppointmentID = appointmentID
	}
	if !out.Amount.Valid {
		out.Amount = amount
	}
	if out.Status == "" {
		out.Status = status
	}
	return &out, nil
}

// ListAllBillings returns every bill (admin view, appointments embedded).
// GET /admin/billings
func (c *Client) ListAllBillings(ctx context.Context) ([]appointments.Billing, error) {
	var out []appointments.Billing
	if err := c.do(ctx, http.MethodGet, "/admin/billings", "/admin/billings", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateBillingStatus writes a bill status.
// PATCH /billings/{id} {billing:{status}}
func (c *Client) UpdateBillingStatus(ctx context.Context, billingID int64, status appointments.BillingStatus) error {
	body := billingBody{Billing: billingFields{Status: status}}
	return c.do(ctx, http.MethodPatch, "/billings/{id}", fmt.Sprintf("/billings/%d", billingID), body, nil)
}

// ListPatientBillings collects bills across the session user's appointments.
// Appointments whose bills cannot be fetched are skipped; an unauthorized
// answer aborts the walk.
func (c *Client) ListPatientBillings(ctx context.Context) ([]appointments.Billing, error) {
	appts, err := c.ListAppointments(ctx)
	if err != nil {
		return nil, err
	}
	var out []appointments.Billing
	for _, appt := range appts {
		bills, err := c.ListAppointmentBillings(ctx, appt.ID)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) || ctx.Err() != nil {
				return nil, err
			}
			c.logger.Debug("clinicapi: skipping appointment billings", "appointment_id", appt.ID, "error", err)
			continue
		}
		out = append(out, bills...)
	}
	return out, nil
}
