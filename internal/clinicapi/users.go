package clinicapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wolfman30/clinicdesk/internal/appointments"
)

// Summary is the admin reporting snapshot.
type Summary struct {
	TotalDoctors        int64               `json:"total_doctors"`
	TotalPendingDoctors int64               `json:"total_pending_doctors"`
	TotalPatients       int64               `json:"total_patients"`
	TotalAdmins         int64               `json:"total_admins"`
	TotalAppointments   int64               `json:"total_appointments"`
	TotalMedicalRecords int64               `json:"total_medical_records"`
	TotalPrescriptions  int64               `json:"total_prescriptions"`
	TotalBillings       int64               `json:"total_billings"`
	TotalRevenue        appointments.Amount `json:"total_revenue"`
}

// ListUsers returns all accounts visible to the session.
// GET /users
func (c *Client) ListUsers(ctx context.Context) ([]appointments.User, error) {
	var out []appointments.User
	if err := c.do(ctx, http.MethodGet, "/users", "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Me fetches the signed-in profile.
// GET /me
func (c *Client) Me(ctx context.Context) (*appointments.User, error) {
	var out appointments.User
	if err := c.do(ctx, http.MethodGet, "/me", "/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshUser stores the /me profile on the session. Failures are logged and
// ignored; the token claims remain in effect.
func (c *Client) RefreshUser(ctx context.Context) {
	u, err := c.Me(ctx)
	if err != nil {
		c.logger.Debug("clinicapi: profile refresh failed", "error", err)
		return
	}
	c.session.SetUser(*u)
}

// AdminSummary returns global counts and revenue.
// GET /admin/summary
func (c *Client) AdminSummary(ctx context.Context) (*Summary, error) {
	var out Summary
	if err := c.do(ctx, http.MethodGet, "/admin/summary", "/admin/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPendingDoctors returns doctor signups awaiting approval.
// GET /admin/pending_doctors
func (c *Client) ListPendingDoctors(ctx context.Context) ([]appointments.User, error) {
	var out []appointments.User
	if err := c.do(ctx, http.MethodGet, "/admin/pending_doctors", "/admin/pending_doctors", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ApproveDoctor promotes a pending doctor.
// PATCH /admin/approve_doctor/{id}
func (c *Client) ApproveDoctor(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodPatch, "/admin/approve_doctor/{id}", fmt.Sprintf("/admin/approve_doctor/%d", userID), nil, nil)
}

// RejectDoctor declines a pending doctor.
// PATCH /admin/reject_doctor/{id}
func (c *Client) RejectDoctor(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodPatch, "/admin/reject_doctor/{id}", fmt.Sprintf("/admin/reject_doctor/%d", userID), nil, nil)
}
