package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wolfman30/clinicdesk/internal/appointments"
)

// emit prints v as JSON when --json is set, otherwise runs table.
func (c *cli) emit(v any, table func(w *tabwriter.Writer)) error {
	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	table(w)
	return w.Flush()
}

func (c *cli) printf(format string, args ...any) {
	if c.jsonOut {
		return
	}
	fmt.Fprintf(c.out, format, args...)
}

func row(w *tabwriter.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprint(col)
	}
	fmt.Fprintln(w, strings.Join(parts, "\t"))
}

func appointmentRows(w *tabwriter.Writer, appts []appointments.Appointment) {
	row(w, "ID", "PATIENT", "DOCTOR", "SCHEDULED", "STATUS", "RECORD", "BILL")
	for i := range appts {
		a := &appts[i]
		row(w, a.ID, a.PatientName(), doctorName(a), formatTime(a.ScheduledAt), a.Status.Label(), yesNo(a.HasRecord()), billLabel(a.Billing))
	}
}

func billingRows(w *tabwriter.Writer, bs []appointments.Billing, currency string) {
	row(w, "ID", "APPOINTMENT", "PATIENT", "AMOUNT", "STATUS", "UPDATED")
	for _, b := range bs {
		row(w, b.ID, b.AppointmentRef(), orNA(b.PatientName()), b.Amount.Format(currency), b.Status, formatTime(b.UpdatedAt))
	}
}

func doctorName(a *appointments.Appointment) string {
	if a.Doctor == nil {
		return "N/A"
	}
	return orNA(a.Doctor.Name)
}

func billLabel(b *appointments.Billing) string {
	if b == nil {
		return "-"
	}
	return fmt.Sprintf("#%d %s", b.ID, b.Status)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}
