package aggregate

import (
	"sort"

	"github.com/wolfman30/clinicdesk/internal/appointments"
)

// DefaultPageSize matches the report and user-management tables.
const DefaultPageSize = 4

// FilterAppointments keeps appointments in status. An empty status keeps all.
func FilterAppointments(appts []appointments.Appointment, status appointments.Status) []appointments.Appointment {
	out := make([]appointments.Appointment, 0, len(appts))
	for _, a := range appts {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	return out
}

var doctorStatusOrder = map[appointments.Status]int{
	appointments.StatusConfirmed:  0,
	appointments.StatusPending:    1,
	appointments.StatusInProgress: 2,
	appointments.StatusCompleted:  3,
	appointments.StatusCancelled:  4,
}

// SortForDoctor orders appointments confirmed first, then pending, then the
// rest. The input is not modified.
func SortForDoctor(appts []appointments.Appointment) []appointments.Appointment {
	out := append([]appointments.Appointment(nil), appts...)
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].Status) < rank(out[j].Status)
	})
	return out
}

func rank(s appointments.Status) int {
	if r, ok := doctorStatusOrder[s]; ok {
		return r
	}
	return len(doctorStatusOrder)
}

// Page is one slice of a paginated list.
type Page[T any] struct {
	Items      []T
	Page       int
	PerPage    int
	TotalPages int
	TotalItems int
}

// HasNext reports whether a later page exists.
func (p Page[T]) HasNext() bool { return p.Page < p.TotalPages }

// HasPrev reports whether an earlier page exists.
func (p Page[T]) HasPrev() bool { return p.Page > 1 }

// Paginate returns the 1-based page of items. page is clamped to
// [1, TotalPages] and TotalPages is at least 1. perPage <= 0 uses DefaultPageSize.
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	total := (len(items) + perPage - 1) / perPage
	if total < 1 {
		total = 1
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	return Page[T]{
		Items:      items[start:end],
		Page:       page,
		PerPage:    perPage,
		TotalPages: total,
		TotalItems: len(items),
	}
}

// Overview is the patient dashboard summary.
type Overview struct {
	UpcomingAppointments int                 `json:"upcoming_appointments"`
	MedicalRecords       int                 `json:"medical_records"`
	PendingBills         int                 `json:"pending_bills"`
	OutstandingBalance   appointments.Amount `json:"outstanding_balance"`
}

// PatientOverview counts non-completed appointments, records and unpaid bills
// attached to the appointments.
func PatientOverview(appts []appointments.Appointment, records []appointments.MedicalRecord) Overview {
	ov := Overview{MedicalRecords: len(records), OutstandingBalance: appointments.Cents(0)}
	for i := range appts {
		a := &appts[i]
		if a.Status != appointments.StatusCompleted {
			ov.UpcomingAppointments++
		}
		if a.HasBilling() && a.Billing.Status == appointments.BillingUnpaid {
			ov.PendingBills++
			ov.OutstandingBalance = ov.OutstandingBalance.Add(a.Billing.Amount)
		}
	}
	return ov
}
