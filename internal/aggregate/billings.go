package aggregate

import (
	"sort"
	"strings"

	"github.com/wolfman30/clinicdesk/internal/appointments"
)

// Billing status filters.
const (
	FilterAll    = "all"
	FilterPaid   = "paid"
	FilterUnpaid = "unpaid"
)

// FilterBillings keeps bills matching statusFilter (all, paid, unpaid; empty
// means all) whose patient name, patient email or appointment id contains
// search, compared case-insensitively.
func FilterBillings(billings []appointments.Billing, statusFilter, search string) []appointments.Billing {
	statusFilter = strings.ToLower(strings.TrimSpace(statusFilter))
	needle := strings.ToLower(search)
	out := make([]appointments.Billing, 0, len(billings))
	for _, b := range billings {
		switch statusFilter {
		case "", FilterAll:
		case FilterPaid, FilterUnpaid:
			if string(b.Status) != statusFilter {
				continue
			}
		default:
			continue
		}
		if needle != "" && !matchesSearch(b, needle) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func matchesSearch(b appointments.Billing, needle string) bool {
	return strings.Contains(strings.ToLower(b.PatientName()), needle) ||
		strings.Contains(strings.ToLower(b.PatientEmail()), needle) ||
		strings.Contains(b.AppointmentRef(), needle)
}

// SumAmounts totals bill amounts. Invalid amounts count as zero.
func SumAmounts(billings []appointments.Billing) appointments.Amount {
	total := appointments.Cents(0)
	for _, b := range billings {
		total = total.Add(b.Amount)
	}
	return total
}

// RecentPayments returns up to n paid bills, most recently updated first.
func RecentPayments(billings []appointments.Billing, n int) []appointments.Billing {
	if n <= 0 {
		return nil
	}
	paid := FilterBillings(billings, FilterPaid, "")
	sort.SliceStable(paid, func(i, j int) bool {
		return paid[i].UpdatedAt.After(paid[j].UpdatedAt)
	})
	if len(paid) > n {
		paid = paid[:n]
	}
	return paid
}

// ActionableBillings keeps bills that can still be paid.
func ActionableBillings(billings []appointments.Billing) []appointments.Billing {
	out := make([]appointments.Billing, 0, len(billings))
	for _, b := range billings {
		if b.Status.CanMarkPaid() {
			out = append(out, b)
		}
	}
	return out
}
