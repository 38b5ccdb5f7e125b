package aggregate

import (
	"strings"

	"github.com/wolfman30/clinicdesk/internal/appointments"
)

// User management tabs.
const (
	TabDoctors  = "doctors"
	TabPatients = "patients"
	TabAdmins   = "admins"
)

// FilterUsersByRole keeps users shown on tab. Doctors includes pending
// doctors; an unknown or empty tab keeps everyone.
func FilterUsersByRole(users []appointments.User, tab string) []appointments.User {
	tab = strings.ToLower(strings.TrimSpace(tab))
	out := make([]appointments.User, 0, len(users))
	for _, u := range users {
		keep := true
		switch tab {
		case TabDoctors:
			keep = u.Role == appointments.RoleDoctor || u.Role == appointments.RolePendingDoctor
		case TabPatients:
			keep = u.Role == appointments.RolePatient
		case TabAdmins:
			keep = u.Role == appointments.RoleAdmin
		}
		if keep {
			out = append(out, u)
		}
	}
	return out
}
