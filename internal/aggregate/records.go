// Package aggregate holds the pure grouping, filtering and summary helpers
// behind the dashboards. Nothing here performs I/O.
package aggregate

import (
	"github.com/wolfman30/clinicdesk/internal/appointments"
)

// PatientGroup is one patient's records in input order.
type PatientGroup struct {
	PatientID int64
	Patient   *appointments.Person
	Records   []appointments.MedicalRecord
}

// GroupByPatient buckets records by patient id. The first record seen for a
// patient supplies the embedded patient reference.
func GroupByPatient(records []appointments.MedicalRecord) map[int64]PatientGroup {
	out := make(map[int64]PatientGroup)
	for _, g := range PatientGroups(records) {
		out[g.PatientID] = g
	}
	return out
}

// PatientGroups is GroupByPatient with groups ordered by first appearance.
func PatientGroups(records []appointments.MedicalRecord) []PatientGroup {
	index := make(map[int64]int)
	var groups []PatientGroup
	for _, rec := range records {
		pid := rec.ResolvedPatientID()
		i, ok := index[pid]
		if !ok {
			i = len(groups)
			index[pid] = i
			groups = append(groups, PatientGroup{PatientID: pid, Patient: rec.Patient})
		}
		if groups[i].Patient == nil && rec.Patient != nil {
			groups[i].Patient = rec.Patient
		}
		groups[i].Records = append(groups[i].Records, rec)
	}
	return groups
}

// Flatten concatenates grouped records back into one list, group by group.
func Flatten(groups []PatientGroup) []appointments.MedicalRecord {
	var out []appointments.MedicalRecord
	for _, g := range groups {
		out = append(out, g.Records...)
	}
	return out
}
