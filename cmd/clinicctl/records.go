package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/clinicdesk/internal/aggregate"
	"github.com/wolfman30/clinicdesk/internal/clinicapi"
	"github.com/wolfman30/clinicdesk/internal/workflow"
)

func recordsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Medical records",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List medical records grouped by patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			patientID, _ := cmd.Flags().GetInt64("patient")
			records, err := rt.Client.ListMedicalRecords(cmd.Context(), patientID)
			if err != nil {
				return err
			}
			groups := aggregate.PatientGroups(records)
			return c.emit(groups, func(w *tabwriter.Writer) {
				for _, g := range groups {
					name := "N/A"
					if g.Patient != nil {
						name = orNA(g.Patient.Name)
					}
					fmt.Fprintf(w, "%s (patient %d)\n", name, g.PatientID)
					row(w, "  RECORD", "APPOINTMENT", "DIAGNOSIS", "TREATMENT", "PRESCRIPTIONS")
					for _, r := range g.Records {
						row(w, fmt.Sprintf("  %d", r.ID), r.AppointmentID, r.Diagnosis, r.Treatment, len(r.Prescriptions))
					}
				}
			})
		},
	}
	list.Flags().Int64("patient", 0, "only this patient's records")

	create := &cobra.Command{
		Use:   "create APPOINTMENT_ID",
		Short: "Record the outcome of an in-progress visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, appt, err := c.loadAppointment(cmd, args[0])
			if err != nil {
				return err
			}
			diagnosis, _ := cmd.Flags().GetString("diagnosis")
			treatment, _ := cmd.Flags().GetString("treatment")
			notes, _ := cmd.Flags().GetString("notes")
			rec, err := rt.Workflow.CreateMedicalRecord(cmd.Context(), appt, workflow.RecordInput{
				Diagnosis: diagnosis,
				Treatment: treatment,
				Notes:     notes,
			})
			if err != nil {
				return err
			}
			c.printf("medical record %d created for appointment %d\n", rec.ID, rec.AppointmentID)
			return c.emitQuiet(rec)
		},
	}
	create.Flags().String("diagnosis", "", "diagnosis (required)")
	create.Flags().String("treatment", "", "treatment (required)")
	create.Flags().String("notes", "", "additional notes")

	cmd.AddCommand(list, create)
	return cmd
}

func prescriptionsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prescriptions",
		Aliases: []string{"rx"},
		Short:   "Prescriptions on a visit's medical record",
	}

	add := &cobra.Command{
		Use:   "add APPOINTMENT_ID",
		Short: "Add a prescription to the appointment's medical record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, appt, err := c.loadAppointment(cmd, args[0])
			if err != nil {
				return err
			}
			if !appt.HasRecord() {
				return fmt.Errorf("appointment %d has no medical record yet", appt.ID)
			}
			record := *appt.MedicalRecord
			if record.AppointmentID == 0 {
				record.AppointmentID = appt.ID
			}
			medication, _ := cmd.Flags().GetString("medication")
			dosage, _ := cmd.Flags().GetString("dosage")
			instructions, _ := cmd.Flags().GetString("instructions")
			list, err := rt.Workflow.AddPrescription(cmd.Context(), &record, clinicapi.PrescriptionInput{
				MedicationName: medication,
				Dosage:         dosage,
				Instructions:   instructions,
			})
			if err != nil {
				return err
			}
			c.printf("record %d now has %d prescription(s)\n", record.ID, len(list))
			return c.emitQuiet(list)
		},
	}
	add.Flags().String("medication", "", "medication name (required)")
	add.Flags().String("dosage", "", "dosage (required)")
	add.Flags().String("instructions", "", "instructions")

	cmd.AddCommand(add)
	return cmd
}
