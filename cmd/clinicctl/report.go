package main

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/clinicdesk/internal/aggregate"
	"github.com/wolfman30/clinicdesk/internal/appointments"
	"github.com/wolfman30/clinicdesk/internal/clinicapi"
)

const recentPaymentCount = 5

func reportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Dashboard summaries",
	}

	admin := &cobra.Command{
		Use:   "admin",
		Short: "Clinic totals and the latest payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			summary, err := rt.Client.AdminSummary(cmd.Context())
			if err != nil {
				return err
			}
			bills, err := rt.Client.ListAllBillings(cmd.Context())
			if err != nil {
				return err
			}
			out := struct {
				Summary *clinicapi.Summary     `json:"summary"`
				Recent  []appointments.Billing `json:"recent_payments"`
				Unpaid  appointments.Amount    `json:"unpaid_total"`
			}{
				Summary: summary,
				Recent:  aggregate.RecentPayments(bills, recentPaymentCount),
				Unpaid:  aggregate.SumAmounts(aggregate.FilterBillings(bills, aggregate.FilterUnpaid, "")),
			}
			currency := rt.Config.DefaultCurrency
			return c.emit(out, func(w *tabwriter.Writer) {
				row(w, "Doctors", summary.TotalDoctors)
				row(w, "Pending doctors", summary.TotalPendingDoctors)
				row(w, "Patients", summary.TotalPatients)
				row(w, "Admins", summary.TotalAdmins)
				row(w, "Appointments", summary.TotalAppointments)
				row(w, "Medical records", summary.TotalMedicalRecords)
				row(w, "Prescriptions", summary.TotalPrescriptions)
				row(w, "Bills", summary.TotalBillings)
				row(w, "Revenue", summary.TotalRevenue.Format(currency))
				row(w, "Unpaid", out.Unpaid.Format(currency))
				row(w, "")
				billingRows(w, out.Recent, currency)
			})
		},
	}

	patient := &cobra.Command{
		Use:   "patient",
		Short: "Upcoming visits, records and outstanding balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			appts, err := rt.Client.ListAppointments(cmd.Context())
			if err != nil {
				return err
			}
			records, err := rt.Client.ListMedicalRecords(cmd.Context(), rt.Session.UserID())
			if err != nil {
				return err
			}
			ov := aggregate.PatientOverview(appts, records)
			return c.emit(ov, func(w *tabwriter.Writer) {
				row(w, "Upcoming appointments", ov.UpcomingAppointments)
				row(w, "Medical records", ov.MedicalRecords)
				row(w, "Pending bills", ov.PendingBills)
				row(w, "Outstanding balance", ov.OutstandingBalance.Format(rt.Config.DefaultCurrency))
			})
		},
	}

	cmd.AddCommand(admin, patient)
	return cmd
}
