package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/clinicdesk/internal/aggregate"
	"github.com/wolfman30/clinicdesk/internal/app/bootstrap"
	"github.com/wolfman30/clinicdesk/internal/appointments"
	"github.com/wolfman30/clinicdesk/internal/clinicapi"
	"github.com/wolfman30/clinicdesk/internal/workflow"
)

func appointmentsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"appts"},
		Short:   "List and move appointments through their lifecycle",
	}
	cmd.AddCommand(
		appointmentsListCmd(c),
		appointmentsShowCmd(c),
		appointmentTransitionCmd(c, "confirm", "Confirm a pending appointment", appointments.StatusConfirmed),
		appointmentTransitionCmd(c, "start", "Start a confirmed visit", appointments.StatusInProgress),
		appointmentsCancelCmd(c),
		appointmentsRescheduleCmd(c),
		appointmentsBookCmd(c),
	)
	return cmd
}

func appointmentsListCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments visible to the session user",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			statusFlag, _ := cmd.Flags().GetString("status")
			doctorOrder, _ := cmd.Flags().GetBool("doctor-order")
			page, _ := cmd.Flags().GetInt("page")

			var status appointments.Status
			if statusFlag != "" {
				if status, err = appointments.ParseStatus(statusFlag); err != nil {
					return err
				}
			}
			appts, err := rt.Client.ListAppointments(cmd.Context())
			if err != nil {
				return err
			}
			appts = aggregate.FilterAppointments(appts, status)
			if doctorOrder {
				appts = aggregate.SortForDoctor(appts)
			}
			if page > 0 {
				p := aggregate.Paginate(appts, page, rt.Config.PageSize)
				return c.emit(p, func(w *tabwriter.Writer) {
					appointmentRows(w, p.Items)
					fmt.Fprintf(w, "\npage %d of %d (%d appointments)\n", p.Page, p.TotalPages, p.TotalItems)
				})
			}
			return c.emit(appts, func(w *tabwriter.Writer) { appointmentRows(w, appts) })
		},
	}
	cmd.Flags().String("status", "", "only show appointments in this status")
	cmd.Flags().Bool("doctor-order", false, "order confirmed, then pending, then the rest")
	cmd.Flags().Int("page", 0, "paginate and show this 1-based page")
	return cmd
}

func appointmentsShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one appointment with its record and bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, appt, err := c.loadAppointment(cmd, args[0])
			if err != nil {
				return err
			}
			return c.emit(appt, func(w *tabwriter.Writer) {
				row(w, "ID", appt.ID)
				row(w, "Patient", appt.PatientName())
				row(w, "Doctor", doctorName(appt))
				row(w, "Scheduled", formatTime(appt.ScheduledAt))
				row(w, "Status", appt.Status.Label())
				row(w, "Next", strings.Join(statusNames(appointments.AllowedTransitions(appt.Status)), ", "))
				if appt.Notes != "" {
					row(w, "Notes", appt.Notes)
				}
				if rec := appt.MedicalRecord; rec != nil {
					row(w, "Diagnosis", rec.Diagnosis)
					row(w, "Treatment", rec.Treatment)
					for _, rx := range rec.Prescriptions {
						row(w, "Prescription", fmt.Sprintf("%s %s %s", rx.MedicationName, rx.Dosage, rx.Instructions))
					}
				}
				if b := appt.Billing; b != nil {
					row(w, "Bill", fmt.Sprintf("#%d %s %s", b.ID, b.Amount.Format(rt.Config.DefaultCurrency), b.Status))
				}
				row(w, "Can finish", yesNo(workflow.CanFinishAndBill(appt)))
			})
		},
	}
}

func appointmentTransitionCmd(c *cli, use, short string, target appointments.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, appt, err := c.loadAppointment(cmd, args[0])
			if err != nil {
				return err
			}
			updated, err := rt.Workflow.RequestTransition(cmd.Context(), appt, target)
			if err != nil {
				return err
			}
			c.printf("appointment %d is now %s\n", updated.ID, updated.Status.Label())
			return c.emitQuiet(updated)
		},
	}
}

func appointmentsCancelCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a pending appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, appt, err := c.loadAppointment(cmd, args[0])
			if err != nil {
				return err
			}
			mode := workflow.CancelByStatus
			if del, _ := cmd.Flags().GetBool("delete"); del {
				mode = workflow.CancelByDelete
			}
			updated, err := rt.Workflow.Cancel(cmd.Context(), appt, mode)
			if err != nil {
				return err
			}
			if updated == nil {
				c.printf("appointment %d deleted\n", appt.ID)
				return nil
			}
			c.printf("appointment %d is now %s\n", updated.ID, updated.Status.Label())
			return c.emitQuiet(updated)
		},
	}
	cmd.Flags().Bool("delete", false, "delete the appointment instead of marking it cancelled")
	return cmd
}

var rescheduleLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02T15:04:05"}

func appointmentsRescheduleCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reschedule ID",
		Short: "Move an appointment to a new date and time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("at")
			at, err := parseLocalTime(raw)
			if err != nil {
				return err
			}
			rt, appt, err := c.loadAppointment(cmd, args[0])
			if err != nil {
				return err
			}
			updated, err := rt.Workflow.Reschedule(cmd.Context(), appt, at)
			if err != nil {
				return err
			}
			c.printf("appointment %d rescheduled to %s\n", updated.ID, formatTime(updated.ScheduledAt))
			return c.emitQuiet(updated)
		},
	}
	cmd.Flags().String("at", "", "new time, YYYY-MM-DDTHH:MM in local time")
	return cmd
}

func parseLocalTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("--at is required")
	}
	for _, layout := range rescheduleLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --at %q: want YYYY-MM-DDTHH:MM", raw)
}

func appointmentsBookCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a new appointment with a doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			doctorID, _ := cmd.Flags().GetInt64("doctor")
			date, _ := cmd.Flags().GetString("date")
			clock, _ := cmd.Flags().GetString("time")
			notes, _ := cmd.Flags().GetString("notes")

			appt, err := rt.Workflow.Book(cmd.Context(), clinicapi.BookingRequest{
				DoctorID: doctorID,
				Date:     date,
				Time:     clock,
				Notes:    notes,
			})
			if err != nil {
				return err
			}
			c.printf("booked appointment %d (%s)\n", appt.ID, appt.Status.Label())
			return c.emitQuiet(appt)
		},
	}
	cmd.Flags().Int64("doctor", 0, "doctor user id")
	cmd.Flags().String("date", "", "date, YYYY-MM-DD")
	cmd.Flags().String("time", "", "time, HH:MM")
	cmd.Flags().String("notes", "", "reason for the visit")
	return cmd
}

// loadAppointment builds the runtime and fetches the appointment named by arg.
func (c *cli) loadAppointment(cmd *cobra.Command, arg string) (*bootstrap.Runtime, *appointments.Appointment, error) {
	id, err := parseID(arg, "appointment")
	if err != nil {
		return nil, nil, err
	}
	rt, err := c.runtime(cmd)
	if err != nil {
		return nil, nil, err
	}
	appt, err := rt.Client.GetAppointment(cmd.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	if appt.ID == 0 {
		appt.ID = id
	}
	return rt, appt, nil
}

// emitQuiet prints v only in --json mode.
func (c *cli) emitQuiet(v any) error {
	if !c.jsonOut {
		return nil
	}
	return c.emit(v, nil)
}

func statusNames(ss []appointments.Status) []string {
	if len(ss) == 0 {
		return []string{"none"}
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
