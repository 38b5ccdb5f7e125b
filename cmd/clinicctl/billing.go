package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/clinicdesk/internal/aggregate"
	"github.com/wolfman30/clinicdesk/internal/app/bootstrap"
	"github.com/wolfman30/clinicdesk/internal/appointments"
	"github.com/wolfman30/clinicdesk/internal/payments"
)

func finishBillCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finish-bill APPOINTMENT_ID",
		Short: "Create the bill and complete an in-progress visit",
		Long: "Creates the bill first and completes the appointment only when the bill exists.\n" +
			"If completion fails the bill is kept and `clinicctl resume` finishes the job.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, appt, err := c.loadAppointment(cmd, args[0])
			if err != nil {
				return err
			}
			amount, err := c.billAmount(cmd, rt)
			if err != nil {
				return err
			}
			bill, err := rt.Billing.FinishAndBill(cmd.Context(), appt, amount)
			var partial *appointments.PartialCompletionError
			if errors.As(err, &partial) {
				c.printf("bill %d created but appointment %d was not completed; run `clinicctl resume %d`\n",
					partial.Billing.ID, appt.ID, appt.ID)
				return err
			}
			if err != nil {
				return err
			}
			c.printf("appointment %d completed, bill %d for %s\n", appt.ID, bill.ID, bill.Amount.Format(rt.Config.DefaultCurrency))
			return c.emitQuiet(bill)
		},
	}
	cmd.Flags().String("amount", "", "bill amount; defaults to your consultation fee")
	return cmd
}

// billAmount reads --amount or falls back to the session user's consultation fee.
func (c *cli) billAmount(cmd *cobra.Command, rt *bootstrap.Runtime) (appointments.Amount, error) {
	raw, _ := cmd.Flags().GetString("amount")
	if strings.TrimSpace(raw) != "" {
		amount, err := appointments.ParseAmount(raw)
		if err != nil {
			return appointments.Amount{}, fmt.Errorf("invalid --amount: %w", err)
		}
		return amount, nil
	}
	me, err := rt.Client.Me(cmd.Context())
	if err != nil {
		return appointments.Amount{}, fmt.Errorf("look up consultation fee: %w", err)
	}
	if !me.ConsultationFee.IsPositive() {
		return appointments.Amount{}, fmt.Errorf("no consultation fee on your profile; pass --amount")
	}
	return me.ConsultationFee, nil
}

func resumeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "resume APPOINTMENT_ID",
		Short: "Complete an appointment whose bill already exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, appt, err := c.loadAppointment(cmd, args[0])
			if err != nil {
				return err
			}
			updated, err := rt.Billing.ResumeCompletion(cmd.Context(), appt)
			if err != nil {
				return err
			}
			c.printf("appointment %d is now %s\n", updated.ID, updated.Status.Label())
			return c.emitQuiet(updated)
		},
	}
}

func reconcileCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Find in-progress visits that were billed but not completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			appts, err := rt.Client.ListAppointments(cmd.Context())
			if err != nil {
				return err
			}
			found, err := rt.Billing.Reconcile(cmd.Context(), appts)
			if err != nil {
				return err
			}
			if markers, _ := cmd.Flags().GetBool("markers"); markers {
				stored, err := rt.Billing.PendingCompletions(cmd.Context())
				if err != nil {
					return err
				}
				return c.emit(stored, func(w *tabwriter.Writer) {
					if len(stored) == 0 {
						fmt.Fprintln(w, "no stored markers")
						return
					}
					row(w, "APPOINTMENT", "BILL", "RECORDED", "LAST ERROR")
					for _, m := range stored {
						row(w, m.AppointmentID, m.BillingID, formatTime(m.RecordedAt), orNA(m.LastError))
					}
				})
			}
			if fix, _ := cmd.Flags().GetBool("resume"); fix {
				var errs []error
				for i := range found {
					appt := found[i].Appointment
					if _, err := rt.Billing.ResumeCompletion(cmd.Context(), &appt); err != nil {
						errs = append(errs, fmt.Errorf("appointment %d: %w", appt.ID, err))
						continue
					}
					c.printf("appointment %d completed\n", appt.ID)
				}
				return errors.Join(errs...)
			}
			return c.emit(found, func(w *tabwriter.Writer) {
				if len(found) == 0 {
					fmt.Fprintln(w, "nothing to reconcile")
					return
				}
				row(w, "APPOINTMENT", "PATIENT", "BILL", "MARKER")
				for _, r := range found {
					row(w, r.Appointment.ID, r.Appointment.PatientName(), r.BillingID, yesNo(r.FromMarker))
				}
			})
		},
	}
	cmd.Flags().Bool("resume", false, "complete every appointment found")
	cmd.Flags().Bool("markers", false, "list stored pending-completion markers after dropping stale ones")
	return cmd
}

func billingCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "billing",
		Aliases: []string{"bills"},
		Short:   "Bills and payments",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List bills (all bills for admins, your own with --mine)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			mine, _ := cmd.Flags().GetBool("mine")
			status, _ := cmd.Flags().GetString("status")
			search, _ := cmd.Flags().GetString("search")

			var bills []appointments.Billing
			if mine {
				bills, err = rt.Client.ListPatientBillings(cmd.Context())
			} else {
				bills, err = rt.Client.ListAllBillings(cmd.Context())
			}
			if err != nil {
				return err
			}
			bills = aggregate.FilterBillings(bills, status, search)
			currency := rt.Config.DefaultCurrency
			return c.emit(bills, func(w *tabwriter.Writer) {
				billingRows(w, bills, currency)
				fmt.Fprintf(w, "\ntotal %s across %d bill(s)\n", aggregate.SumAmounts(bills).Format(currency), len(bills))
			})
		},
	}
	list.Flags().Bool("mine", false, "only the session patient's bills")
	list.Flags().String("status", aggregate.FilterAll, "all, paid or unpaid")
	list.Flags().String("search", "", "match patient name, email or appointment id")

	confirmCash := &cobra.Command{
		Use:   "confirm-cash BILLING_ID",
		Short: "Mark a bill paid in cash (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "billing")
			if err != nil {
				return err
			}
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			if err := rt.Billing.ConfirmCashPayment(cmd.Context(), id); err != nil {
				return err
			}
			c.printf("bill %d marked paid\n", id)
			return nil
		},
	}

	verify := &cobra.Command{
		Use:   "verify BILLING_ID",
		Short: "Ask the backend whether a provider payment went through",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "billing")
			if err != nil {
				return err
			}
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			ref, _ := cmd.Flags().GetString("transaction")
			status, err := rt.Billing.VerifyProviderPayment(cmd.Context(), id, ref)
			if err != nil {
				return err
			}
			c.printf("bill %d payment status: %s\n", id, status.Status)
			return c.emitQuiet(status)
		},
	}
	verify.Flags().String("transaction", "", "provider transaction id (Flutterwave)")

	await := &cobra.Command{
		Use:   "await BILLING_ID",
		Short: "Poll until a provider payment is confirmed or the window closes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "billing")
			if err != nil {
				return err
			}
			ref, _ := cmd.Flags().GetString("transaction")
			var channel payments.Channel
			if raw, _ := cmd.Flags().GetString("channel"); raw != "" {
				if channel, err = payments.ParseChannel(raw); err != nil {
					return err
				}
			}
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			h, err := rt.Billing.WatchProviderPayment(cmd.Context(), id, ref, channel)
			if err != nil {
				return err
			}
			defer h.Stop()
			select {
			case <-h.Done():
			case <-cmd.Context().Done():
				h.Stop()
				c.printf("stopped waiting for bill %d\n", id)
			}
			res, err := h.Wait()
			if err != nil {
				return err
			}
			c.printf("bill %d paid after %d check(s)\n", id, res.Attempts)
			return c.emitQuiet(res)
		},
	}
	await.Flags().String("transaction", "", "provider transaction id (Flutterwave)")
	await.Flags().String("channel", "", "card, mpesa or flutterwave; derived from --transaction when empty")

	checkout := &cobra.Command{
		Use:   "checkout BILLING_ID",
		Short: "Start a card checkout and print the payment URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, bill, err := c.loadOwnBill(cmd, args[0])
			if err != nil {
				return err
			}
			sess, err := rt.Billing.StartCardCheckout(cmd.Context(), bill)
			if err != nil {
				return err
			}
			c.printf("open %s to pay bill %d\n", sess.URL, bill.ID)
			return c.emitQuiet(sess)
		},
	}

	mpesa := &cobra.Command{
		Use:   "mpesa BILLING_ID",
		Short: "Send an M-Pesa STK push for a bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phone, _ := cmd.Flags().GetString("phone")
			rt, bill, err := c.loadOwnBill(cmd, args[0])
			if err != nil {
				return err
			}
			push, err := rt.Billing.StartMpesaPayment(cmd.Context(), bill, phone)
			if err != nil {
				return err
			}
			c.printf("payment prompt sent to %s (request %s)\n", phone, push.CheckoutRequestID)
			if wait, _ := cmd.Flags().GetBool("await"); !wait {
				return c.emitQuiet(push)
			}
			res, err := rt.Billing.AwaitProviderPayment(cmd.Context(), bill.ID, "", payments.ChannelMpesa)
			if err != nil {
				return err
			}
			c.printf("bill %d paid after %d check(s)\n", bill.ID, res.Attempts)
			return c.emitQuiet(res)
		},
	}
	mpesa.Flags().String("phone", "", "M-Pesa phone number, e.g. 2547XXXXXXXX")
	mpesa.Flags().Bool("await", false, "poll until the payment is confirmed")

	cmd.AddCommand(list, confirmCash, verify, await, checkout, mpesa)
	return cmd
}

// loadOwnBill finds billing id among the session patient's bills.
func (c *cli) loadOwnBill(cmd *cobra.Command, arg string) (*bootstrap.Runtime, *appointments.Billing, error) {
	id, err := parseID(arg, "billing")
	if err != nil {
		return nil, nil, err
	}
	rt, err := c.runtime(cmd)
	if err != nil {
		return nil, nil, err
	}
	bills, err := rt.Client.ListPatientBillings(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	for i := range bills {
		if bills[i].ID == id {
			return rt, &bills[i], nil
		}
	}
	return nil, nil, fmt.Errorf("bill %d not found among your bills", id)
}
