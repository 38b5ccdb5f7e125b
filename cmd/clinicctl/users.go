package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/clinicdesk/internal/aggregate"
	"github.com/wolfman30/clinicdesk/internal/appointments"
)

func usersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Accounts and doctor approvals",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List users on a management tab",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			tab, _ := cmd.Flags().GetString("tab")
			page, _ := cmd.Flags().GetInt("page")
			users, err := rt.Client.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			p := aggregate.Paginate(aggregate.FilterUsersByRole(users, tab), page, rt.Config.PageSize)
			return c.emit(p, func(w *tabwriter.Writer) {
				userRows(w, p.Items, rt.Config.DefaultCurrency)
				fmt.Fprintf(w, "\npage %d of %d (%d users)\n", p.Page, p.TotalPages, p.TotalItems)
				if p.HasPrev() {
					fmt.Fprintf(w, "previous: --page %d\n", p.Page-1)
				}
				if p.HasNext() {
					fmt.Fprintf(w, "next: --page %d\n", p.Page+1)
				}
			})
		},
	}
	list.Flags().String("tab", aggregate.TabDoctors, "doctors, patients or admins")
	list.Flags().Int("page", 1, "1-based page")

	pending := &cobra.Command{
		Use:   "pending",
		Short: "List doctors awaiting approval (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			users, err := rt.Client.ListPendingDoctors(cmd.Context())
			if err != nil {
				return err
			}
			return c.emit(users, func(w *tabwriter.Writer) { userRows(w, users, rt.Config.DefaultCurrency) })
		},
	}

	me := &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			rt.Client.RefreshUser(cmd.Context())
			u, ok := rt.Session.User()
			if !ok {
				claims, _ := rt.Session.Claims()
				u = appointments.User{ID: claims.UserID, Name: claims.Name, Email: claims.Email, Role: claims.Role}
			}
			return c.emit(u, func(w *tabwriter.Writer) { userRows(w, []appointments.User{u}, rt.Config.DefaultCurrency) })
		},
	}

	cmd.AddCommand(list, pending, me,
		doctorDecisionCmd(c, "approve", "Approve a pending doctor (admin)", true),
		doctorDecisionCmd(c, "reject", "Reject a pending doctor (admin)", false),
	)
	return cmd
}

func doctorDecisionCmd(c *cli, use, short string, approve bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " USER_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			if approve {
				err = rt.Client.ApproveDoctor(cmd.Context(), id)
			} else {
				err = rt.Client.RejectDoctor(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			c.printf("doctor %d %sd\n", id, use)
			return nil
		},
	}
}

func userRows(w *tabwriter.Writer, users []appointments.User, currency string) {
	row(w, "ID", "NAME", "EMAIL", "ROLE", "SPECIALIZATION", "FEE")
	for _, u := range users {
		fee := "-"
		if u.ConsultationFee.IsPositive() {
			fee = u.ConsultationFee.Format(currency)
		}
		row(w, u.ID, u.Name, u.Email, u.Role, orNA(u.Specialization), fee)
	}
}
