package main

import (
	"context"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wolfman30/clinicdesk/internal/callback"
	"github.com/wolfman30/clinicdesk/internal/events"
	reconcileworker "github.com/wolfman30/clinicdesk/internal/worker/reconcile"
)

func serveCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the payment callback listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			port, _ := cmd.Flags().GetString("port")
			if port == "" {
				port = rt.Config.CallbackPort
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sub := rt.Bus.Subscribe(0)
			defer sub.Close()
			go sub.Drain(ctx, func(_ context.Context, env events.Envelope) error {
				rt.Logger.Info("event", "type", env.EventType, "aggregate", env.Aggregate, "event_id", env.EventID.String())
				return nil
			})
			rt.Logger.Debug("event log attached", "subscribers", rt.Bus.Subscribers())

			if every, _ := cmd.Flags().GetDuration("reconcile-interval"); every > 0 {
				go reconcileworker.New(rt.Client, rt.Billing, rt.Logger).WithInterval(every).Run(ctx)
			}

			router := callback.NewRouter(callback.Config{
				Logger:         rt.Logger,
				Verifier:       rt.Billing,
				MetricsHandler: promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}),
				Gatherer:       rt.Registry,
			})
			return callback.NewServer(net.JoinHostPort("", port), router, rt.Logger).Run(ctx)
		},
	}
	cmd.Flags().String("port", "", "listen port (overrides CALLBACK_PORT)")
	cmd.Flags().Duration("reconcile-interval", 5*time.Minute, "how often to report billed but uncompleted visits; 0 disables")
	return cmd
}
