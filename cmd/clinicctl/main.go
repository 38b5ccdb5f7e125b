// Command clinicctl drives the clinic appointment lifecycle from a terminal:
// confirming and starting visits, recording outcomes, billing and payments.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/clinicdesk/internal/app/bootstrap"
	"github.com/wolfman30/clinicdesk/internal/config"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries the global flags and the lazily built runtime.
type cli struct {
	out    io.Writer
	errOut io.Writer

	envFile  string
	apiURL   string
	token    string
	logLevel string
	jsonOut  bool

	rt *bootstrap.Runtime
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Clinic appointment workflow client",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&c.apiURL, "api-url", "", "clinic API base URL (overrides CLINIC_API_BASE_URL)")
	flags.StringVar(&c.token, "token", "", "session token (overrides CLINIC_API_TOKEN)")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flags.BoolVar(&c.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		appointmentsCmd(c),
		recordsCmd(c),
		prescriptionsCmd(c),
		finishBillCmd(c),
		resumeCmd(c),
		reconcileCmd(c),
		billingCmd(c),
		usersCmd(c),
		reportCmd(c),
		serveCmd(c),
	)
	return root
}

// config loads .env and the environment, then applies flag overrides.
func (c *cli) config() (*config.Config, error) {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", c.envFile, err)
	}
	cfg := config.Load()
	if c.apiURL != "" {
		cfg.APIBaseURL = strings.TrimSuffix(c.apiURL, "/")
	}
	if c.token != "" {
		cfg.APIToken = c.token
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	return cfg, nil
}

func (c *cli) runtime(cmd *cobra.Command) (*bootstrap.Runtime, error) {
	if c.rt != nil {
		return c.rt, nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(c.errOut, cfg.LogLevel)
	rt, err := bootstrap.BuildRuntime(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	switch {
	case !rt.Session.Authenticated():
		logger.Warn("no session token; set CLINIC_API_TOKEN or pass --token")
	case rt.Session.Expired(time.Now()):
		logger.Warn("session token has expired, log in again")
	}
	c.rt = rt
	return rt, nil
}

func (c *cli) close() error {
	if c.rt == nil {
		return nil
	}
	err := c.rt.Close()
	c.rt = nil
	return err
}
