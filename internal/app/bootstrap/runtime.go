package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinicdesk/internal/clinicapi"
	appconfig "github.com/wolfman30/clinicdesk/internal/config"
	"github.com/wolfman30/clinicdesk/internal/events"
	"github.com/wolfman30/clinicdesk/internal/observability/metrics"
	"github.com/wolfman30/clinicdesk/internal/payments"
	"github.com/wolfman30/clinicdesk/internal/workflow"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || !cfg.UseRedisGuard || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, falling back to in-process guard", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildCoordination picks the busy guard and pending-completion store. A nil
// client selects the in-process implementations.
func BuildCoordination(client *redis.Client, cfg *appconfig.Config) (workflow.Guard, workflow.PendingCompletionStore) {
	if client == nil {
		return workflow.NewMemoryGuard(), workflow.NewMemoryPendingStore()
	}
	ttl := cfg.BusyGuardTTL
	return workflow.NewRedisGuard(client, ttl), workflow.NewRedisPendingStore(client)
}

// BuildPoller applies the configured payment polling schedule.
func BuildPoller(cfg *appconfig.Config, logger *logging.Logger) *payments.Poller {
	return payments.NewPoller(logger).
		WithInterval(cfg.PaymentPollInterval).
		WithMaxInterval(cfg.PaymentPollMaxInterval).
		WithTimeout(cfg.PaymentPollTimeout)
}

// Runtime is everything a clinicctl command needs.
type Runtime struct {
	Config   *appconfig.Config
	Logger   *logging.Logger
	Registry *prometheus.Registry
	Session  *clinicapi.Session
	Client   *clinicapi.Client
	Bus      *events.Bus
	Workflow *workflow.Workflow
	Billing  *workflow.BillingCoordinator
	Redis    *redis.Client
}

// BuildRuntime wires the backend client, workflow and billing coordinator.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	reg := prometheus.NewRegistry()
	var session *clinicapi.Session
	session = clinicapi.NewSession(cfg.APIToken, func() {
		session.Clear()
		logger.Warn("session rejected by backend, log in again")
	})
	client, err := clinicapi.New(clinicapi.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Logger:  logger,
		Metrics: metrics.NewAPIMetrics(reg),
	}, session)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: clinic api client: %w", err)
	}

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	guard, pending := BuildCoordination(redisClient, cfg)
	if redisClient != nil {
		logger.Debug("shared busy guard enabled", "addr", cfg.RedisAddr)
	}

	bus := events.NewBus(logger)
	wf := workflow.New(client, workflow.Options{
		Guard:     guard,
		Publisher: bus,
		Metrics:   metrics.NewWorkflowMetrics(reg),
		Logger:    logger,
	})
	billing := workflow.NewBillingCoordinator(wf, client, workflow.BillingOptions{
		Pending: pending,
		Roles:   session,
		Profile: client,
		Poller:  BuildPoller(cfg, logger),
	})

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Session:  session,
		Client:   client,
		Bus:      bus,
		Workflow: wf,
		Billing:  billing,
		Redis:    redisClient,
	}, nil
}

// Close releases the Redis connection, if any.
func (r *Runtime) Close() error {
	if r == nil || r.Redis == nil {
		return nil
	}
	return r.Redis.Close()
}
