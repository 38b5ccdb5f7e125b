package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/clinicdesk/internal/config"
	"github.com/wolfman30/clinicdesk/internal/workflow"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		APIBaseURL:          "http://localhost:3000",
		APITimeout:          time.Second,
		BusyGuardTTL:        time.Minute,
		PaymentPollInterval: time.Second,
	}
}

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), nil, logging.Discard(), true))
	cfg := testConfig()
	cfg.RedisAddr = "localhost:6379"
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Discard(), true))
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.UseRedisGuard = true
	cfg.RedisAddr = mr.Addr()

	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true)
	require.NotNil(t, client)
	defer client.Close()

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Discard(), true))
}

func TestBuildCoordination(t *testing.T) {
	guard, pending := BuildCoordination(nil, testConfig())
	assert.IsType(t, &workflow.MemoryGuard{}, guard)
	assert.IsType(t, &workflow.MemoryPendingStore{}, pending)
}

func TestBuildRuntimeRequiresConfig(t *testing.T) {
	_, err := BuildRuntime(context.Background(), nil, logging.Discard())
	assert.Error(t, err)

	cfg := testConfig()
	cfg.APIBaseURL = ""
	_, err = BuildRuntime(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

func TestBuildRuntimeWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.UseRedisGuard = true
	cfg.RedisAddr = mr.Addr()

	rt, err := BuildRuntime(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.Redis)
	assert.NotNil(t, rt.Workflow)
	assert.NotNil(t, rt.Billing)

	release, err := workflow.NewRedisGuard(rt.Redis, time.Minute).Acquire(context.Background(), workflow.ActionKey("cancel", 1))
	require.NoError(t, err)
	release()
}

func TestBuildRuntimeClearsSessionOnUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.APIBaseURL = srv.URL
	cfg.APIToken = "stale-token"
	rt, err := BuildRuntime(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer rt.Close()
	require.True(t, rt.Session.Authenticated())

	_, err = rt.Client.Me(context.Background())
	require.Error(t, err)
	assert.False(t, rt.Session.Authenticated())
	assert.Empty(t, rt.Session.Token())
}
