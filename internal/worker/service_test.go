package worker

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/asklens/internal/app"
	"github.com/thebtf/asklens/internal/config"
	"github.com/thebtf/asklens/internal/embedding"
)

func TestNewService_InitializesAsync(t *testing.T) {
	cfg := testConfig(t)
	svc := NewService("test", cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, svc.WaitReady(ctx))

	comps := svc.getComponents()
	require.NotNil(t, comps)
	assert.NotNil(t, comps.Reporter)
	assert.FileExists(t, config.SettingsPath())

	require.NoError(t, svc.Shutdown(ctx))
}

func TestNewService_InitFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.EmbeddingModel = "nope"
	svc := NewService("test", cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := svc.WaitReady(ctx)
	assert.ErrorIs(t, err, embedding.ErrUnknownModel)
	assert.False(t, svc.ready.Load())

	require.NoError(t, svc.Shutdown(ctx))
}

func TestService_StartAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.WorkerPort = 0
	svc := testService(t, cfg)

	require.NoError(t, svc.Start())
	require.NotEmpty(t, svc.Addr())

	resp, err := http.Get("http://" + svc.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	_, err = http.Get("http://" + svc.Addr() + "/health")
	assert.Error(t, err)
}

func TestReloadConfig_SwapsComponents(t *testing.T) {
	cfg := testConfig(t)
	svc := newService("test", cfg, defaultBuild)
	comps, err := defaultBuild(cfg)
	require.NoError(t, err)
	svc.setComponents(comps)

	require.NoError(t, config.EnsureDataDir())
	require.NoError(t, os.WriteFile(config.SettingsPath(), []byte(`{"ASKLENS_GROUPING_THRESHOLD": 0.5}`), 0600))
	svc.reloadConfig()

	assert.Equal(t, 0.5, svc.getConfig().GroupingThreshold)
	assert.NotSame(t, comps, svc.getComponents())

	rec := postJSON(t, svc, "/api/group", `{"texts":["a"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.5, decode[GroupResponse](t, rec).Threshold)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
}

func TestReloadConfig_KeepsComponentsOnFailure(t *testing.T) {
	cfg := testConfig(t)
	svc := testService(t, cfg)
	before := svc.getComponents()

	require.NoError(t, config.EnsureDataDir())
	require.NoError(t, os.WriteFile(config.SettingsPath(), []byte(`{"ASKLENS_EMBEDDING_MODEL": "nope"}`), 0600))
	svc.reloadConfig()

	assert.Same(t, before, svc.getComponents())
	assert.Same(t, cfg, svc.getConfig())
}

func TestReloadConfig_IgnoredAfterShutdown(t *testing.T) {
	cfg := testConfig(t)
	builds := 0
	svc := newService("test", cfg, func(c *config.Config) (*app.Components, error) {
		builds++
		return defaultBuild(c)
	})
	comps, err := defaultBuild(cfg)
	require.NoError(t, err)
	svc.setComponents(comps)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	require.NoError(t, config.EnsureDataDir())
	require.NoError(t, os.WriteFile(config.SettingsPath(), []byte(`{"ASKLENS_GROUPING_THRESHOLD": 0.5}`), 0600))
	svc.reloadConfig()

	assert.Zero(t, builds)
	assert.Same(t, comps, svc.getComponents())
	assert.Same(t, cfg, svc.getConfig())
}

func TestReloadConfig_RetireFinishesBeforeShutdownReturns(t *testing.T) {
	cfg := testConfig(t)
	svc := newService("test", cfg, defaultBuild)
	comps, err := defaultBuild(cfg)
	require.NoError(t, err)
	svc.setComponents(comps)

	svc.reloadConfig()
	require.NotSame(t, comps, svc.getComponents())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = svc.Shutdown(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not wait for the retired components")
	}
	assert.Error(t, comps.Source.Ping(context.Background()), "retired source must be closed")
}
