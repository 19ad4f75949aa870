package worker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/thebtf/asklens/internal/app"
	"github.com/thebtf/asklens/internal/config"
	"github.com/thebtf/asklens/internal/embedding"
	"github.com/thebtf/asklens/internal/grouping"
)

// stubModel is an EmbeddingModel whose batch behavior is supplied by the test.
type stubModel struct {
	embed func(texts []string) ([][]float32, error)
}

func (m *stubModel) Name() string    { return "stub" }
func (m *stubModel) Version() string { return "stub" }
func (m *stubModel) Dimensions() int { return 2 }
func (m *stubModel) Close() error    { return nil }

func (m *stubModel) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	return m.embed(texts)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ASKLENS_DATA_DIR", dir)

	cfg := config.Default()
	cfg.EmbeddingModel = embedding.HashingModelVersion
	cfg.EmbeddingDimensions = 64
	cfg.SQLitePath = filepath.Join(dir, "questions.db")
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	return cfg
}

// testService returns a ready service built from the offline model and a
// temporary SQLite question log.
func testService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	svc := newService("test", cfg, defaultBuild)
	comps, err := defaultBuild(cfg)
	require.NoError(t, err)
	svc.setComponents(comps)
	t.Cleanup(func() {
		svc.cancel()
		_ = comps.Close()
	})
	return svc
}

// stubService returns a ready service without a question source whose
// embedder is model.
func stubService(t *testing.T, model embedding.EmbeddingModel) *Service {
	t.Helper()
	svc := newService("test", testConfig(t), defaultBuild)
	m := embedding.NewServiceWithModel(model)
	svc.setComponents(&app.Components{
		Model:    m,
		Embedder: m,
		Grouper:  grouping.New(m, grouping.WithMeterProvider(noop.NewMeterProvider())),
	})
	t.Cleanup(svc.cancel)
	return svc
}
