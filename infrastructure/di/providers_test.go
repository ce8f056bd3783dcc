package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"canvas-backend/application/ports"
	"canvas-backend/application/services/analysis"
	domainconfig "canvas-backend/domain/config"
	"canvas-backend/infrastructure/config"
	"canvas-backend/infrastructure/persistence/memory"
	"canvas-backend/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.SnapshotBackend = config.BackendMemory
	cfg.Supabase.URL = ""
	cfg.Supabase.Key = ""
	cfg.EnableTracing = false
	cfg.EnableEvents = false
	return cfg
}

func TestProvideCanvasRepository_FallsBackToMemory(t *testing.T) {
	logger := zap.NewNop()
	clock := utils.RealClock()

	cfg := testConfig()
	repo := ProvideCanvasRepository(cfg, nil, aws.Config{}, clock, logger)
	assert.IsType(t, &memory.CanvasStore{}, repo)

	cfg.SnapshotBackend = config.BackendSupabase
	repo = ProvideCanvasRepository(cfg, nil, aws.Config{}, clock, logger)
	assert.IsType(t, &memory.CanvasStore{}, repo)
}

func TestProvideMetrics_Disabled(t *testing.T) {
	cfg := testConfig()
	collector := ProvideCollector()

	assert.Equal(t, collector, ProvideMetrics(cfg, collector))

	cfg.EnableMetrics = false
	assert.Equal(t, ports.NopMetrics{}, ProvideMetrics(cfg, collector))
}

func TestProvideObjectStorage_NilWithoutSupabase(t *testing.T) {
	assert.Nil(t, ProvideObjectStorage(nil, testConfig(), zap.NewNop()))
}

func TestApplyDynamicConfig(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	svc := analysis.NewService(nil, nil, domainconfig.DefaultDomainConfig(), nil, nil)

	ApplyDynamicConfig(&config.DynamicConfig{
		LogLevel: "debug",
		Analysis: config.AnalysisTuning{BatchWidth: 6},
	}, level, svc, zap.NewNop())

	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.Equal(t, 6, svc.BatchWidth())

	// invalid level and zero width leave the current values
	ApplyDynamicConfig(&config.DynamicConfig{LogLevel: "loud"}, level, svc, zap.NewNop())
	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.Equal(t, 6, svc.BatchWidth())
}

func TestProvideConfigWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dynamic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: warn\nanalysis:\n  batchWidth: 2\n"), 0o644))

	cfg := testConfig()
	cfg.DynamicConfigFile = path
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	svc := analysis.NewService(nil, nil, domainconfig.DefaultDomainConfig(), nil, nil)

	watcher, err := ProvideConfigWatcher(cfg, level, svc, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, watcher)
	defer watcher.Stop()

	assert.Equal(t, zapcore.WarnLevel, level.Level())
	assert.Equal(t, 2, svc.BatchWidth())
}

func TestInitializeContainer_Memory(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "error"

	container, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer container.Shutdown(context.Background())

	assert.Nil(t, container.Watcher)
	assert.Nil(t, container.Tracing)
	assert.IsType(t, &memory.CanvasStore{}, container.Canvases)

	sess, err := container.Sessions.Open(context.Background(), "client-1", "")
	require.NoError(t, err)
	assert.Equal(t, "client-1", sess.Canvas().ClientID())
	assert.Equal(t, 1, container.Sessions.Count())
}

func TestProvideLibraryRepository_Memory(t *testing.T) {
	lib := ProvideLibraryRepository(testConfig(), nil)
	assert.IsType(t, &memory.LibraryStore{}, lib)
}
