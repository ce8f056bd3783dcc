package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SNAPSHOT_BACKEND", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, BackendSupabase, cfg.SnapshotBackend)
	assert.Equal(t, "canvases", cfg.Supabase.CanvasTable)
	assert.Equal(t, 60*time.Second, cfg.Remote.Timeout)
	assert.True(t, cfg.IsDevelopment())
	assert.Contains(t, cfg.AllowedOrigins, "http://localhost:3000")
}

func TestLoadConfig_AllowedOriginsFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SNAPSHOT_BACKEND", "")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://*.example.org ,")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com", "https://*.example.org"}, cfg.AllowedOrigins)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serverAddress: ":9090"
snapshotBackend: memory
supabase:
  url: https://example.supabase.co
  bucket: uploads
remote:
  timeout: 15s
logLevel: debug
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("SUPABASE_KEY", "anon-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ServerAddress)
	assert.Equal(t, BackendMemory, cfg.SnapshotBackend)
	assert.Equal(t, "uploads", cfg.Supabase.Bucket)
	assert.Equal(t, "canvases", cfg.Supabase.CanvasTable)
	assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.HasSupabase())
	assert.Equal(t, "https://example.supabase.co/functions/v1", cfg.FunctionsURL())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.SnapshotBackend = "sqlite" }, wantErr: true},
		{name: "dynamodb without table", mutate: func(c *Config) {
			c.SnapshotBackend = BackendDynamoDB
			c.DynamoDBTable = ""
		}, wantErr: true},
		{name: "production without supabase", mutate: func(c *Config) { c.Environment = "production" }, wantErr: true},
		{name: "production with supabase", mutate: func(c *Config) {
			c.Environment = "production"
			c.Supabase.URL = "https://x.supabase.co"
			c.Supabase.Key = "key"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dynamic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: info\nanalysis:\n  batchWidth: 3\n"), 0o644))

	w, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, w.GetCurrent().Analysis.BatchWidth)
	assert.Equal(t, "1.0.0", w.GetCurrent().Metadata.Version)

	widths := make(chan int, 4)
	w.OnChange(func(c *DynamicConfig) { widths <- c.Analysis.BatchWidth })
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\nanalysis:\n  batchWidth: 5\n"), 0o644))

	select {
	case width := <-widths:
		assert.Equal(t, 5, width)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration change was not observed")
	}
	assert.Equal(t, "debug", w.GetCurrent().LogLevel)
}

func TestConfigWatcher_InvalidReloadKeepsCurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dynamic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  batchWidth: 2\n"), 0o644))

	w, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  batchWidth: 99\n"), 0o644))
	w.reload()
	assert.Equal(t, 2, w.GetCurrent().Analysis.BatchWidth)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: loud\n"), 0o644))
	w.reload()
	assert.Equal(t, 2, w.GetCurrent().Analysis.BatchWidth)
}

func TestNewConfigWatcher_MissingFile(t *testing.T) {
	_, err := NewConfigWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
