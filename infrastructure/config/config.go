package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot backends
const (
	BackendSupabase = "supabase"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// SupabaseConfig holds the hosted backend settings
type SupabaseConfig struct {
	URL          string `yaml:"url"`
	Key          string `yaml:"key"`
	Bucket       string `yaml:"bucket"`
	FunctionsURL string `yaml:"functionsUrl"`
	CanvasTable  string `yaml:"canvasTable"`
	LibraryTable string `yaml:"libraryTable"`
}

// RemoteConfig tunes calls to the edge functions
type RemoteConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	StreamTimeout    time.Duration `yaml:"streamTimeout"`
	BreakerFailures  int           `yaml:"breakerFailures"`
	BreakerOpenDelay time.Duration `yaml:"breakerOpenDelay"`
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"serverAddress"`
	Environment   string `yaml:"environment"`

	// Browser origins allowed to call the API
	AllowedOrigins []string `yaml:"allowedOrigins"`

	// Backends
	Supabase        SupabaseConfig `yaml:"supabase"`
	Remote          RemoteConfig   `yaml:"remote"`
	SnapshotBackend string         `yaml:"snapshotBackend"`

	// AWS configuration
	AWSRegion     string `yaml:"awsRegion"`
	DynamoDBTable string `yaml:"dynamodbTable"`
	EventBusName  string `yaml:"eventBusName"`

	// Lambda configuration
	IsLambda bool `yaml:"isLambda"`

	// Content cache file; empty keeps the cache in memory
	CacheFile string `yaml:"cacheFile"`

	// Runtime tunables file watched for changes
	DynamicConfigFile string `yaml:"dynamicConfigFile"`

	// Logging
	LogLevel string `yaml:"logLevel"`

	// Tracing
	TracingEndpoint string `yaml:"tracingEndpoint"`

	// Feature flags
	EnableMetrics bool `yaml:"enableMetrics"`
	EnableTracing bool `yaml:"enableTracing"`
	EnableEvents  bool `yaml:"enableEvents"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		ServerAddress:  ":8080",
		Environment:    "development",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		Supabase: SupabaseConfig{
			Bucket:       "canvas-media",
			CanvasTable:  "canvases",
			LibraryTable: "content_library",
		},
		Remote: RemoteConfig{
			Timeout:          60 * time.Second,
			StreamTimeout:    5 * time.Minute,
			BreakerFailures:  5,
			BreakerOpenDelay: 30 * time.Second,
		},
		SnapshotBackend: BackendSupabase,
		AWSRegion:       "us-west-2",
		DynamoDBTable:   "canvas-snapshots",
		EventBusName:    "canvas-events",
		LogLevel:        "info",
		EnableMetrics:   true,
	}
}

// LoadConfig loads configuration from an optional YAML file named by
// CONFIG_FILE, then applies environment variables on top
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)

	c.Supabase.URL = getEnv("SUPABASE_URL", c.Supabase.URL)
	c.Supabase.Key = getEnv("SUPABASE_KEY", getEnv("SUPABASE_ANON_KEY", c.Supabase.Key))
	c.Supabase.Bucket = getEnv("SUPABASE_BUCKET", c.Supabase.Bucket)
	c.Supabase.FunctionsURL = getEnv("SUPABASE_FUNCTIONS_URL", c.Supabase.FunctionsURL)
	c.Supabase.CanvasTable = getEnv("SUPABASE_CANVAS_TABLE", c.Supabase.CanvasTable)
	c.Supabase.LibraryTable = getEnv("SUPABASE_LIBRARY_TABLE", c.Supabase.LibraryTable)

	c.Remote.Timeout = getEnvDuration("REMOTE_TIMEOUT", c.Remote.Timeout)
	c.Remote.StreamTimeout = getEnvDuration("REMOTE_STREAM_TIMEOUT", c.Remote.StreamTimeout)
	c.Remote.BreakerFailures = getEnvInt("REMOTE_BREAKER_FAILURES", c.Remote.BreakerFailures)
	c.Remote.BreakerOpenDelay = getEnvDuration("REMOTE_BREAKER_OPEN_DELAY", c.Remote.BreakerOpenDelay)

	c.SnapshotBackend = getEnv("SNAPSHOT_BACKEND", c.SnapshotBackend)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")
	c.CacheFile = getEnv("CACHE_FILE", c.CacheFile)
	c.DynamicConfigFile = getEnv("DYNAMIC_CONFIG_FILE", c.DynamicConfigFile)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.TracingEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.TracingEndpoint)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableEvents = getEnvBool("ENABLE_EVENTS", c.EnableEvents)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.SnapshotBackend {
	case BackendSupabase, BackendDynamoDB, BackendMemory:
	default:
		return fmt.Errorf("unknown SNAPSHOT_BACKEND %q", c.SnapshotBackend)
	}

	if c.SnapshotBackend == BackendDynamoDB && c.DynamoDBTable == "" {
		return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb backend")
	}

	if c.Environment == "production" {
		if c.Supabase.URL == "" {
			return fmt.Errorf("SUPABASE_URL is required in production")
		}
		if c.Supabase.Key == "" {
			return fmt.Errorf("SUPABASE_KEY is required in production")
		}
		if c.EnableEvents && c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
	}

	return nil
}

// FunctionsURL returns the base URL of the edge functions
func (c *Config) FunctionsURL() string {
	if c.Supabase.FunctionsURL != "" {
		return c.Supabase.FunctionsURL
	}
	if c.Supabase.URL == "" {
		return ""
	}
	return c.Supabase.URL + "/functions/v1"
}

// HasSupabase reports whether the hosted backend is configured
func (c *Config) HasSupabase() bool {
	return c.Supabase.URL != "" && c.Supabase.Key != ""
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList gets a comma separated environment variable with a default value
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable such as "30s"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
