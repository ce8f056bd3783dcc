package di

import (
	"context"
	"fmt"
	"net/http"

	"canvas-backend/application/ports"
	"canvas-backend/application/services/aggregation"
	"canvas-backend/application/services/analysis"
	"canvas-backend/application/services/extraction"
	"canvas-backend/application/services/generation"
	"canvas-backend/application/services/media"
	"canvas-backend/application/services/outputs"
	"canvas-backend/application/services/session"
	domainconfig "canvas-backend/domain/config"
	"canvas-backend/infrastructure/cache"
	"canvas-backend/infrastructure/config"
	"canvas-backend/infrastructure/messaging"
	"canvas-backend/infrastructure/messaging/eventbridge"
	"canvas-backend/infrastructure/observability"
	"canvas-backend/infrastructure/persistence/dynamodb"
	"canvas-backend/infrastructure/persistence/memory"
	"canvas-backend/infrastructure/storage"
	sbadapter "canvas-backend/infrastructure/supabase"
	"canvas-backend/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogLevel parses the configured level into an adjustable level
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return level, nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() || cfg.IsLambda {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "canvas-backend")), nil
}

// ProvideDomainConfig selects the business rules for the environment
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return domainconfig.LoadDomainConfig(cfg.Environment)
}

// ProvideClock returns the wall clock
func ProvideClock() utils.Clock {
	return utils.RealClock()
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector("canvas")
}

// ProvideMetrics exposes the collector to the services unless metrics are disabled
func ProvideMetrics(cfg *config.Config, collector *observability.Collector) ports.Metrics {
	if !cfg.EnableMetrics {
		return ports.NopMetrics{}
	}
	return collector
}

// ProvideTracing installs the OTLP exporter when tracing is enabled
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, error) {
	if !cfg.EnableTracing {
		return nil, nil
	}
	tp, err := observability.InitTracing(ctx, "canvas-backend", cfg.Environment, cfg.TracingEndpoint)
	if err != nil {
		return nil, err
	}
	logger.Info("Tracing enabled", zap.String("endpoint", cfg.TracingEndpoint))
	return tp, nil
}

// ProvideContentCache creates the extraction cache, persisted to disk when CACHE_FILE is set
func ProvideContentCache(
	cfg *config.Config,
	domainCfg *domainconfig.DomainConfig,
	clock utils.Clock,
	metrics ports.Metrics,
	logger *zap.Logger,
) (*cache.ContentCache, error) {
	var blob cache.BlobStore = cache.NewMemoryBlob()
	if cfg.CacheFile != "" {
		fileBlob, err := cache.NewFileBlob(cfg.CacheFile)
		if err != nil {
			return nil, err
		}
		blob = fileBlob
	}
	return cache.NewContentCache(blob, cache.Options{
		TTL:           domainCfg.CacheTTL,
		Capacity:      domainCfg.CacheCapacity,
		EvictionBatch: domainCfg.CacheEvictionBatch,
	}, clock, metrics, logger), nil
}

// ProvideLocalMedia creates the in-process media store
func ProvideLocalMedia() *storage.LocalMediaStore {
	return storage.NewLocalMediaStore()
}

// ProvideSupabaseClient creates the Supabase client, or nil when it is not configured
func ProvideSupabaseClient(cfg *config.Config, logger *zap.Logger) (*supabase.Client, error) {
	if !cfg.HasSupabase() {
		logger.Warn("Supabase is not configured, using local fallbacks")
		return nil, nil
	}
	return sbadapter.NewClient(cfg.Supabase.URL, cfg.Supabase.Key)
}

// ProvideFunctions creates the edge function client
func ProvideFunctions(cfg *config.Config, metrics ports.Metrics, logger *zap.Logger) *sbadapter.Functions {
	return sbadapter.NewFunctions(sbadapter.FunctionsConfig{
		BaseURL:          cfg.FunctionsURL(),
		Key:              cfg.Supabase.Key,
		Timeout:          cfg.Remote.Timeout,
		StreamTimeout:    cfg.Remote.StreamTimeout,
		BreakerFailures:  cfg.Remote.BreakerFailures,
		BreakerOpenDelay: cfg.Remote.BreakerOpenDelay,
	}, &http.Client{}, metrics, logger)
}

// ProvideObjectStorage returns the media bucket, or nil to keep uploads local
func ProvideObjectStorage(client *supabase.Client, cfg *config.Config, logger *zap.Logger) ports.ObjectStorage {
	if client == nil || client.Storage == nil {
		return nil
	}
	return sbadapter.NewMediaStorage(client.Storage, cfg.Supabase.Bucket, logger)
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideCanvasRepository selects the snapshot backend
func ProvideCanvasRepository(
	cfg *config.Config,
	client *supabase.Client,
	awsCfg aws.Config,
	clock utils.Clock,
	logger *zap.Logger,
) ports.CanvasRepository {
	switch cfg.SnapshotBackend {
	case config.BackendDynamoDB:
		return dynamodb.NewCanvasRepository(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, logger)
	case config.BackendSupabase:
		if client != nil {
			return sbadapter.NewCanvasRepository(client, cfg.Supabase.CanvasTable, logger)
		}
		logger.Warn("Supabase snapshot backend unavailable, canvases are kept in memory")
	}
	return memory.NewCanvasStore(clock)
}

// ProvideLibraryRepository reads the content library from Supabase when available
func ProvideLibraryRepository(cfg *config.Config, client *supabase.Client) ports.LibraryRepository {
	if client == nil {
		return memory.NewLibraryStore()
	}
	return sbadapter.NewLibraryRepository(client, cfg.Supabase.LibraryTable)
}

// ProvideEventBus fans events out to the log and, when enabled, to EventBridge
func ProvideEventBus(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventBus {
	buses := []ports.EventBus{messaging.NewLoggingBus(logger)}
	if cfg.EnableEvents {
		buses = append(buses, eventbridge.NewPublisher(
			awseventbridge.NewFromConfig(awsCfg),
			cfg.EventBusName,
			logger,
		))
	}
	return messaging.NewDispatcher(logger, buses...)
}

// ProvideAnalysis creates the image analysis service
func ProvideAnalysis(
	functions *sbadapter.Functions,
	local *storage.LocalMediaStore,
	domainCfg *domainconfig.DomainConfig,
	metrics ports.Metrics,
	logger *zap.Logger,
) *analysis.Service {
	return analysis.NewService(functions, media.NewResolver(local), domainCfg, metrics, logger)
}

// ProvideServices assembles the pipelines shared by every session
func ProvideServices(
	canvases ports.CanvasRepository,
	library ports.LibraryRepository,
	functions *sbadapter.Functions,
	objects ports.ObjectStorage,
	local *storage.LocalMediaStore,
	contentCache *cache.ContentCache,
	analysisSvc *analysis.Service,
	bus ports.EventBus,
	domainCfg *domainconfig.DomainConfig,
	clock utils.Clock,
	metrics ports.Metrics,
	logger *zap.Logger,
) session.Services {
	resolver := media.NewResolver(local)
	orchestrator := generation.NewOrchestrator(generation.Deps{
		Aggregator: aggregation.NewAggregator(resolver, logger),
		Analysis:   analysisSvc,
		Text:       functions,
		Images:     functions,
		Resolver:   resolver,
		Bus:        bus,
		Clock:      clock,
		Config:     domainCfg,
		Metrics:    metrics,
		Logger:     logger,
	})

	return session.Services{
		Canvases:     canvases,
		Library:      library,
		Orchestrator: orchestrator,
		Extraction:   extraction.NewService(functions, contentCache, resolver, bus, clock, logger),
		Analysis:     analysisSvc,
		Uploader:     media.NewUploader(objects, local, domainCfg, logger),
		Outputs:      outputs.NewService(domainCfg, clock, logger),
		Bus:          bus,
		Config:       domainCfg,
		Clock:        clock,
		Metrics:      metrics,
		Logger:       logger,
	}
}

// ProvideSessionManager creates the session manager
func ProvideSessionManager(services session.Services) *session.Manager {
	return session.NewManager(services)
}

// ProvideConfigWatcher watches the dynamic tunables file when one is configured
func ProvideConfigWatcher(
	cfg *config.Config,
	level zap.AtomicLevel,
	analysisSvc *analysis.Service,
	logger *zap.Logger,
) (*config.ConfigWatcher, error) {
	if cfg.DynamicConfigFile == "" {
		return nil, nil
	}
	watcher, err := config.NewConfigWatcher(cfg.DynamicConfigFile, logger)
	if err != nil {
		return nil, err
	}
	apply := func(dc *config.DynamicConfig) {
		ApplyDynamicConfig(dc, level, analysisSvc, logger)
	}
	apply(watcher.GetCurrent())
	watcher.OnChange(apply)
	watcher.Start()
	return watcher, nil
}

// ApplyDynamicConfig pushes reloaded tunables into the running services
func ApplyDynamicConfig(dc *config.DynamicConfig, level zap.AtomicLevel, analysisSvc *analysis.Service, logger *zap.Logger) {
	if dc == nil {
		return
	}
	if dc.LogLevel != "" {
		parsed, err := zapcore.ParseLevel(dc.LogLevel)
		if err != nil {
			logger.Warn("Ignoring invalid log level", zap.String("level", dc.LogLevel), zap.Error(err))
		} else {
			level.SetLevel(parsed)
		}
	}
	if dc.Analysis.BatchWidth > 0 {
		analysisSvc.SetBatchWidth(dc.Analysis.BatchWidth)
	}
	logger.Info("Dynamic configuration applied",
		zap.String("log_level", level.String()),
		zap.Int("analysis_batch_width", analysisSvc.BatchWidth()),
		zap.String("version", dc.Metadata.Version),
	)
}
