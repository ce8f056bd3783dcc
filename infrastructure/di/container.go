// Package di assembles the application from its configuration.
package di

import (
	"context"

	"canvas-backend/application/ports"
	"canvas-backend/application/services/session"
	"canvas-backend/infrastructure/config"
	"canvas-backend/infrastructure/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	LogLevel  zap.AtomicLevel
	Collector *observability.Collector
	Tracing   *observability.TracerProvider
	Canvases  ports.CanvasRepository
	EventBus  ports.EventBus
	Sessions  *session.Manager
	Watcher   *config.ConfigWatcher
}

// Shutdown closes every session, saving pending changes, then releases resources
func (c *Container) Shutdown(ctx context.Context) {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	if c.Sessions != nil {
		c.Sessions.CloseAll(ctx)
	}
	if err := c.Tracing.Shutdown(ctx); err != nil {
		c.Logger.Warn("Failed to flush traces", zap.Error(err))
	}
	_ = c.Logger.Sync()
}
