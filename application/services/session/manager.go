// Package session binds a canvas to its autosaver and pipelines for one
// editing session.
package session

import (
	"context"
	"sync"

	"canvas-backend/application/ports"
	"canvas-backend/application/services/analysis"
	"canvas-backend/application/services/autosave"
	"canvas-backend/application/services/extraction"
	"canvas-backend/application/services/generation"
	"canvas-backend/application/services/media"
	"canvas-backend/application/services/outputs"
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"

	"go.uber.org/zap"
)

// Services are the pipelines shared by every session
type Services struct {
	Canvases     ports.CanvasRepository
	Library      ports.LibraryRepository
	Orchestrator *generation.Orchestrator
	Extraction   *extraction.Service
	Analysis     *analysis.Service
	Uploader     *media.Uploader
	Outputs      *outputs.Service
	Bus          ports.EventBus
	Config       *config.DomainConfig
	Clock        utils.Clock
	Metrics      ports.Metrics
	Logger       *zap.Logger
}

// Manager keeps the open sessions
type Manager struct {
	services Services
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager
func NewManager(services Services) *Manager {
	if services.Config == nil {
		services.Config = config.DefaultDomainConfig()
	}
	if services.Clock == nil {
		services.Clock = utils.RealClock()
	}
	if services.Metrics == nil {
		services.Metrics = ports.NopMetrics{}
	}
	if services.Logger == nil {
		services.Logger = zap.NewNop()
	}
	return &Manager{
		services: services,
		logger:   services.Logger,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session for a client. A non-empty canvasID loads that canvas.
func (m *Manager) Open(ctx context.Context, clientID, canvasID string) (*Session, error) {
	canvas := aggregates.NewCanvasWithConfig(m.services.Config)
	canvas.Reset(clientID)

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		id:       valueobjects.NewID(),
		canvas:   canvas,
		services: &m.services,
		ctx:      sessionCtx,
		cancel:   cancel,
		jobs:     make(map[string]*Job),
		logger:   m.logger,
	}
	s.saver = autosave.New(canvas, m.services.Canvases, autosave.Options{
		Config:  m.services.Config,
		Clock:   m.services.Clock,
		Bus:     m.services.Bus,
		Metrics: m.services.Metrics,
		Logger:  m.logger.With(zap.String("session_id", s.id)),
	})

	if canvasID != "" {
		if err := s.Load(ctx, canvasID); err != nil {
			cancel()
			return nil, err
		}
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Info("Session opened",
		zap.String("session_id", s.id),
		zap.String("client_id", clientID),
		zap.String("canvas_id", canvasID),
	)
	return s, nil
}

// Get returns an open session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("session")
	}
	return s, nil
}

// Close ends a session: running jobs are cancelled and pending changes saved
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return pkgerrors.NewNotFoundError("session")
	}
	err := s.close(ctx)
	m.logger.Info("Session closed", zap.String("session_id", id), zap.Error(err))
	return err
}

// CloseAll ends every session
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for id, s := range sessions {
		if err := s.close(ctx); err != nil {
			m.logger.Warn("Failed to close session", zap.String("session_id", id), zap.Error(err))
		}
	}
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
