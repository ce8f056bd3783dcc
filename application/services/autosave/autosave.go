// Package autosave persists a canvas shortly after it stops changing.
package autosave

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"canvas-backend/application/ports"
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/events"
	"canvas-backend/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Status is the save indicator shown to the user
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSaving  Status = "saving"
	StatusSaved   Status = "saved"
	StatusError   Status = "error"
)

const saveTimeout = 30 * time.Second

// State is a snapshot of the saver
type State struct {
	Status      Status     `json:"status"`
	CanvasID    string     `json:"canvasId,omitempty"`
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Options configures a Saver
type Options struct {
	Config  *config.DomainConfig
	Clock   utils.Clock
	Bus     ports.EventBus
	Metrics ports.Metrics
	Logger  *zap.Logger
}

// Saver debounces canvas changes and writes the whole snapshot once the
// canvas has been quiet for the debounce window. A save is skipped when
// the serialized graph equals the last saved one.
type Saver struct {
	canvas  *aggregates.Canvas
	repo    ports.CanvasRepository
	bus     ports.EventBus
	clock   utils.Clock
	window  time.Duration
	display time.Duration
	metrics ports.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer

	saveMu sync.Mutex

	mu          sync.Mutex
	status      Status
	lastErr     string
	lastSavedAt *time.Time
	baseline    []byte
	timer       utils.Timer
	revert      utils.Timer
	dirty       bool
	closed      bool
	unsubscribe func()
}

// persisted is the part of the graph that decides whether a save is needed
type persisted struct {
	Nodes []entities.Node `json:"nodes"`
	Edges []entities.Edge `json:"edges"`
	Name  string          `json:"name"`
}

// New creates a saver bound to the canvas. The current state of the canvas
// is the baseline, so it is not considered dirty.
func New(canvas *aggregates.Canvas, repo ports.CanvasRepository, opts Options) *Saver {
	if opts.Config == nil {
		opts.Config = config.DefaultDomainConfig()
	}
	if opts.Clock == nil {
		opts.Clock = utils.RealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Saver{
		canvas:  canvas,
		repo:    repo,
		bus:     opts.Bus,
		clock:   opts.Clock,
		window:  opts.Config.DebounceWindow,
		display: opts.Config.SavedDisplayWindow,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		tracer:  otel.Tracer("canvas-backend.application.autosave"),
		status:  StatusIdle,
	}
	s.baseline, _ = s.serialize()
	s.unsubscribe = canvas.Subscribe(s.onChange)
	return s
}

func (s *Saver) onChange(change aggregates.Change) {
	if change.Kind == aggregates.ChangeLoaded {
		s.ResetBaseline()
		return
	}
	s.schedule()
}

// schedule restarts the debounce timer
func (s *Saver) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.window, s.fire)

	switch s.status {
	case StatusSaving:
		s.dirty = true
	case StatusError:
		// stays visible until a save succeeds
	default:
		s.stopRevertLocked()
		s.status = StatusPending
	}
}

func (s *Saver) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.save(ctx); err != nil {
		s.logger.Warn("Autosave failed", zap.String("canvas_id", s.canvas.ID()), zap.Error(err))
	}
}

// Flush saves immediately if there is anything to save
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.save(ctx)
}

func (s *Saver) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	snapshot, generation := s.canvas.SnapshotAt()
	payload, err := encode(snapshot)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	if bytes.Equal(payload, s.baseline) {
		if s.status == StatusPending {
			s.status = StatusIdle
		}
		s.mu.Unlock()
		s.metrics.RecordAutosave("skipped", 0)
		return nil
	}
	s.stopRevertLocked()
	s.status = StatusSaving
	s.dirty = false
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "Autosave.Save",
		trace.WithAttributes(attribute.String("canvas.id", s.canvas.ID())),
	)
	defer span.End()

	start := s.clock.Now()
	snapshot.UpdatedAt = start
	created := snapshot.ID == ""

	id, err := s.repo.Save(ctx, snapshot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordAutosave("error", s.clock.Now().Sub(start))
		s.fail(err)
		return err
	}
	current := s.canvas.Generation() == generation
	if created {
		current = s.canvas.AssignIDAt(id, generation)
	}

	now := s.clock.Now()
	s.metrics.RecordAutosave("saved", now.Sub(start))
	if !current {
		// A different canvas was loaded while saving; its baseline and ID stand.
		s.logger.Info("Canvas replaced during save",
			zap.String("saved_canvas_id", id),
			zap.String("canvas_id", s.canvas.ID()),
		)
		s.publish(ctx, events.NewCanvasSaved(id, snapshot.ClientID, len(snapshot.Nodes), len(snapshot.Edges), created, now))
		return nil
	}

	s.mu.Lock()
	s.baseline = payload
	s.lastErr = ""
	s.lastSavedAt = &now
	if s.dirty {
		s.status = StatusPending
	} else {
		s.status = StatusSaved
		s.revert = s.clock.AfterFunc(s.display, s.revertToIdle)
	}
	s.mu.Unlock()

	s.logger.Debug("Canvas saved",
		zap.String("canvas_id", id),
		zap.Int("nodes", len(snapshot.Nodes)),
		zap.Int("edges", len(snapshot.Edges)),
	)
	s.publish(ctx, events.NewCanvasSaved(id, snapshot.ClientID, len(snapshot.Nodes), len(snapshot.Edges), created, now))
	return nil
}

func (s *Saver) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusError
	s.lastErr = err.Error()
	s.dirty = false
}

func (s *Saver) revertToIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusSaved {
		s.status = StatusIdle
	}
}

func (s *Saver) stopRevertLocked() {
	if s.revert != nil {
		s.revert.Stop()
		s.revert = nil
	}
}

// ResetBaseline takes the current canvas as saved. Pending saves are dropped.
func (s *Saver) ResetBaseline() {
	payload, err := s.serialize()
	if err != nil {
		s.logger.Warn("Cannot serialize canvas for baseline", zap.Error(err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.stopRevertLocked()
	s.baseline = payload
	s.status = StatusIdle
	s.lastErr = ""
	s.dirty = false
}

// State returns the current save state
func (s *Saver) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Status:      s.status,
		CanvasID:    s.canvas.ID(),
		LastSavedAt: s.lastSavedAt,
		Error:       s.lastErr,
	}
}

// Close stops listening to the canvas and flushes pending changes
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.unsubscribe()
	return s.Flush(ctx)
}

func (s *Saver) serialize() ([]byte, error) {
	return encode(s.canvas.Snapshot())
}

func encode(snap aggregates.Snapshot) ([]byte, error) {
	return json.Marshal(persisted{Nodes: snap.Nodes, Edges: snap.Edges, Name: snap.Name})
}

func (s *Saver) publish(ctx context.Context, evt events.DomainEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.logger.Warn("Failed to publish save event", zap.Error(err))
	}
}
