package session

import (
	"context"
	"fmt"
	"time"

	"canvas-backend/application/services/analysis"
	"canvas-backend/application/services/generation"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"

	"go.uber.org/zap"
)

// JobKind names the pipeline a job runs
type JobKind string

const (
	JobGenerate   JobKind = "generate"
	JobRegenerate JobKind = "regenerate"
	JobEditImage  JobKind = "edit_image"
	JobAnalyze    JobKind = "analyze"
)

// JobStatus is the lifecycle of a background job
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// JobRetention is how long a finished job stays queryable
const JobRetention = 15 * time.Minute

// Job is a pipeline run detached from the request that started it
type Job struct {
	ID         string                `json:"id"`
	Kind       JobKind               `json:"kind"`
	NodeID     string                `json:"node_id,omitempty"`
	Status     JobStatus             `json:"status"`
	Outcome    *generation.Outcome   `json:"outcome,omitempty"`
	Batch      *analysis.BatchResult `json:"batch,omitempty"`
	Error      string                `json:"error,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
}

// StartGenerate runs a generator in the background
func (s *Session) StartGenerate(generatorID string) (Job, error) {
	return s.startOutcome(JobGenerate, generatorID, func(ctx context.Context) generation.Outcome {
		return s.services.Orchestrator.Generate(ctx, s.canvas, generatorID)
	})
}

// StartRegenerate re-runs the producer of an output in the background
func (s *Session) StartRegenerate(outputID string) (Job, error) {
	return s.startOutcome(JobRegenerate, outputID, func(ctx context.Context) generation.Outcome {
		return s.services.Orchestrator.Regenerate(ctx, s.canvas, outputID)
	})
}

// StartEditImage runs an image editor in the background
func (s *Session) StartEditImage(editorID string) (Job, error) {
	return s.startOutcome(JobEditImage, editorID, func(ctx context.Context) generation.Outcome {
		return s.services.Orchestrator.EditImage(ctx, s.canvas, editorID)
	})
}

// StartAnalyze analyzes a set of images in the background
func (s *Session) StartAnalyze(targets []analysis.Target, kind entities.AnalysisKind) (Job, error) {
	if len(targets) == 0 {
		return Job{}, pkgerrors.NewValidationError("at least one image is required")
	}
	return s.start(JobAnalyze, targets[0].NodeID, func(ctx context.Context, job *Job) {
		result := s.services.Analysis.AnalyzeBatch(ctx, s.canvas, targets, kind, nil)
		job.Batch = &result
		if result.QuotaExceeded {
			job.Status = JobFailed
			job.Error = pkgerrors.NewQuotaError("analysis").Error()
			return
		}
		if result.Failed > 0 && result.Succeeded == 0 {
			job.Status = JobFailed
			job.Error = fmt.Sprintf("%d of %d analyses failed", result.Failed, result.Total)
			return
		}
		job.Status = JobSucceeded
	})
}

// Job returns a snapshot of a job
func (s *Session) Job(id string) (Job, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, pkgerrors.NewNotFoundError("job")
	}
	return *job, nil
}

// Jobs returns snapshots of every job of the session
func (s *Session) Jobs() []Job {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	return out
}

// Wait blocks until every running job has finished
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) startOutcome(kind JobKind, nodeID string, run func(context.Context) generation.Outcome) (Job, error) {
	if _, ok := s.canvas.Node(nodeID); !ok {
		return Job{}, pkgerrors.NewNotFoundError("node")
	}
	return s.start(kind, nodeID, func(ctx context.Context, job *Job) {
		outcome := run(ctx)
		job.Outcome = &outcome
		if outcome.Succeeded() {
			job.Status = JobSucceeded
			return
		}
		job.Status = JobFailed
		job.Error = outcome.Message
	})
}

func (s *Session) start(kind JobKind, nodeID string, run func(context.Context, *Job)) (Job, error) {
	now := s.services.Clock.Now()
	job := &Job{
		ID:        valueobjects.NewID(),
		Kind:      kind,
		NodeID:    nodeID,
		Status:    JobRunning,
		StartedAt: now,
	}

	// Registering under jobsMu orders wg.Add before the Wait in close
	s.jobsMu.Lock()
	if s.closed {
		s.jobsMu.Unlock()
		return Job{}, pkgerrors.NewConflictError("session is closed")
	}
	s.pruneJobsLocked(now)
	s.jobs[job.ID] = job
	snapshot := *job
	s.wg.Add(1)
	s.jobsMu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Job panicked",
					zap.String("job_id", job.ID),
					zap.Any("panic", r),
				)
				s.finish(job.ID, func(j *Job) {
					j.Status = JobFailed
					j.Error = "internal error"
				})
			}
		}()

		result := Job{ID: job.ID, Kind: kind, NodeID: nodeID}
		run(s.ctx, &result)
		s.finish(job.ID, func(j *Job) {
			j.Status = result.Status
			j.Outcome = result.Outcome
			j.Batch = result.Batch
			j.Error = result.Error
		})
		s.logger.Debug("Job finished",
			zap.String("job_id", job.ID),
			zap.String("kind", string(kind)),
			zap.String("status", string(result.Status)),
		)
	}()
	return snapshot, nil
}

// pruneJobsLocked drops jobs that finished more than JobRetention ago
func (s *Session) pruneJobsLocked(now time.Time) {
	for id, job := range s.jobs {
		if job.FinishedAt != nil && now.Sub(*job.FinishedAt) > JobRetention {
			delete(s.jobs, id)
		}
	}
}

func (s *Session) finish(id string, apply func(*Job)) {
	now := s.services.Clock.Now()
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if job, ok := s.jobs[id]; ok {
		apply(job)
		job.FinishedAt = &now
	}
}
