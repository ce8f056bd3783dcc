package handlers

import (
	"io"
	"net/http"
	"strconv"

	"canvas-backend/application/services/analysis"
	"canvas-backend/application/services/generation"
	"canvas-backend/application/services/media"
	"canvas-backend/domain/core/entities"
	pkgerrors "canvas-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MaxUploadBytes bounds a single uploaded file
const MaxUploadBytes = 50 << 20

// PipelineHandler starts extraction, analysis and generation runs
type PipelineHandler struct {
	logger *zap.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(logger *zap.Logger) *PipelineHandler {
	return &PipelineHandler{logger: logger}
}

// ExtractRequest represents the request body for an extraction. An empty
// input extracts the files already attached to a file source.
type ExtractRequest struct {
	Input string `json:"input"`
}

// AnalyzeRequest represents the request body for a batch image analysis
type AnalyzeRequest struct {
	Kind    entities.AnalysisKind `json:"kind" validate:"required,oneof=ocr json"`
	Targets []analysis.Target     `json:"targets" validate:"required,min=1,dive"`
}

// Generate handles POST /nodes/{nodeID}/generate. With ?wait=true the run
// completes within the request and its outcome is returned.
func (h *PipelineHandler) Generate(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	nodeID := chi.URLParam(r, "nodeID")
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if _, ok := sess.Canvas().Node(nodeID); !ok {
			respondError(w, h.logger, pkgerrors.NewNotFoundError("node"))
			return
		}
		outcome := sess.Generate(r.Context(), nodeID)
		respondJSON(w, outcomeStatus(outcome), outcome)
		return
	}
	job, err := sess.StartGenerate(nodeID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, job)
}

// Regenerate handles POST /outputs/{outputID}/regenerate
func (h *PipelineHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	job, err := sessionFrom(r).StartRegenerate(chi.URLParam(r, "outputID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, job)
}

// EditImage handles POST /nodes/{nodeID}/edit-image
func (h *PipelineHandler) EditImage(w http.ResponseWriter, r *http.Request) {
	job, err := sessionFrom(r).StartEditImage(chi.URLParam(r, "nodeID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, job)
}

// Extract handles POST /nodes/{nodeID}/extract
func (h *PipelineHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	result, err := sessionFrom(r).Extract(r.Context(), chi.URLParam(r, "nodeID"), req.Input)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// AnalyzeImage handles POST /nodes/{nodeID}/images/{imageID}/analyze?kind=ocr|json
func (h *PipelineHandler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	kind := entities.AnalysisKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = entities.AnalysisOCR
	}
	if kind != entities.AnalysisOCR && kind != entities.AnalysisStyle {
		respondError(w, h.logger, pkgerrors.NewValidationError("kind must be one of: ocr json"))
		return
	}
	sess := sessionFrom(r)
	target := analysis.Target{NodeID: chi.URLParam(r, "nodeID"), ImageID: chi.URLParam(r, "imageID")}
	if err := sess.Analyze(r.Context(), target, kind); err != nil {
		respondError(w, h.logger, err)
		return
	}
	node, _ := sess.Canvas().Node(target.NodeID)
	respondJSON(w, http.StatusOK, node)
}

// AnalyzeBatch handles POST /analyze
func (h *PipelineHandler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	job, err := sessionFrom(r).StartAnalyze(req.Targets, req.Kind)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, job)
}

// Upload handles POST /nodes/{nodeID}/files as multipart form field "file"
func (h *PipelineHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, h.logger, pkgerrors.NewValidationError("multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, h.logger, pkgerrors.NewValidationError("failed to read upload: "+err.Error()))
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	item, err := sessionFrom(r).Upload(r.Context(), chi.URLParam(r, "nodeID"), media.Upload{
		Name:     header.Filename,
		MimeType: mimeType,
		Data:     data,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// ListJobs handles GET /jobs
func (h *PipelineHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"jobs": sessionFrom(r).Jobs()})
}

// GetJob handles GET /jobs/{jobID}
func (h *PipelineHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := sessionFrom(r).Job(chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func outcomeStatus(o generation.Outcome) int {
	switch o.Kind {
	case generation.OutcomeSucceeded:
		return http.StatusOK
	case generation.OutcomeConnectionsRequired, generation.OutcomeContentRequired:
		return http.StatusBadRequest
	case generation.OutcomeQuotaExceeded:
		return http.StatusPaymentRequired
	default:
		return http.StatusBadGateway
	}
}
