package handlers

import (
	"context"
	"net/http"

	"canvas-backend/application/services/autosave"
	"canvas-backend/application/services/session"
	"canvas-backend/domain/core/aggregates"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type sessionKey struct{}

// SessionHandler handles session lifecycle and whole-canvas requests
type SessionHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Manager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// OpenSessionRequest represents the request body for opening a session
type OpenSessionRequest struct {
	ClientID string `json:"clientId" validate:"required,max=200"`
	CanvasID string `json:"canvasId,omitempty" validate:"omitempty,max=200"`
}

// SessionResponse describes an open session
type SessionResponse struct {
	SessionID string              `json:"sessionId"`
	Canvas    aggregates.Snapshot `json:"canvas"`
	Save      autosave.State      `json:"save"`
}

// LoadCanvasRequest represents the request body for loading a saved canvas
type LoadCanvasRequest struct {
	CanvasID string `json:"canvasId" validate:"required"`
}

// SwitchClientRequest represents the request body for switching client
type SwitchClientRequest struct {
	ClientID string `json:"clientId" validate:"required,max=200"`
}

// RenameRequest represents the request body for renaming the canvas
type RenameRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// SessionCtx resolves the {sessionID} URL parameter into the request context
func SessionCtx(sessions *session.Manager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Get(chi.URLParam(r, "sessionID"))
			if err != nil {
				respondError(w, logger, err)
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFrom(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return sess
}

func describe(sess *session.Session) SessionResponse {
	return SessionResponse{
		SessionID: sess.ID(),
		Canvas:    sess.Canvas().Snapshot(),
		Save:      sess.SaveState(),
	}
}

// Open handles POST /sessions
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	sess, err := h.sessions.Open(r.Context(), req.ClientID, req.CanvasID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, describe(sess))
}

// Close handles DELETE /sessions/{sessionID}
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /sessions/{sessionID}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, describe(sessionFrom(r)))
}

// Graph handles GET /sessions/{sessionID}/graph
func (h *SessionHandler) Graph(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sessionFrom(r).Canvas().Snapshot())
}

// Rename handles PUT /sessions/{sessionID}/name
func (h *SessionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	sessionFrom(r).Canvas().SetName(req.Name)
	w.WriteHeader(http.StatusNoContent)
}

// Load handles POST /sessions/{sessionID}/load
func (h *SessionHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req LoadCanvasRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	sess := sessionFrom(r)
	if err := sess.Load(r.Context(), req.CanvasID); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, describe(sess))
}

// SwitchClient handles POST /sessions/{sessionID}/client
func (h *SessionHandler) SwitchClient(w http.ResponseWriter, r *http.Request) {
	var req SwitchClientRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	sess := sessionFrom(r)
	if err := sess.SwitchClient(r.Context(), req.ClientID); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, describe(sess))
}

// ListCanvases handles GET /sessions/{sessionID}/canvases
func (h *SessionHandler) ListCanvases(w http.ResponseWriter, r *http.Request) {
	canvases, err := sessionFrom(r).List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"canvases": canvases})
}

// Save handles POST /sessions/{sessionID}/save
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := sess.Save(r.Context()); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.SaveState())
}

// SaveStatus handles GET /sessions/{sessionID}/save
func (h *SessionHandler) SaveStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sessionFrom(r).SaveState())
}
