package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/prepdesk/prepdesk-backend/internal/config"
	"github.com/prepdesk/prepdesk-backend/internal/middleware"
	"github.com/prepdesk/prepdesk-backend/internal/model"
	"github.com/prepdesk/prepdesk-backend/internal/response"
	"github.com/prepdesk/prepdesk-backend/internal/service"
	"github.com/prepdesk/prepdesk-backend/internal/validator"
)

// AttemptHandler exposes the exam attempt lifecycle over REST. Live
// interaction (answers, navigation, the clock) happens on the WebSocket
// stream; these endpoints start, inspect, retry, and abandon attempts.
type AttemptHandler struct {
	host *service.AttemptHost
	log  zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(host *service.AttemptHost, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		host: host,
		log:  log.With().Str("component", "attempt_handler").Logger(),
	}
}

// ListPresets godoc
// GET /api/v1/exams
// Lists the bookable mock exams.
func (h *AttemptHandler) ListPresets(c *gin.Context) {
	response.Success(c, http.StatusOK, config.Presets)
}

// StartAttempt godoc
// POST /api/v1/attempts
// Starts a new attempt from a preset. Question generation runs in the
// background; the returned snapshot is in the LOADING phase.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	preset, ok := config.FindPreset(req.PresetID)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	session, err := h.host.StartAttempt(claims.UserID, preset)
	if err != nil {
		if errors.Is(err, service.ErrAttemptInProgress) {
			response.Fail(c, http.StatusConflict, response.ErrAttemptInProgress)
			return
		}
		h.log.Error().Err(err).Str("user_id", claims.UserID).Msg("Start attempt failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusAccepted, session.Snapshot())
}

// GetState godoc
// GET /api/v1/attempts/current
// Returns a snapshot of the caller's current attempt. Used on page load
// and reconnect to rebuild the client view.
func (h *AttemptHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)

	session, err := h.host.Session(claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveAttempt)
		return
	}

	response.Success(c, http.StatusOK, session.Snapshot())
}

// RetryAttempt godoc
// POST /api/v1/attempts/current/retry
// Re-runs question generation for an attempt whose load failed.
func (h *AttemptHandler) RetryAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	if err := h.host.Retry(claims.UserID); err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveAttempt):
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveAttempt)
		case errors.Is(err, service.ErrAttemptNotFailed):
			response.Fail(c, http.StatusConflict, response.ErrAttemptNotFailed)
		default:
			h.log.Error().Err(err).Str("user_id", claims.UserID).Msg("Retry attempt failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	session, err := h.host.Session(claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveAttempt)
		return
	}
	response.Success(c, http.StatusAccepted, session.Snapshot())
}

// AbandonAttempt godoc
// DELETE /api/v1/attempts/current
// Tears the caller's attempt down without scoring it.
func (h *AttemptHandler) AbandonAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	if err := h.host.Abandon(claims.UserID); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveAttempt)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "abandoned"})
}
