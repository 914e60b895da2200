package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/prepdesk/prepdesk-backend/internal/middleware"
	"github.com/prepdesk/prepdesk-backend/internal/repository"
	"github.com/prepdesk/prepdesk-backend/internal/response"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// HistoryHandler serves the persisted attempt history.
type HistoryHandler struct {
	attempts *repository.AttemptRepository
	log      zerolog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(attempts *repository.AttemptRepository, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		attempts: attempts,
		log:      log.With().Str("component", "history_handler").Logger(),
	}
}

// ListAttempts godoc
// GET /api/v1/history?page=1&per_page=20
// Lists the caller's finished attempts, newest first.
func (h *HistoryHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)

	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(c, "per_page", defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	attempts, total, err := h.attempts.ListByUser(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", claims.UserID).Msg("List attempts failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}

	response.SuccessWithPagination(c, http.StatusOK, attempts, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
