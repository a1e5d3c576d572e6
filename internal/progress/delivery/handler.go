package delivery

import (
	"net/http"

	"invoice-backend/internal/progress/domain"
	"invoice-backend/internal/progress/usecase"
	"invoice-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProgressHandler struct {
	tracker usecase.Tracker
}

func NewProgressHandler(tracker usecase.Tracker) *ProgressHandler {
	return &ProgressHandler{tracker: tracker}
}

// Status returns one job's progress. Jobs of other users look missing.
// GET /api/import/status/:job
func (h *ProgressHandler) Status(c *gin.Context) {
	p, err := h.tracker.Get(c.Request.Context(), c.Param("job"))
	if err != nil {
		logger.Named("progress").Error("load progress failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load progress"})
		return
	}
	if p == nil || p.UserID != c.GetString("userID") {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// Latest returns the caller's most recent job, or an idle record.
// GET /api/import/status
func (h *ProgressHandler) Latest(c *gin.Context) {
	userID := c.GetString("userID")
	p, err := h.tracker.LatestForUser(c.Request.Context(), userID)
	if err != nil {
		logger.Named("progress").Error("load progress failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load progress"})
		return
	}
	if p == nil {
		p = &domain.Progress{UserID: userID, State: domain.StateIdle}
	}
	c.JSON(http.StatusOK, p)
}
