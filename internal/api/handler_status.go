package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medtime-companion/internal/model"
	"medtime-companion/internal/poller"
)

type statusResponse struct {
	poller.Snapshot
	Address string `json:"address"`
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{Snapshot: h.Indicator.Snapshot(), Address: h.Link.BaseAddress()})
}

type activeResponse struct {
	Active bool               `json:"active"`
	Alarm  *model.ActiveAlarm `json:"alarm,omitempty"`
}

// GetActive handles GET /api/active.
func (h *Handler) GetActive(c *gin.Context) {
	a, ok := h.Poller.Active()
	if !ok {
		c.JSON(http.StatusOK, activeResponse{})
		return
	}
	c.JSON(http.StatusOK, activeResponse{Active: true, Alarm: &a})
}

type confirmRequest struct {
	ID *int64 `json:"id"`
}

// ConfirmActive handles POST /api/active/confirm.
func (h *Handler) ConfirmActive(c *gin.Context) {
	var req confirmRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := h.Poller.Confirm(c.Request.Context(), req.ID); err != nil {
		abortDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmed": true})
}
