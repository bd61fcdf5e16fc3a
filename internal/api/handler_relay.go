package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medtime-companion/internal/model"
	"medtime-companion/internal/relay"
)

// GetRelay handles GET /api/relay.
func (h *Handler) GetRelay(c *gin.Context) {
	c.JSON(http.StatusOK, h.Relay.Settings().Get())
}

// PutRelay handles PUT /api/relay.
func (h *Handler) PutRelay(c *gin.Context) {
	var req model.RelaySettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logPersistError("relay settings", h.Relay.Settings().Save(c.Request.Context(), req))
	c.JSON(http.StatusOK, h.Relay.Settings().Get())
}

func relayFailure(c *gin.Context, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, relay.ErrInvalidRecipient) || errors.Is(err, relay.ErrNotConfigured) {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"sent": false, "error": err.Error()})
}

// SendRelayTest handles POST /api/relay/test.
func (h *Handler) SendRelayTest(c *gin.Context) {
	if err := h.Relay.SendTest(c.Request.Context()); err != nil {
		relayFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// SendRelaySummary handles POST /api/relay/summary.
func (h *Handler) SendRelaySummary(c *gin.Context) {
	var enabled []model.Alarm
	for _, a := range h.Alarms.List() {
		if a.Enabled {
			enabled = append(enabled, a)
		}
	}
	if err := h.Relay.SendSummary(c.Request.Context(), enabled); err != nil {
		relayFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true, "alarms": len(enabled)})
}
