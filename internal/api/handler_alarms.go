package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medtime-companion/internal/alarms"
	"medtime-companion/internal/model"
	"medtime-companion/internal/parse"
)

type createAlarmRequest struct {
	Hour     model.ClockUnit `json:"hour"`
	Minute   model.ClockUnit `json:"minute"`
	Time     string          `json:"time"` // "HH:MM", overrides hour and minute
	Name     string          `json:"name"`
	LEDIndex int             `json:"led"`
}

// alarmResponse carries the local result and, separately, a failed push.
type alarmResponse struct {
	Alarm       *model.Alarm `json:"alarm,omitempty"`
	Armed       *model.Alarm `json:"armed,omitempty"`
	DeviceError string       `json:"deviceError,omitempty"`
}

func toResponse(res alarms.Result) alarmResponse {
	return alarmResponse{Alarm: res.Alarm, Armed: res.Armed, DeviceError: errorText(res.DeviceErr)}
}

// ListAlarms handles GET /api/alarms.
func (h *Handler) ListAlarms(c *gin.Context) {
	c.JSON(http.StatusOK, h.Alarms.List())
}

// CreateAlarm handles POST /api/alarms.
func (h *Handler) CreateAlarm(c *gin.Context) {
	var req createAlarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := alarms.Input{Hour: int(req.Hour), Minute: int(req.Minute), Name: req.Name, LEDIndex: req.LEDIndex}
	if req.Time != "" {
		clock, err := parse.ParseClock(req.Time)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "field": "time"})
			return
		}
		in.Hour, in.Minute = clock.Hour, clock.Minute
	}

	res, err := h.Alarms.Create(c.Request.Context(), in)
	if err != nil {
		var verr *alarms.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Error(), "field": verr.Field})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, toResponse(res))
}

// ToggleAlarm handles POST /api/alarms/:id/toggle.
func (h *Handler) ToggleAlarm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res, err := h.Alarms.Toggle(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toResponse(res))
}

// DeleteAlarm handles DELETE /api/alarms/:id.
func (h *Handler) DeleteAlarm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res, err := h.Alarms.Delete(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toResponse(res))
}

// SyncAlarms handles POST /api/alarms/sync.
func (h *Handler) SyncAlarms(c *gin.Context) {
	c.JSON(http.StatusOK, toResponse(h.Alarms.Sync(c.Request.Context())))
}

// ListAlerts handles GET /api/alerts.
func (h *Handler) ListAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.Alerts.List())
}

// ClearAlerts handles DELETE /api/alerts.
func (h *Handler) ClearAlerts(c *gin.Context) {
	h.Alerts.Clear(c.Request.Context())
	c.Status(http.StatusNoContent)
}
