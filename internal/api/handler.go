package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"medtime-companion/internal/alarms"
	"medtime-companion/internal/alertlog"
	"medtime-companion/internal/device"
	"medtime-companion/internal/discovery"
	"medtime-companion/internal/poller"
	"medtime-companion/internal/relay"
	"medtime-companion/internal/store"
)

// Deps are the components the handlers call into.
type Deps struct {
	Alarms         *alarms.Store
	Alerts         *alertlog.Log
	Poller         *poller.ActivePoller
	Indicator      *poller.Indicator
	Link           *device.Link
	KV             store.Store
	Relay          *relay.Service
	Scanner        *discovery.Scanner
	DB             *gorm.DB
	WebPush        *webpush.Options
	FactoryAddress string
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Deps
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{Deps: d}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid alarm ID"})
		return 0, false
	}
	return id, true
}

// deviceStatus maps device failures to gateway errors.
func deviceStatus(err error) int {
	switch {
	case errors.Is(err, device.ErrUnreachable):
		return http.StatusGatewayTimeout
	case errors.Is(err, device.ErrRejected), errors.Is(err, device.ErrMalformed), errors.Is(err, poller.ErrNotAcknowledged):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortDeviceError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(deviceStatus(err), gin.H{"error": err.Error()})
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func logPersistError(what string, err error) {
	if err != nil {
		log.Printf("Failed to persist %s: %v", what, err)
	}
}
