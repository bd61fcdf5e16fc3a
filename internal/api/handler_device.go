package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medtime-companion/internal/device"
	"medtime-companion/internal/discovery"
)

// GetDevice handles GET /api/device.
func (h *Handler) GetDevice(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"address": h.Link.BaseAddress(), "factoryAddress": h.FactoryAddress})
}

type putDeviceRequest struct {
	Address string `json:"address" binding:"required"`
}

// PutDevice handles PUT /api/device.
func (h *Handler) PutDevice(c *gin.Context) {
	var req putDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if device.NormalizeAddress(req.Address) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}
	logPersistError("device address", device.SaveAddress(c.Request.Context(), h.KV, h.Link, req.Address))
	c.JSON(http.StatusOK, gin.H{"address": h.Link.BaseAddress()})
}

// DeleteDevice handles DELETE /api/device.
func (h *Handler) DeleteDevice(c *gin.Context) {
	logPersistError("device address", device.ResetAddress(c.Request.Context(), h.KV, h.Link, h.FactoryAddress))
	c.JSON(http.StatusOK, gin.H{"address": h.Link.BaseAddress()})
}

// ListDeviceAlarms handles GET /api/device/alarms.
func (h *Handler) ListDeviceAlarms(c *gin.Context) {
	list, err := h.Link.ListAlarms(c.Request.Context())
	if err != nil {
		abortDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type configureRequest struct {
	SSID string `json:"ssid" binding:"required"`
	Pass string `json:"pass"`
}

// ConfigureDevice handles POST /api/device/configure. On success the
// device's new address is adopted.
func (h *Handler) ConfigureDevice(c *gin.Context) {
	var req configureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Link.ConfigureNetwork(c.Request.Context(), req.SSID, req.Pass)
	if err != nil {
		abortDeviceError(c, err)
		return
	}
	if !res.OK {
		c.JSON(http.StatusBadGateway, gin.H{"error": "device rejected the network settings"})
		return
	}
	if res.NewAddress != "" {
		logPersistError("device address", device.SaveAddress(c.Request.Context(), h.KV, h.Link, res.NewAddress))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "address": h.Link.BaseAddress()})
}

// ResetDevice handles POST /api/device/reset.
func (h *Handler) ResetDevice(c *gin.Context) {
	if err := h.Link.Reset(c.Request.Context()); err != nil {
		abortDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type discoverRequest struct {
	LocalIP string `json:"localIp" binding:"required"`
}

// DiscoverDevice handles POST /api/device/discover.
func (h *Handler) DiscoverDevice(c *gin.Context) {
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	addr, err := h.Scanner.Discover(c.Request.Context(), req.LocalIP)
	switch {
	case errors.Is(err, discovery.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, discovery.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logPersistError("device address", device.SaveAddress(c.Request.Context(), h.KV, h.Link, addr))
	c.JSON(http.StatusOK, gin.H{"address": h.Link.BaseAddress()})
}
