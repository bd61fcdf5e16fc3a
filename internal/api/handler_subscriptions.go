package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medtime-companion/internal/model"
)

// subscriptionRequest accepts both the browser's PushSubscription.toJSON()
// shape ({endpoint, keys: {p256dh, auth}}) and flat keys.
type subscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	P256DH   string `json:"p256dh"`
	Auth     string `json:"auth"`
	Keys     struct {
		P256DH string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (r subscriptionRequest) toModel(now time.Time) (model.PushSubscription, bool) {
	sub := model.PushSubscription{
		Endpoint:  strings.TrimSpace(r.Endpoint),
		P256DH:    firstNonEmpty(r.Keys.P256DH, r.P256DH),
		Auth:      firstNonEmpty(r.Keys.Auth, r.Auth),
		CreatedAt: now,
	}
	return sub, sub.Endpoint != "" && sub.P256DH != "" && sub.Auth != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// PutSubscription registers a browser for local alarm notifications. A known
// endpoint only gets its keys refreshed.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	sub, ok := req.toModel(time.Now().UTC())
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint and keys are required"})
		return
	}

	err := h.DB.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(&sub).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusCreated)
}

// DeleteSubscription unregisters an endpoint given in the body or as ?endpoint=.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	endpoint, _ := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if endpoint == "" {
		var req subscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Endpoint) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
			return
		}
		endpoint = strings.TrimSpace(req.Endpoint)
	}

	if err := h.DB.WithContext(c.Request.Context()).Delete(&model.PushSubscription{}, "endpoint = ?", endpoint).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// rawQueryParam reads key without URL-decoding; push endpoints are stored
// exactly as the browser produced them.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription reports whether ?endpoint= is registered. Without an
// endpoint it returns how many browsers receive local notifications.
func (h *Handler) GetSubscription(c *gin.Context) {
	db := h.DB.WithContext(c.Request.Context())

	endpoint, _ := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if endpoint == "" {
		var count int64
		if err := db.Model(&model.PushSubscription{}).Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": count, "enabled": h.WebPush != nil && h.WebPush.VAPIDPublicKey != ""})
		return
	}

	var sub model.PushSubscription
	if err := db.First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoint": sub.Endpoint, "created_at": sub.CreatedAt})
}
