package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetVAPIDPublicKey hands browsers the application server key. Without keys
// the service runs with local notifications switched off.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	key := ""
	if h.WebPush != nil {
		key = h.WebPush.VAPIDPublicKey
	}
	if key == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "local notifications are disabled", "enabled": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": key, "enabled": true})
}
