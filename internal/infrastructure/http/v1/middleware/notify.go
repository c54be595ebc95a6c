package middleware

import (
	"github.com/gin-gonic/gin"

	"factoryledger/internal/core/notify"
)

const collectorKey = "notifications"

// Notifications attaches a per-request collector for operator notifications.
func Notifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		col := &notify.Collector{}
		c.Request = c.Request.WithContext(notify.WithCollector(c.Request.Context(), col))
		c.Set(collectorKey, col)
		c.Next()
	}
}

// CollectedNotifications returns what services reported during this request.
func CollectedNotifications(c *gin.Context) []notify.Notification {
	if v, ok := c.Get(collectorKey); ok {
		if col, ok := v.(*notify.Collector); ok {
			return col.Items()
		}
	}
	return []notify.Notification{}
}
