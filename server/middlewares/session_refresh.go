package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/smsdesk-org/smsdesk/server/common"
)

// SessionRefresh touches presence after successful requests, so a busy tab
// stays live between heartbeats.
func SessionRefresh(c *gin.Context) {
	c.Next()
	if c.Writer.Status() >= 400 || c.IsAborted() {
		return
	}
	if _, ok := c.Get("user"); !ok {
		return
	}
	common.GetConsole(c).Touch(c.Request.Context())
}
