package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/smsdesk-org/smsdesk/internal/console"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/server/common"
)

// Console makes con available to every handler.
func Console(con *console.Console) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(common.ConsoleKey, con)
		c.Next()
	}
}

// Auth rejects requests while this tab has no active session.
func Auth(c *gin.Context) {
	st := common.GetConsole(c).State()
	if st.Identity == nil {
		common.ErrorWithDataResp(c, errs.NotSignedIn, 401, st.Notice)
		return
	}
	c.Set("user", st.Identity)
	c.Set("workspace", st.Workspace)
	c.Next()
}
