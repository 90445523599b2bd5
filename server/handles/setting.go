package handles

import (
	"github.com/gin-gonic/gin"

	"github.com/smsdesk-org/smsdesk/server/common"
)

type ChangePasswordReq struct {
	Password string `json:"password" binding:"required"`
	Confirm  string `json:"confirm" binding:"required"`
}

// ChangePassword updates the password and ends every session of the user,
// this one included.
func ChangePassword(c *gin.Context) {
	var req ChangePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	n, err := common.GetConsole(c).ChangePassword(c.Request.Context(), req.Password, req.Confirm)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.SuccessResp(c, n)
}
