package handles

import (
	"github.com/gin-gonic/gin"

	"github.com/smsdesk-org/smsdesk/server/common"
)

type LoginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	st, err := common.GetConsole(c).Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.SuccessResp(c, st)
}

type RegisterReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Confirm  string `json:"confirm" binding:"required"`
	DBPath   string `json:"db_path"`
}

func Register(c *gin.Context) {
	var req RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	st, err := common.GetConsole(c).Register(c.Request.Context(), req.Email, req.Password, req.Confirm, req.DBPath)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.SuccessResp(c, st)
}

func Logout(c *gin.Context) {
	n, err := common.GetConsole(c).Logout(c.Request.Context())
	if err != nil {
		common.Error(c, err)
		return
	}
	common.SuccessResp(c, n)
}

// CurrentState reports the session of this tab, and the notice of the
// last teardown when signed out.
func CurrentState(c *gin.Context) {
	common.SuccessResp(c, common.GetConsole(c).State())
}
