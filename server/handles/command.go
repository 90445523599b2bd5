package handles

import (
	"github.com/gin-gonic/gin"

	"github.com/smsdesk-org/smsdesk/internal/command"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/server/common"
)

// submit queues the request body as a command for the device in the path.
// With ?wait=true it also waits for the agent's answer.
func submit[P, R any](c *gin.Context, pick func(*command.Commands) *command.Outbox[P, R]) {
	var req P
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	con := common.GetConsole(c)
	cmds, err := con.Commands()
	if err != nil {
		common.Error(c, err)
		return
	}
	o := pick(cmds)
	deviceID := c.Param("id")
	if c.Query("wait") == "true" {
		res, err := o.Send(c.Request.Context(), deviceID, req, con.Config().Command.Timeout)
		if err != nil {
			common.Error(c, err)
			return
		}
		common.SuccessResp(c, res)
		return
	}
	id, err := o.Submit(c.Request.Context(), deviceID, req)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.SuccessResp(c, gin.H{"id": id, "status": model.StatusPending})
}

func SendSms(c *gin.Context) {
	submit(c, func(cmds *command.Commands) *command.Outbox[model.SmsCommand, string] {
		return cmds.Sms
	})
}

func CallForward(c *gin.Context) {
	submit(c, func(cmds *command.Commands) *command.Outbox[model.CallForwardCommand, string] {
		return cmds.CallForward
	})
}

func RunUssd(c *gin.Context) {
	submit(c, func(cmds *command.Commands) *command.Outbox[model.UssdCommand, string] {
		return cmds.Ussd
	})
}

func CheckOnline(c *gin.Context) {
	cmds, err := common.GetConsole(c).Commands()
	if err != nil {
		common.Error(c, err)
		return
	}
	res, err := cmds.Online.Check(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return
	}
	common.SuccessResp(c, res)
}

func history[P, R any](c *gin.Context, o *command.Outbox[P, R]) {
	records, err := o.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return
	}
	if records == nil {
		records = []command.Record[P, R]{}
	}
	common.SuccessResp(c, records)
}

func CommandHistory(c *gin.Context) {
	cmds, err := common.GetConsole(c).Commands()
	if err != nil {
		common.Error(c, err)
		return
	}
	switch c.Param("kind") {
	case cmds.Sms.Kind():
		history(c, cmds.Sms)
	case cmds.CallForward.Kind():
		history(c, cmds.CallForward)
	case cmds.Ussd.Kind():
		history(c, cmds.Ussd)
	case cmds.Online.Outbox().Kind():
		history(c, cmds.Online.Outbox())
	default:
		common.ErrorStrResp(c, "unknown command kind", 400)
	}
}
