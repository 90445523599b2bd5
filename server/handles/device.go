package handles

import (
	"github.com/gin-gonic/gin"

	"github.com/smsdesk-org/smsdesk/internal/command"
	"github.com/smsdesk-org/smsdesk/internal/device"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/server/common"
)

func ListDevices(c *gin.Context) {
	catalog, ws, err := common.GetConsole(c).Devices()
	if err != nil {
		common.Error(c, err)
		return
	}
	devices, err := catalog.List(c.Request.Context(), ws)
	if err != nil {
		common.Error(c, err)
		return
	}
	devices = device.Search(devices, c.Query("keyword"))
	if devices == nil {
		devices = []model.Device{}
	}
	common.SuccessResp(c, devices)
}

type DeviceResp struct {
	model.Device
	Online     bool                    `json:"online"`
	LastSeen   string                  `json:"lastSeen"`
	Forwarding [2]command.ForwardState `json:"forwarding"`
}

func GetDevice(c *gin.Context) {
	con := common.GetConsole(c)
	catalog, ws, err := con.Devices()
	if err != nil {
		common.Error(c, err)
		return
	}
	d, err := catalog.Get(c.Request.Context(), ws, c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return
	}
	now := con.Now()
	resp := DeviceResp{
		Device:   d,
		Online:   d.Online(now),
		LastSeen: device.LastOnlineText(&d, now),
	}
	if cmds, err := con.Commands(); err == nil {
		history, err := cmds.CallForward.History(c.Request.Context(), d.ID)
		if err != nil {
			common.Error(c, err)
			return
		}
		resp.Forwarding = command.ForwardingStatus(history)
	}
	common.SuccessResp(c, resp)
}

func DeviceMessages(c *gin.Context) {
	catalog, ws, err := common.GetConsole(c).Devices()
	if err != nil {
		common.Error(c, err)
		return
	}
	msgs, err := catalog.Messages(c.Request.Context(), ws, c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return
	}
	if msgs == nil {
		msgs = []model.SMS{}
	}
	common.SuccessResp(c, msgs)
}

// AllMessages is the SMS feed of every device, newest first.
func AllMessages(c *gin.Context) {
	catalog, ws, err := common.GetConsole(c).Devices()
	if err != nil {
		common.Error(c, err)
		return
	}
	msgs, err := catalog.AllMessages(c.Request.Context(), ws)
	if err != nil {
		common.Error(c, err)
		return
	}
	if msgs == nil {
		msgs = []model.SMS{}
	}
	common.SuccessResp(c, msgs)
}
