package model

import "time"

type DeviceInfo struct {
	DeviceName     string `json:"deviceName"`
	Manufacturer   string `json:"manufacturer"`
	Model          string `json:"model,omitempty"`
	AndroidVersion string `json:"androidVersion,omitempty"`
}

type SimInfo struct {
	Sim1Number   string `json:"sim1_number,omitempty"`
	Sim2Number   string `json:"sim2_number,omitempty"`
	Sim1Operator string `json:"sim1_operator,omitempty"`
	Sim2Operator string `json:"sim2_operator,omitempty"`
	PrimarySim   int    `json:"primarySim,omitempty"`
}

// Device is a managed handset at <workspace>/<deviceId>.
type Device struct {
	ID         string     `json:"id"`
	DeviceInfo DeviceInfo `json:"deviceInfo"`
	SimInfo    SimInfo    `json:"simInfo"`
	LastOnline int64      `json:"lastOnline,omitempty"`
	SmsCount   int        `json:"smsCount"`
}

// DeviceOnlineWindow is how recent lastOnline must be for a device to show online.
const DeviceOnlineWindow = 3 * time.Minute

func (d *Device) Online(now time.Time) bool {
	return d.LastOnline > 0 && now.UnixMilli()-d.LastOnline < DeviceOnlineWindow.Milliseconds()
}

func (d *Device) Name() string {
	if d.DeviceInfo.DeviceName == "" {
		return "Unknown Device"
	}
	return d.DeviceInfo.DeviceName
}

const (
	SmsReceived = 1
	SmsSent     = 2
)

// SMS is a captured message at <workspace>/<deviceId>/sms/<id>.
type SMS struct {
	ID         string `json:"id"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName,omitempty"`
	Sender     string `json:"sender"`
	Message    string `json:"message"`
	DateTime   string `json:"dateTime,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	Type       int    `json:"type"`
	SimSlot    int    `json:"simSlot,omitempty"`
}
