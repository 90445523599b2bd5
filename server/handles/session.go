package handles

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/directory"
	"github.com/smsdesk-org/smsdesk/server/common"
)

func ListSessions(c *gin.Context) {
	dir, err := common.GetConsole(c).Directory()
	if err != nil {
		common.Error(c, err)
		return
	}
	common.SuccessResp(c, dir.Snapshot())
}

type EvictSessionReq struct {
	Token string `json:"token" binding:"required"`
}

// EvictSession force logs out one session. Evicting the current session
// signs this tab out.
func EvictSession(c *gin.Context) {
	var req EvictSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	dir, err := common.GetConsole(c).Directory()
	if err != nil {
		common.Error(c, err)
		return
	}
	if err := dir.ForceLogout(c.Request.Context(), req.Token); err != nil {
		common.Error(c, err)
		return
	}
	common.SuccessResp(c)
}

type EvictUserReq struct {
	UserID string `json:"user_id" binding:"required"`
}

func EvictUser(c *gin.Context) {
	var req EvictUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResp(c, err, 400)
		return
	}
	dir, err := common.GetConsole(c).Directory()
	if err != nil {
		common.Error(c, err)
		return
	}
	n, err := dir.ForceLogoutUser(c.Request.Context(), req.UserID)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.SuccessResp(c, gin.H{"evicted": n})
}

func ListMembers(c *gin.Context) {
	dir, err := common.GetConsole(c).Directory()
	if err != nil {
		common.Error(c, err)
		return
	}
	members, err := dir.Members(c.Request.Context())
	if err != nil {
		common.Error(c, err)
		return
	}
	common.SuccessResp(c, members)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
)

// StreamSessions pushes a directory snapshot on every change until the
// client leaves or the session ends. The last frame is the console state.
func StreamSessions(c *gin.Context) {
	con := common.GetConsole(c)
	dir, err := con.Directory()
	if err != nil {
		common.Error(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("failed upgrade sessions stream: %v", err)
		return
	}
	defer conn.Close()

	// only the latest snapshot matters
	updates := make(chan directory.Snapshot, 1)
	off := dir.OnChange(func(s directory.Snapshot) {
		select {
		case <-updates:
		default:
		}
		updates <- s
	})
	defer off()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(v)
	}
	if err := write(dir.Snapshot()); err != nil {
		return
	}
	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case s := <-updates:
			if err := write(s); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-dir.Done():
			_ = write(con.State())
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
				time.Now().Add(streamWriteWait))
			return
		case <-gone:
			return
		}
	}
}
