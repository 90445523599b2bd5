package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/smsdesk-org/smsdesk/internal/console"
	"github.com/smsdesk-org/smsdesk/server/handles"
	"github.com/smsdesk-org/smsdesk/server/middlewares"
)

func Init(e *gin.Engine, con *console.Console) {
	Cors(e)
	e.Use(middlewares.Console(con))
	api := e.Group("/api")
	api.GET("/me", handles.CurrentState)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", handles.Login)
	authGroup.POST("/register", handles.Register)

	auth := api.Group("", middlewares.Auth, middlewares.SessionRefresh)
	auth.POST("/auth/logout", handles.Logout)
	auth.POST("/me/password", handles.ChangePassword)

	auth.GET("/sessions", handles.ListSessions)
	auth.GET("/sessions/ws", handles.StreamSessions)
	auth.POST("/sessions/evict", handles.EvictSession)
	auth.GET("/users", handles.ListMembers)
	auth.POST("/users/evict", handles.EvictUser)

	auth.GET("/sms", handles.AllMessages)
	dev := auth.Group("/devices")
	dev.GET("", handles.ListDevices)
	dev.GET("/:id", handles.GetDevice)
	dev.GET("/:id/sms", handles.DeviceMessages)
	dev.POST("/:id/sms", handles.SendSms)
	dev.POST("/:id/call_forward", handles.CallForward)
	dev.POST("/:id/ussd", handles.RunUssd)
	dev.POST("/:id/online", handles.CheckOnline)
	dev.GET("/:id/commands/:kind", handles.CommandHistory)
}

func Cors(r *gin.Engine) {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{"*"}
	config.AllowMethods = []string{"*"}
	r.Use(cors.New(config))
}
