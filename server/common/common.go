package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/cmd/flags"
	"github.com/smsdesk-org/smsdesk/internal/console"
	"github.com/smsdesk-org/smsdesk/internal/errs"
)

type Resp[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// ErrorResp is used to return error response
// @param l: if true, log error
func ErrorResp(c *gin.Context, err error, code int, l ...bool) {
	ErrorWithDataResp(c, err, code, nil, l...)
}

func ErrorWithDataResp(c *gin.Context, err error, code int, data interface{}, l ...bool) {
	if len(l) > 0 && l[0] {
		if flags.Debug || flags.Dev {
			log.Errorf("%+v", err)
		} else {
			log.Errorf("%v", err)
		}
	}
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		msg = http.StatusText(code)
	}
	c.JSON(200, Resp[interface{}]{
		Code:    code,
		Message: msg,
		Data:    data,
	})
	c.Abort()
}

func ErrorStrResp(c *gin.Context, str string, code int, l ...bool) {
	if len(l) != 0 && l[0] {
		log.Error(str)
	}
	c.JSON(200, Resp[interface{}]{
		Code:    code,
		Message: str,
		Data:    nil,
	})
	c.Abort()
}

// Error picks the response code from the error and logs server faults.
func Error(c *gin.Context, err error) {
	code := ErrorCode(err)
	ErrorResp(c, err, code, code >= http.StatusInternalServerError)
}

func ErrorCode(err error) int {
	switch {
	case errs.IsValidation(err),
		errors.Is(err, errs.PasswordMismatch),
		errors.Is(err, errs.PasswordTooShort),
		errors.Is(err, errs.InvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, errs.InvalidCredentials),
		errors.Is(err, errs.NotSignedIn),
		errors.Is(err, errs.SessionRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, errs.AccountBlocked),
		errors.Is(err, errs.WorkspaceNotBound):
		return http.StatusForbidden
	case errors.Is(err, errs.ObjectNotFound),
		errors.Is(err, errs.CommandNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.SessionActive),
		errors.Is(err, errs.EmailTaken),
		errors.Is(err, errs.NotPending):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func SuccessResp(c *gin.Context, data ...interface{}) {
	if len(data) == 0 {
		c.JSON(200, Resp[interface{}]{
			Code:    200,
			Message: "success",
			Data:    nil,
		})
		return
	}
	c.JSON(200, Resp[interface{}]{
		Code:    200,
		Message: "success",
		Data:    data[0],
	})
}

const ConsoleKey = "console"

func GetConsole(c *gin.Context) *console.Console {
	return c.MustGet(ConsoleKey).(*console.Console)
}
