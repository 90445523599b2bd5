package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{errors.WithStack(errs.InvalidPhone), http.StatusBadRequest},
		{errors.WithStack(errs.InvalidCredentials), http.StatusUnauthorized},
		{errors.WithStack(errs.AccountBlocked), http.StatusForbidden},
		{errors.WithMessage(errs.ObjectNotFound, "session"), http.StatusNotFound},
		{errors.WithStack(errs.SessionActive), http.StatusConflict},
		{errors.New("dial tcp: refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, ErrorCode(tc.err), tc.err.Error())
	}
}

func TestErrorHidesServerFaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, errors.New("redis: connection pool timeout"))

	var resp Resp[any]
	require.NoError(t, utils.Json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "Internal Server Error", resp.Message)
	assert.True(t, c.IsAborted())
}
