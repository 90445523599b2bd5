package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NewPushKey returns a unique key that sorts in creation order.
func NewPushKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", errors.WithStack(err)
	}
	return id.String(), nil
}

// NewSessionToken returns sess_<unix-ms>_<random>.
func NewSessionToken(now time.Time) string {
	r := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "sess_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + r
}

// NewUserID returns an opaque user id.
func NewUserID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
