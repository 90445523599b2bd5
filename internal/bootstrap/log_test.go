package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsdesk-org/smsdesk/cmd/flags"
	"github.com/smsdesk-org/smsdesk/internal/conf"
)

func TestLogWritesToFile(t *testing.T) {
	dir := t.TempDir()
	old := conf.Conf
	conf.Conf = conf.DefaultConfig(dir)
	t.Cleanup(func() {
		conf.Conf = old
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
	})

	Log()
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
	logrus.Info("presence started")
	b, err := os.ReadFile(filepath.Join(dir, "log/log.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "presence started")
}

func TestLogLevelFollowsFlags(t *testing.T) {
	flags.Debug = true
	t.Cleanup(func() { flags.Debug = false })
	assert.Equal(t, logrus.DebugLevel, levelFor())
	assert.Equal(t, os.Stderr, logWriter(conf.Log{Enable: false}))
}
