package bootstrap

import (
	"io"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/cmd/flags"
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

func init() {
	formatter := &logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("SMSDESK_NO_COLOR") == "1" {
		formatter.DisableColors = true
	} else {
		formatter.ForceColors = true
		formatter.EnvironmentOverrideColors = true
	}
	logrus.SetFormatter(formatter)
	utils.Log.SetFormatter(formatter)
}

func verbose() bool {
	return flags.Debug || flags.Dev
}

func levelFor() logrus.Level {
	if verbose() {
		return logrus.DebugLevel
	}
	return logrus.InfoLevel
}

// logWriter is where every logger of the process ends up: the rotating
// file when enabled, stdout otherwise or additionally when asked.
func logWriter(c conf.Log) io.Writer {
	if !c.Enable {
		return os.Stderr
	}
	var w io.Writer = &lumberjack.Logger{
		Filename:   c.Name,
		MaxSize:    c.MaxSize, // megabytes
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge, // days
		Compress:   c.Compress,
	}
	if verbose() || flags.LogStd {
		w = io.MultiWriter(os.Stdout, w)
	}
	return w
}

// Log points logrus, the CLI logger, the std logger and gin at one
// writer and applies the level flags.
func Log() {
	w := logWriter(conf.Conf.Log)
	for _, l := range []*logrus.Logger{logrus.StandardLogger(), utils.Log} {
		l.SetLevel(levelFor())
		l.SetReportCaller(verbose())
		l.SetOutput(w)
	}
	log.SetOutput(w)
	gin.DefaultWriter = w
	gin.DefaultErrorWriter = w
	utils.Log.Debugf("log level %s, file logging %v", levelFor(), conf.Conf.Log.Enable)
}
