package utils

import (
	log "github.com/sirupsen/logrus"
)

// Log is the logger for bootstrap and CLI output.
var Log = log.New()
