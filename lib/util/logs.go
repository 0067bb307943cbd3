package util

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// SetLogLevel applies a textual log level to a logger, defaulting to error
// for unknown values.
func SetLogLevel(logger *logrus.Logger, level string) {
	switch strings.ToLower(level) {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.ErrorLevel)
	}
}
