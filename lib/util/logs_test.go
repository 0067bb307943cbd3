package util

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func Test_SetLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"DEBUG", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"error", logrus.ErrorLevel},
		{"other", logrus.ErrorLevel},
		{"", logrus.ErrorLevel},
	}

	for _, tc := range tests {
		logger := logrus.New()
		SetLogLevel(logger, tc.level)
		assert.Equal(t, tc.expected, logger.GetLevel(), "level %q", tc.level)
	}
}
