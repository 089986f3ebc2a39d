package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, parseLevel(""))
	assert.Equal(t, logrus.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, parseLevel(" warn "))
	assert.Equal(t, logrus.InfoLevel, parseLevel("chatty"))
}

func TestNewLoggerHonoursEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	log := NewLogger()
	assert.Equal(t, logrus.ErrorLevel, log.GetLevel())
}
