package logger

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3}:DEBUG:snowbot: `)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", "snowbot", &buf)

	log.Debug("check_tomorrow: Sending requested information")

	line := buf.String()
	assert.Regexp(t, linePrefix, line)
	assert.True(t, strings.HasSuffix(line, "check_tomorrow: Sending requested information\n"))
}

func TestLineFormatter_Format(t *testing.T) {
	f := &LineFormatter{Name: "snowbot"}
	entry := &logrus.Entry{
		Time:    time.Date(2021, 1, 17, 9, 41, 12, 345_000_000, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "fetch failed\n",
		Data:    logrus.Fields{"resort": "fernie", "component": "weather_service"},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "2021-01-17 09:41:12,345:WARNING:snowbot: fetch failed component=weather_service resort=fernie\n", string(out))
}

func TestLevelName(t *testing.T) {
	tests := []struct {
		level logrus.Level
		want  string
	}{
		{logrus.TraceLevel, "DEBUG"},
		{logrus.DebugLevel, "DEBUG"},
		{logrus.InfoLevel, "INFO"},
		{logrus.WarnLevel, "WARNING"},
		{logrus.ErrorLevel, "ERROR"},
		{logrus.FatalLevel, "CRITICAL"},
		{logrus.PanicLevel, "CRITICAL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelName(tt.level))
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", "snowbot", &buf)

	log.Debug("hidden")
	log.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), ":INFO:snowbot: shown")
	assert.False(t, IsDebugEnabled(log))

	require.NoError(t, SetLevel(log, "debug"))
	assert.True(t, IsDebugEnabled(log))
	assert.Error(t, SetLevel(log, "loud"))
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("invalid", "snowbot", &buf)

	log.Debug("hidden")
	log.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", "snowbot", &buf).WithFields(map[string]interface{}{"a": 1, "b": "two"})

	log.Infof("hello %s", "world")

	assert.Contains(t, buf.String(), "hello world a=1 b=two")
}
