package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{
			name: "file with rotation",
			config: Config{
				Level:      "info",
				File:       filepath.Join(t.TempDir(), "slackline.log"),
				MaxSize:    1,
				MaxBackups: 1,
				MaxAge:     1,
			},
		},
		{
			name:   "stdout only",
			config: Config{Level: "debug", EnableStdout: true},
		},
		{
			name:   "invalid level",
			config: Config{Level: "loud"},
		},
		{
			name:   "no writers",
			config: Config{Level: "info"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, InitLogger(tt.config))
			assert.NotNil(t, GetLogger())
		})
	}
}

func TestInitLogger_CreatesLogDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	err := InitLogger(Config{Level: "info", File: filepath.Join(dir, "test.log")})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLogLevelSetting(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"invalid", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			require.NoError(t, InitLogger(Config{Level: tt.level}))
			assert.Equal(t, tt.expected, GetLogger().GetLevel())
		})
	}
}

func TestFormatterSelection(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   logrus.Formatter
	}{
		{"debug defaults to text", Config{Level: "debug"}, &logrus.TextFormatter{}},
		{"info defaults to json", Config{Level: "info"}, &logrus.JSONFormatter{}},
		{"explicit text", Config{Level: "info", Format: "text"}, &logrus.TextFormatter{}},
		{"explicit json", Config{Level: "debug", Format: "json"}, &logrus.JSONFormatter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, InitLogger(tt.config))
			assert.IsType(t, tt.want, GetLogger().Formatter)
		})
	}
}

func TestGetLogger_ReturnsSameInstance(t *testing.T) {
	assert.Same(t, GetLogger(), GetLogger())
}

func TestLevelFiltering(t *testing.T) {
	require.NoError(t, InitLogger(Config{Level: "info", Format: "text"}))
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Debug("debug message")
	Info("info message")
	Warnf("warn %s", "message")
	Errorf("error %d", 42)

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error 42")
}

func TestComponentAndFields(t *testing.T) {
	require.NoError(t, InitLogger(Config{Level: "info", Format: "json"}))
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Component("rtm").WithField("channel", "C1").Info("frame-sent")
	WithFields(logrus.Fields{"user": "U1", "action": "join"}).Info("user-updated")

	output := buf.String()
	assert.Contains(t, output, `"component":"rtm"`)
	assert.Contains(t, output, `"channel":"C1"`)
	assert.Contains(t, output, `"user":"U1"`)
	assert.Contains(t, output, "user-updated")
}
