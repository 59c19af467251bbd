package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/ingex/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{"json stdout", config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, false},
		{"text stderr", config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}, false},
		{"bad level", config.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Level, log.GetLevel().String())
		})
	}
}

func TestServiceFieldsStamped(t *testing.T) {
	log, err := New(&config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	WithSession(log, "abc").Info("session started")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ingex-player", line["service"])
	assert.Equal(t, "abc", line["session_id"])
	assert.Equal(t, "session started", line["message"])
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "player.log")
	log, err := New(&config.LoggingConfig{
		Level: "info", Format: "text", Output: path, MaxSize: 1, MaxBackups: 1, MaxAge: 1,
	})
	require.NoError(t, err)

	WithComponent(log, "matrix").Info("connected")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "component=matrix")
}

func TestLogrusAdapter(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})

	l := FromLogrus(base).WithFields(StreamFields(2, 1, "dv")).WithField("frame", 7)
	l.Warnf("late by %d", 3)

	out := buf.String()
	assert.Contains(t, out, `"source_stream":2`)
	assert.Contains(t, out, `"connector":"dv"`)
	assert.Contains(t, out, `"frame":7`)
	assert.Contains(t, out, "late by 3")
}

func TestDiscardLogger(t *testing.T) {
	l := Discard.WithField("a", 1).WithError(assert.AnError)
	l.Error("nothing")
	l.Log(logrus.InfoLevel, "nothing")
}
