package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func bufferedLogger() (*bytes.Buffer, Logger) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&logrus.JSONFormatter{})
	return &buf, FromLogrus(base)
}

func TestSampledLoggerBurstThenDrop(t *testing.T) {
	buf, base := bufferedLogger()
	l := NewSampledLogger(base).WithSampler("decode", time.Hour, 3, 0)

	for i := 0; i < 10; i++ {
		l.InfoWithCategory("decode", "frame decoded", map[string]interface{}{"i": i})
	}

	assert.Equal(t, 3, strings.Count(buf.String(), "frame decoded"))
	st := l.Stats()["decode"]
	assert.Equal(t, int64(10), st.Total)
	assert.Equal(t, int64(3), st.Logged)
	assert.Equal(t, int64(7), st.Dropped)
}

func TestSampledLoggerSampleRate(t *testing.T) {
	buf, base := bufferedLogger()
	l := NewSampledLogger(base).WithSampler("read", time.Hour, 1, 0.5)

	for i := 0; i < 5; i++ {
		l.DebugWithCategory("read", "read frame", nil)
	}

	// one burst message then every second one
	assert.Equal(t, 3, strings.Count(buf.String(), "read frame"))
}

func TestSampledLoggerErrorsAndUnknownCategories(t *testing.T) {
	buf, base := bufferedLogger()
	l := NewSampledLogger(base).WithSampler("sync", time.Hour, 0, 0)

	for i := 0; i < 4; i++ {
		l.ErrorWithCategory("sync", "sync failed", nil)
		l.WarnWithCategory(CategoryNegotiation, "fell back to UYVY", nil)
	}

	out := buf.String()
	assert.Equal(t, 4, strings.Count(out, "sync failed"))
	assert.Equal(t, 4, strings.Count(out, "fell back to UYVY"))
	assert.Contains(t, out, `"category":"negotiation"`)
}

func TestSampledLoggerDerivedSharesSamplers(t *testing.T) {
	buf, base := bufferedLogger()
	l := NewDecodeLogger(base)
	derived := l.WithField("stream", 1).(*SampledLogger)

	for i := 0; i < 20; i++ {
		derived.InfoWithCategory(CategoryDecode, "decoded", nil)
	}

	assert.Less(t, strings.Count(buf.String(), "decoded"), 20)
	assert.Equal(t, int64(20), l.Stats()[CategoryDecode].Total)
}
