package ui

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	l := newLogger(false, &buf)
	l.Debug("hidden")
	l.WithField("chapter", "Chapter 1").Info("visible")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), `chapter="Chapter 1"`)

	assert.Equal(t, logrus.DebugLevel, newLogger(true, &buf).GetLevel())
}

func TestSummary_Print(t *testing.T) {
	var buf bytes.Buffer
	Summary{
		Chapters: 3, Completed: 2, Failed: 1,
		Images: 40, Skipped: 1, Broken: 2,
		Bytes:   3 * 1024 * 1024,
		Elapsed: 61 * time.Second,
	}.Print(&buf)

	out := buf.String()
	assert.Contains(t, out, "Chapters: 2/3 completed (1 failed, 0 without images)")
	assert.Contains(t, out, "Images:   40 saved, 1 skipped, 2 failed")
	assert.Contains(t, out, "3.0 MiB")
	assert.Contains(t, out, "1m1s")
}

func TestProgressHandle(t *testing.T) {
	pm := NewProgressManager(io.Discard)

	overall := pm.Overall(2)

	h := pm.Register("Ch.1")
	h.Update(0, 10, 0)
	h.Update(10, 10, 2048)
	h.MarkDone()
	h.MarkDone()
	h.Update(3, 10, 0)
	assert.Equal(t, int64(10), h.total.Load())
	assert.Equal(t, int64(2048), h.bytes.Load())

	a := pm.Register("Ch.2")
	a.Abort()

	overall.Set(1, 2)
	overall.Set(2, 2)

	done := make(chan struct{})
	go func() {
		pm.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("progress did not finish")
	}
}
