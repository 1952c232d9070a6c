package reindex

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Add(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Add(25)
	tracker.Add(25)
	tracker.Add(60)

	snap := tracker.Snapshot()
	assert.Equal(t, 100, snap.Done, "progress is capped at total")
	assert.Greater(t, snap.Elapsed, time.Duration(0))

	output := buf.String()
	assert.Contains(t, output, "Reindexed 25/100 chunks (25.0%)")
	assert.Contains(t, output, "100/100")
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1000, 100)

	tracker.Start()
	tracker.Add(50)
	assert.Empty(t, buf.String(), "below the interval nothing is reported")

	tracker.Add(50)
	assert.Equal(t, 1, strings.Count(buf.String(), "\r"))
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Add(75)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "100/100", "finish should set to total")
	assert.Contains(t, output, "100.0%")
	assert.True(t, strings.HasSuffix(output, "\n"), "finish should print newline")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 1)

	tracker.Add(5)
	tracker.Finish()
	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Snapshot().Done)
}

func TestProgress(t *testing.T) {
	p := Progress{Done: 50, Total: 200, Elapsed: 2 * time.Second}
	assert.InDelta(t, 25.0, p.Percent(), 1e-9)
	assert.InDelta(t, 25.0, p.Rate(), 1e-9)

	assert.InDelta(t, 100.0, Progress{}.Percent(), 1e-9)
	assert.Zero(t, Progress{Done: 1}.Rate())
}

func TestNewProgressTracker_NilWriter(t *testing.T) {
	tracker := NewProgressTracker(nil, 10, 0)
	tracker.Start()
	tracker.Add(10)
	tracker.Finish()
	assert.Equal(t, 10, tracker.Snapshot().Done)
}
