package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	topic    string
	payloads []interface{}
}

func (c *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	c.topic = topic
	c.payloads = append(c.payloads, payload)
	return nil
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).With(String("component", "trainer"))
	l.Info("Training stage completed", String("stage", "market"), Float64("loss", 1.5), Int("iterations", 10))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "trainer", entry["component"])
	assert.Equal(t, "market", entry["stage"])
	assert.Equal(t, 1.5, entry["loss"])
	assert.Equal(t, float64(10), entry["iterations"])
}

func TestDigestGroupsWarnings(t *testing.T) {
	l := Nop()
	d := NewDigest("run-1", 2)
	l.AttachDigest(d)

	for _, sym := range []string{"AAA", "BBB", "CCC"} {
		l.Warn("Dropping symbol with too few prices", String("symbol", sym))
	}
	l.Error("Exchange rate unavailable", Error(errors.New("timeout")))
	l.Info("not collected")

	snap := d.Snapshot()
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, 3, snap.Entries[0].Count)
	assert.Len(t, snap.Entries[0].Samples, 2)
	assert.Equal(t, "AAA", snap.Entries[0].Samples[0]["symbol"])
	assert.Equal(t, "error", snap.Entries[1].Level)

	pub := &capturePublisher{}
	require.NoError(t, d.Flush(context.Background(), pub, "volatile.diagnostics"))
	assert.Equal(t, "volatile.diagnostics", pub.topic)
	require.Len(t, pub.payloads, 1)
	assert.Empty(t, d.Snapshot().Entries)

	require.NoError(t, d.Flush(context.Background(), pub, "volatile.diagnostics"))
	assert.Len(t, pub.payloads, 1)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stderr"})
	assert.Error(t, err)
}
