package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishBatchEncodesValues(t *testing.T) {
	w := &fakeWriter{}
	reg := prometheus.NewRegistry()
	p := newProducer(w, "snappy", reg)

	err := p.PublishBatch(context.Background(), "volatile.predictions", []Message{
		{Key: []byte("AAPL"), Value: map[string]float64{"score": 1.5}},
		{Key: []byte("MSFT"), Value: "raw"},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "volatile.predictions", w.msgs[0].Topic)
	assert.Equal(t, "AAPL", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"score":1.5}`, string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.metrics.msgs.WithLabelValues("volatile.predictions", "snappy", "ok")))

	require.NoError(t, p.PublishMessage(context.Background(), "volatile.diagnostics", []byte(`{}`)))
	assert.Nil(t, w.msgs[2].Key)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := newProducer(&fakeWriter{err: boom}, "none", nil)

	err := p.Publish(context.Background(), "t", []byte("k"), "v")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, p.PublishBatch(context.Background(), "t", nil))
}

func TestNewProducerValidates(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)

	_, err = NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("brotli"))
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("none"))
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
