package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent(typ model.EventType) model.Event {
	ev := model.NewEvent(typ, "offering-1", time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	ev.UserID = "alice"
	ev.Status = model.StatusRegistered
	return ev
}

// --- Fakes ---

type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (s *recordingSink) Deliver(_ context.Context, ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type deadlineSink struct {
	sawDeadline chan bool
}

func (s *deadlineSink) Deliver(ctx context.Context, _ model.Event) error {
	_, ok := ctx.Deadline()
	s.sawDeadline <- ok
	<-ctx.Done()
	return ctx.Err()
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

// --- Dispatcher ---

func TestDispatcher_DeliversToEverySink(t *testing.T) {
	failing := &recordingSink{err: errors.New("smtp down")}
	ok := &recordingSink{}
	d := NewDispatcher(8, time.Second, quietLogger(), failing, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Publish(context.Background(), sampleEvent(model.EventEnrollmentCreated), sampleEvent(model.EventEnrollmentPromoted))

	require.Eventually(t, func() bool { return ok.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, failing.count(), "a failing sink does not stop delivery")

	cancel()
	require.NoError(t, <-done)
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(8, time.Second, quietLogger(), sink)

	for range 3 {
		d.Publish(context.Background(), sampleEvent(model.EventEnrollmentCancelled))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Equal(t, 3, sink.count())
}

func TestDispatcher_DropsAfterStop(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(1, time.Second, quietLogger(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	d.Publish(context.Background(), sampleEvent(model.EventEnrollmentCreated))
	finished := make(chan struct{})
	go func() {
		d.Publish(context.Background(), sampleEvent(model.EventEnrollmentCreated))
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked after the dispatcher stopped")
	}
	assert.Zero(t, sink.count())
}

func TestDispatcher_AppliesDeliveryTimeout(t *testing.T) {
	sink := &deadlineSink{sawDeadline: make(chan bool, 1)}
	d := NewDispatcher(1, 20*time.Millisecond, quietLogger(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Publish(context.Background(), sampleEvent(model.EventEnrollmentExcluded))
	assert.True(t, <-sink.sawDeadline)

	cancel()
	require.NoError(t, <-done)
}

// --- Sinks ---

func TestKafkaSink_Deliver(t *testing.T) {
	fw := &fakeWriter{}
	s := NewKafkaSinkWithWriter(fw)
	ev := sampleEvent(model.EventEnrollmentPromoted)

	require.NoError(t, s.Deliver(context.Background(), ev))
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, "offering-1", string(msg.Key))
	assert.Equal(t, ev.OccurredAt, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "enrollment.promoted", string(msg.Headers[0].Value))

	var got model.Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, "alice", got.UserID)
}

func TestKafkaSink_WriteError(t *testing.T) {
	s := NewKafkaSinkWithWriter(&fakeWriter{err: errors.New("broker unavailable")})

	err := s.Deliver(context.Background(), sampleEvent(model.EventEnrollmentCreated))
	assert.ErrorContains(t, err, "broker unavailable")
}

func TestRabbitSink_Deliver(t *testing.T) {
	ch := &fakeChannel{}
	s := NewRabbitSinkWithChannel(ch, "enrollment")
	ev := sampleEvent(model.EventOfferingCancelled)
	ev.Recipients = []string{"alice", "bob"}

	require.NoError(t, s.Deliver(context.Background(), ev))

	assert.Equal(t, "enrollment", ch.exchange)
	assert.Equal(t, "offering.cancelled", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, ev.ID, ch.msg.MessageId)

	var got model.Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, []string{"alice", "bob"}, got.Recipients)

	require.NoError(t, s.Close())
	assert.True(t, ch.closed)
}

func TestLogSink_Deliver(t *testing.T) {
	assert.NoError(t, NewLogSink(quietLogger()).Deliver(context.Background(), sampleEvent(model.EventEnrollmentApproved)))
}
