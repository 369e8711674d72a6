package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type fakeCache struct {
	applied []events.RoundEvent
	err     error
}

func (c *fakeCache) Apply(_ context.Context, ev events.RoundEvent) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	c.applied = append(c.applied, ev)
	return true, nil
}

type fakeBroadcaster struct{ payloads [][]byte }

func (b *fakeBroadcaster) Broadcast(_ context.Context, p []byte) error {
	b.payloads = append(b.payloads, p)
	return nil
}

func roundMsg(t *testing.T, offset int64, typ string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(events.RoundEvent{Type: typ, Round: events.RoundSnapshot{RoundID: "r-1", Phase: "OPEN"}, Version: 1})
	require.NoError(t, err)
	return kafka.Message{Topic: "round_events", Offset: offset, Key: []byte("r-1"), Value: b}
}

func TestHandle_CachesAndBroadcasts(t *testing.T) {
	cache, bc := &fakeCache{}, &fakeBroadcaster{}
	p := &Processor{Log: zap.NewNop(), Cache: cache, Broadcaster: bc, DLQ: &fakeWriter{}}

	m := roundMsg(t, 1, events.RoundOpened)
	require.NoError(t, p.Handle(context.Background(), m))

	require.Len(t, cache.applied, 1)
	assert.Equal(t, "r-1", cache.applied[0].Round.RoundID)
	require.Len(t, bc.payloads, 1)
	assert.Equal(t, m.Value, bc.payloads[0])
}

func TestHandle_PoisonGoesToDLQ(t *testing.T) {
	dlq := &fakeWriter{}
	bc := &fakeBroadcaster{}
	var stages []string
	p := &Processor{Log: zap.NewNop(), Cache: &fakeCache{}, Broadcaster: bc, DLQ: dlq,
		OnError: func(s string) { stages = append(stages, s) }}

	bad := kafka.Message{Topic: "round_events", Partition: 0, Offset: 7, Value: []byte("{not json")}
	require.NoError(t, p.Handle(context.Background(), bad))

	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, bad.Value, dlq.msgs[0].Value)
	assert.Empty(t, bc.payloads)
	assert.Equal(t, []string{"decode"}, stages)

	headers := map[string]string{}
	for _, h := range dlq.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "round_events/0/7", headers["dlq_source"])
}

func TestHandle_DLQFailureKeepsMessageUncommitted(t *testing.T) {
	p := &Processor{Log: zap.NewNop(), Cache: &fakeCache{}, Broadcaster: &fakeBroadcaster{},
		DLQ: &fakeWriter{err: errors.New("broker down")}}

	err := p.Handle(context.Background(), kafka.Message{Value: []byte(`{"type":"ROUND_OPENED"}`)})
	require.Error(t, err)
}

func TestHandle_CacheFailureStillBroadcasts(t *testing.T) {
	bc := &fakeBroadcaster{}
	p := &Processor{Log: zap.NewNop(), Cache: &fakeCache{err: errors.New("redis down")}, Broadcaster: bc}

	require.NoError(t, p.Handle(context.Background(), roundMsg(t, 1, events.RoundClosed)))
	assert.Len(t, bc.payloads, 1)
}

func TestRun_CommitsProcessedMessages(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		roundMsg(t, 1, events.RoundOpened),
		{Offset: 2, Value: []byte("garbage")},
		roundMsg(t, 3, events.RoundBettingClosed),
	}}
	p := &Processor{Log: zap.NewNop(), Reader: reader, Cache: &fakeCache{}, Broadcaster: &fakeBroadcaster{}, DLQ: &fakeWriter{}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []int64{1, 2, 3}, reader.commits())
}
