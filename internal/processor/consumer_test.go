package processor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartretail/replenisher/internal/supplier"
)

type fakeQueue struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []kafka.Message
}

func (q *fakeQueue) FetchMessage(ctx context.Context) (kafka.Message, error) {
	q.mu.Lock()
	if len(q.messages) > 0 {
		msg := q.messages[0]
		q.messages = q.messages[1:]
		q.mu.Unlock()
		return msg, nil
	}
	q.mu.Unlock()
	// Drained: block like a real reader until the consumer shuts down.
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (q *fakeQueue) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.committed = append(q.committed, msgs...)
	return nil
}

func (q *fakeQueue) committedOffsets() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]int64, len(q.committed))
	for i, m := range q.committed {
		out[i] = m.Offset
	}
	return out
}

func consumerCfg(workers int) ConsumerConfig {
	return ConsumerConfig{
		Workers:         workers,
		MessageTimeout:  time.Minute,
		MaxRedeliveries: 3,
		RedeliveryDelay: 2 * time.Millisecond,
	}
}

func runConsumer(t *testing.T, q *fakeQueue, p *Processor, cfg ConsumerConfig) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := NewConsumer(q, p, cfg)

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	// Wait for the queue to drain, then stop.
	deadline := time.After(5 * time.Second)
	for {
		q.mu.Lock()
		remaining := len(q.messages)
		q.mu.Unlock()
		if remaining == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("queue did not drain")
		case <-time.After(10 * time.Millisecond):
		}
	}
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not shut down")
	}
}

func exhaustedErr() error {
	return &supplier.DispatchError{
		Kind:          supplier.KindExhausted,
		Attempts:      3,
		CorrelationID: "corr-1",
		Err:           fmt.Errorf("supplier returned status 500"),
	}
}

func TestConsumerCommitsOnSuccess(t *testing.T) {
	q := &fakeQueue{messages: []kafka.Message{
		{Offset: 1, Value: eventBody("corr-1")},
	}}
	runConsumer(t, q, New(successDispatcher(), nil, nil), consumerCfg(1))

	assert.Equal(t, []int64{1}, q.committedOffsets())
}

func TestConsumerCommitsPoisonAfterDeadLettering(t *testing.T) {
	dlq := &fakeDeadLetter{}
	q := &fakeQueue{messages: []kafka.Message{
		{Offset: 5, Value: []byte(`garbage`)},
	}}
	runConsumer(t, q, New(successDispatcher(), dlq, nil), consumerCfg(1))

	assert.Equal(t, []int64{5}, q.committedOffsets(), "poison messages must not redeliver")
	assert.Len(t, dlq.parked, 1)
}

func TestConsumerRetriesFailedMessageBeforeMovingOn(t *testing.T) {
	// The group offset only moves forward, so committing offset 10 while 9 is
	// unresolved would consume 9 too. The failing message must be re-run to
	// completion before the worker commits anything later.
	disp := successDispatcher()
	disp.transient = 2
	disp.transientErr = exhaustedErr()
	q := &fakeQueue{messages: []kafka.Message{
		{Offset: 9, Value: eventBody("corr-1")},
		{Offset: 10, Value: eventBody("corr-2")},
	}}
	runConsumer(t, q, New(disp, nil, nil), consumerCfg(1))

	assert.Equal(t, []int64{9, 10}, q.committedOffsets(),
		"the failing message recovers and both offsets commit in order")
	assert.Len(t, disp.requests, 4, "offset 9 is dispatched three times, offset 10 once")
}

func TestConsumerParksExhaustedMessageAndCommits(t *testing.T) {
	disp := &fakeDispatcher{attempts: 3, err: exhaustedErr()}
	dlq := &fakeDeadLetter{}
	q := &fakeQueue{messages: []kafka.Message{
		{Offset: 7, Value: eventBody("corr-1")},
	}}
	cfg := consumerCfg(1)
	cfg.MaxRedeliveries = 2
	runConsumer(t, q, New(disp, dlq, nil), cfg)

	assert.Equal(t, []int64{7}, q.committedOffsets(),
		"a parked message is committed so the group can move on")
	require.Len(t, dlq.parked, 1)
	assert.Equal(t, []string{FailureKindExhausted}, dlq.kinds)
	assert.Len(t, disp.requests, 2, "one dispatch per redelivery round")
}

func TestConsumerLeavesUnparkableFailureUncommitted(t *testing.T) {
	// No dead-letter topic: the worker gives the message up without
	// committing so the group redelivers it after a restart.
	disp := &fakeDispatcher{attempts: 3, err: exhaustedErr()}
	q := &fakeQueue{messages: []kafka.Message{
		{Offset: 9, Value: eventBody("corr-1")},
	}}
	cfg := consumerCfg(1)
	cfg.MaxRedeliveries = 2
	runConsumer(t, q, New(disp, nil, nil), cfg)

	assert.Empty(t, q.committedOffsets())
	assert.Len(t, disp.requests, 2)
}

func TestConsumerProcessesAllMessagesAcrossWorkers(t *testing.T) {
	disp := successDispatcher()
	var msgs []kafka.Message
	for i := 0; i < 20; i++ {
		msgs = append(msgs, kafka.Message{Offset: int64(i), Value: eventBody("corr-1")})
	}
	q := &fakeQueue{messages: msgs}
	runConsumer(t, q, New(disp, nil, nil), consumerCfg(4))

	assert.Len(t, q.committedOffsets(), 20)
	assert.Len(t, disp.requests, 20)
}

func TestConsumerLiveness(t *testing.T) {
	c := NewConsumer(&fakeQueue{}, New(successDispatcher(), nil, nil), consumerCfg(3))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	statuses := c.Liveness()
	require.Len(t, statuses, 3)
	for _, ws := range statuses {
		assert.WithinDuration(t, time.Now().UTC(), ws.LastActive, 5*time.Second)
	}

	cancel()
	<-done
}
