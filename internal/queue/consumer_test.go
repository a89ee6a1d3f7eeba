package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ackRecorder struct {
	acked, requeued, dropped int
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	if requeue {
		a.requeued++
	} else {
		a.dropped++
	}
	return nil
}

func (a *ackRecorder) Reject(uint64, bool) error { return nil }

func TestDispatch_Outcomes(t *testing.T) {
	c := &Consumer{log: zap.NewNop()}
	cases := []struct {
		name string
		err  error
		want ackRecorder
	}{
		{"ok", nil, ackRecorder{acked: 1}},
		{"drop", fmt.Errorf("bad body: %w", ErrDrop), ackRecorder{dropped: 1}},
		{"retry", errors.New("mongo down"), ackRecorder{requeued: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &ackRecorder{}
			d := amqp.Delivery{
				Acknowledger: rec,
				RoutingKey:   KeyUserLoggedIn,
				Body:         []byte(`{}`),
				Headers:      amqp.Table{HeaderRequestID: "req-1"},
			}
			var got Message
			c.dispatch(context.Background(), d, func(_ context.Context, m Message) error {
				got = m
				return tc.err
			})
			assert.Equal(t, tc.want, *rec)
			assert.Equal(t, Message{Key: KeyUserLoggedIn, Body: []byte(`{}`), RequestID: "req-1"}, got)
		})
	}
}

func TestRun_ClosedDeliveriesIsAnError(t *testing.T) {
	c := &Consumer{log: zap.NewNop()}
	rec := &ackRecorder{}
	msgs := make(chan amqp.Delivery, 2)
	msgs <- amqp.Delivery{Acknowledger: rec, RoutingKey: KeyUserRegistered}
	msgs <- amqp.Delivery{Acknowledger: rec, RoutingKey: KeyUserLoggedIn}
	close(msgs)

	var mu sync.Mutex
	seen := 0
	err := c.run(context.Background(), msgs, 3, func(context.Context, Message) error {
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	})
	require.ErrorIs(t, err, ErrDeliveriesClosed)
	assert.Equal(t, 2, seen)
}

func TestRun_CancelIsClean(t *testing.T) {
	c := &Consumer{log: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())
	msgs := make(chan amqp.Delivery)

	errc := make(chan error, 1)
	go func() { errc <- c.run(ctx, msgs, 2, func(context.Context, Message) error { return nil }) }()
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestConsume_Uninitialized(t *testing.T) {
	var c *Consumer
	require.Error(t, c.Consume(context.Background(), 1, nil))
}

func TestNoop(t *testing.T) {
	p := NewNoop()
	require.NoError(t, p.Publish(context.Background(), KeyUserRegistered, UserRegistered{UserID: "u"}, ""))
	require.NoError(t, p.Close())
}
