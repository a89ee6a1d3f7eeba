package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	q    string
	log  *zap.Logger
}

func NewConsumer(url, exchange, queue string, keys []string, log *zap.Logger) (*Consumer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbit: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	fail := func(step string, err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	qd, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	for _, k := range keys {
		if err := ch.QueueBind(qd.Name, k, exchange, false, nil); err != nil {
			return fail("bind queue", err)
		}
	}
	return &Consumer{conn: conn, ch: ch, q: qd.Name, log: log}, nil
}

func (c *Consumer) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Consume runs workers until ctx is done or the broker closes the deliveries,
// in which case it returns ErrDeliveriesClosed. A handler error requeues the
// delivery, except ErrDrop which discards it.
func (c *Consumer) Consume(ctx context.Context, workers int, handle func(context.Context, Message) error) error {
	if c == nil || c.ch == nil {
		return errors.New("consumer is not initialized")
	}
	if err := c.ch.Qos(50, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	msgs, err := c.ch.Consume(c.q, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	return c.run(ctx, msgs, workers, handle)
}

// ErrDeliveriesClosed means the broker closed the delivery channel while the
// consumer was still wanted.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

func (c *Consumer) run(ctx context.Context, msgs <-chan amqp.Delivery, workers int, handle func(context.Context, Message) error) error {
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case d, ok := <-msgs:
					if !ok {
						return
					}
					c.dispatch(ctx, d, handle)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		<-done
		return nil
	case <-done:
		if ctx.Err() != nil {
			return nil
		}
		return ErrDeliveriesClosed
	}
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, handle func(context.Context, Message) error) {
	reqID, _ := d.Headers[HeaderRequestID].(string)
	err := handle(ctx, Message{Key: d.RoutingKey, Body: d.Body, RequestID: reqID})
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrDrop):
		c.log.Warn("dropping message", zap.String("key", d.RoutingKey), zap.String("request_id", reqID), zap.Error(err))
		_ = d.Nack(false, false)
	default:
		c.log.Error("handler failed, requeue", zap.String("key", d.RoutingKey), zap.String("request_id", reqID), zap.Error(err))
		_ = d.Nack(false, true)
	}
}
