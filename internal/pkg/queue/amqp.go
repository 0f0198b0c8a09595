package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrBrokerClosed = errors.New("broker connection closed")

// AMQPQueue RabbitMQ 持久化队列，消息取出即确认
type AMQPQueue struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	prefetch  int

	once       sync.Once
	deliveries <-chan amqp.Delivery
	consumeErr error
}

// NewAMQPQueue prefetch 一般等于 worker 数
func NewAMQPQueue(url, queueName string, prefetch int) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set qos: %w", err)
		}
	}

	return &AMQPQueue{
		conn:      conn,
		channel:   ch,
		queueName: queueName,
		prefetch:  prefetch,
	}, nil
}

func (q *AMQPQueue) Push(ctx context.Context, msg *JobMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.channel.PublishWithContext(ctx, "", q.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.JobID,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (q *AMQPQueue) consume() error {
	q.once.Do(func() {
		q.deliveries, q.consumeErr = q.channel.Consume(q.queueName, "", false, false, false, false, nil)
	})
	return q.consumeErr
}

func (q *AMQPQueue) Pop(ctx context.Context, timeout time.Duration) (*JobMessage, error) {
	if err := q.consume(); err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", q.queueName, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case d, ok := <-q.deliveries:
		if !ok {
			return nil, ErrBrokerClosed
		}

		var msg JobMessage
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			d.Nack(false, false)
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		if err := d.Ack(false); err != nil {
			return nil, fmt.Errorf("failed to ack message: %w", err)
		}
		return &msg, nil
	}
}

func (q *AMQPQueue) Ping(ctx context.Context) error {
	if q.conn.IsClosed() {
		return ErrBrokerClosed
	}
	return nil
}

func (q *AMQPQueue) Close() error {
	if err := q.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return q.conn.Close()
}
