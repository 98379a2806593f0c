package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPConfig names the broker objects used for jobs
type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
}

// AMQP is a queue on a RabbitMQ broker. Jobs are persistent and acknowledged
// only after the handler succeeds.
type AMQP struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	cfg     AMQPConfig
	logger  *zap.Logger
}

// NewAMQP dials the broker and declares the exchange and queue
func NewAMQP(cfg AMQPConfig, logger *zap.Logger) (*AMQP, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q := &AMQP{
		conn:    conn,
		channel: channel,
		cfg:     cfg,
		logger:  logger,
	}

	if err := q.setup(); err != nil {
		q.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	logger.Info("AMQP queue ready",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue))

	return q, nil
}

func (q *AMQP) setup() error {
	err := q.channel.ExchangeDeclare(
		q.cfg.Exchange, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		q.cfg.Queue, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name
	if err := q.channel.QueueBind(q.cfg.Queue, q.cfg.Queue, q.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	if q.cfg.Prefetch > 0 {
		if err := q.channel.Qos(q.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
	}

	return nil
}

// Publish sends a persistent JSON message
func (q *AMQP) Publish(ctx context.Context, job *Job) error {
	body, err := job.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = q.channel.PublishWithContext(
		ctx,
		q.cfg.Exchange, // exchange
		q.cfg.Queue,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    job.PublicID,
			Timestamp:    job.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}

	q.logger.Debug("Published job",
		zap.Int64("submission_id", job.SubmissionID),
		zap.String("public_id", job.PublicID))
	return nil
}

// Consume acks handled jobs, requeues failed ones and drops undecodable ones
func (q *AMQP) Consume(ctx context.Context, h Handler) error {
	deliveries, err := q.channel.Consume(
		q.cfg.Queue, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			q.handle(ctx, d, h)
		}
	}
}

func (q *AMQP) handle(ctx context.Context, d amqp091.Delivery, h Handler) {
	job, err := JobFromJSON(d.Body)
	if err != nil {
		q.logger.Error("Failed to decode job", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := h(ctx, job); err != nil {
		q.logger.Error("Failed to handle job",
			zap.Int64("submission_id", job.SubmissionID),
			zap.Error(err))
		_ = d.Nack(false, true)
		return
	}

	_ = d.Ack(false)
}

// Close closes the channel and the connection
func (q *AMQP) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
