package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Message is the JSON body published to the notification queue.
type Message struct {
	StudentID string    `json:"studentId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sentAt"`
}

// AMQPPublisher publishes notifications to a durable RabbitMQ queue for
// downstream delivery workers. Each Send dials, publishes one persistent
// message, and closes; failures are logged and reported in the Result,
// never retried.
type AMQPPublisher struct {
	URL   string
	Queue string
	Log   zerolog.Logger

	dial func(url string) (*amqp.Connection, error)
}

// NewAMQPPublisher returns a publisher for queue at url.
func NewAMQPPublisher(url, queue string, log zerolog.Logger) *AMQPPublisher {
	return &AMQPPublisher{URL: url, Queue: queue, Log: log, dial: amqp.Dial}
}

// Send implements Sender.
func (p *AMQPPublisher) Send(ctx context.Context, studentID, title, message string) Result {
	if err := p.publish(ctx, Message{
		StudentID: studentID,
		Title:     title,
		Message:   message,
		SentAt:    time.Now().UTC(),
	}); err != nil {
		p.Log.Warn().Err(err).Str("queue", p.Queue).Str("user_id", studentID).Msg("rabbitmq: publish failed")
		return record("amqp", Result{Success: false, Message: err.Error()})
	}
	return record("amqp", Result{Success: true, Message: "notification queued"})
}

func (p *AMQPPublisher) publish(ctx context.Context, m Message) error {
	conn, err := p.dial(p.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    m.SentAt,
			Body:         body,
		},
	)
}
