package rabbitmq_client

import (
	"context"
	"encoding/json"
	"fmt"

	"mfanalytics/types"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

type Publisher struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	queue      amqp.Queue
}

// NewPublisher dials the broker and declares a durable queue.
func NewPublisher(server, port, user, pass, queueName string) (*Publisher, error) {
	zap.L().Info("Connecting to RabbitMQ", zap.String("server", server), zap.String("port", port))

	conn, err := amqp.Dial(fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, server, port))
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName, // Name of the queue
		true,      // Durable
		false,     // Delete when unused
		false,     // Exclusive
		false,     // No-wait
		nil,       // Arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	zap.L().Info("Connected to RabbitMQ.")
	return &Publisher{connection: conn, channel: ch, queue: q}, nil
}

func (p *Publisher) SendMessage(_ context.Context, event types.ScreeningEvent) error {
	message, err := json.Marshal(event)
	if err != nil {
		return err
	}

	zap.L().Debug("Sending message to rabbitmq", zap.ByteString("message", message))
	err = p.channel.Publish(
		"",           // Exchange (empty means default)
		p.queue.Name, // Routing key (queue name in this case)
		false,        // Mandatory
		false,        // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID,
			Body:         message,
		})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.channel.Close()
	p.connection.Close()
}
