// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publisher is the subset of [*amqp.Channel] the mailer needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPMailer publishes messages to a durable RabbitMQ queue.
//
// The connection is opened lazily and re-dialled once it is closed. A fresh
// channel is used per message because [*amqp.Channel] is not safe for
// concurrent publishing.
type AMQPMailer struct {
	url    string
	queue  string
	logger *slog.Logger

	mu         sync.Mutex
	connection *amqp.Connection

	// openChannel is replaced in tests.
	openChannel func(ctx context.Context) (publisher, error)
}

// NewAMQPMailer creates a mailer publishing to queue on the broker at url.
func NewAMQPMailer(url, queue string, logger *slog.Logger) *AMQPMailer {
	mailer := &AMQPMailer{url: url, queue: queue, logger: logger}
	mailer.openChannel = mailer.dialChannel
	return mailer
}

// Send implements [Mailer].
func (mailer *AMQPMailer) Send(ctx context.Context, message Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("mail: failed to encode message: %w", err)
	}

	channel, err := mailer.openChannel(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = channel.Close() }()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(message.Template),
		Body:         body,
	}

	// Default exchange; the routing key is the queue name.
	// Only this channel is dropped on failure; a dead connection is
	// re-dialled by the next openChannel.
	if err := channel.PublishWithContext(ctx, "", mailer.queue, false, false, publishing); err != nil {
		return fmt.Errorf("mail: publish failed: %w", err)
	}

	return nil
}

// Close releases the broker connection.
func (mailer *AMQPMailer) Close() error {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()

	if mailer.connection == nil {
		return nil
	}
	err := mailer.connection.Close()
	mailer.connection = nil
	return err
}

func (mailer *AMQPMailer) dialChannel(_ context.Context) (publisher, error) {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()

	if mailer.connection == nil || mailer.connection.IsClosed() {
		connection, err := amqp.Dial(mailer.url)
		if err != nil {
			return nil, fmt.Errorf("mail: dial failed: %w", err)
		}
		mailer.connection = connection
		mailer.logger.Info("amqp_mailer_connected", slog.String("queue", mailer.queue))
	}

	channel, err := mailer.connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("mail: channel open failed: %w", err)
	}

	// Durable so queued mail survives broker restarts. Declaring is idempotent.
	if _, err := channel.QueueDeclare(mailer.queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		return nil, fmt.Errorf("mail: queue declare failed: %w", err)
	}

	return channel, nil
}
