// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mail delivers outbound email on behalf of the domain services.

Services depend on the small [Mailer] interface. Two implementations exist:

  - [AMQPMailer]: publishes a JSON envelope to a durable RabbitMQ queue that a
    separate delivery worker drains.
  - [LogMailer]: writes the message to the structured log (local development).

Delivery is fire-and-forget from the caller's point of view; see [Async].
*/
package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/admitly/internal/platform/ctxutil"
)

// # Message

// Template identifies the body a delivery worker renders.
type Template string

const (
	// TemplatePasswordReset carries a single-use reset link.
	TemplatePasswordReset Template = "password_reset"
)

// Message is a transport-neutral outbound email.
type Message struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template Template          `json:"template"`
	Data     map[string]string `json:"data"`
}

// Mailer sends a single message. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, message Message) error
}

// # Log Mailer

// LogMailer writes messages to the structured log instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a [LogMailer].
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send implements [Mailer].
func (mailer *LogMailer) Send(ctx context.Context, message Message) error {
	mailer.logger.InfoContext(ctx, "mail_logged",
		slog.String("to", message.To),
		slog.String("subject", message.Subject),
		slog.String("template", string(message.Template)),
	)
	mailer.logger.DebugContext(ctx, "mail_logged_data", slog.Any("data", message.Data))
	return nil
}

// # Async Delivery

// Async sends messages on background goroutines so request latency never
// depends on the mail transport. Failures are logged and dropped.
type Async struct {
	mailer  Mailer
	timeout time.Duration
	pending sync.WaitGroup
}

// NewAsync wraps mailer. Each send is bounded by timeout.
func NewAsync(mailer Mailer, timeout time.Duration) *Async {
	return &Async{mailer: mailer, timeout: timeout}
}

// Go schedules message for delivery and returns immediately.
//
// The send keeps the request's values (logger, request ID) but not its
// cancellation, so it survives the response being written.
func (async *Async) Go(ctx context.Context, message Message) {
	logger := ctxutil.GetLogger(ctx)
	detached := context.WithoutCancel(ctx)

	async.pending.Add(1)
	go func() {
		defer async.pending.Done()

		sendCtx, cancel := context.WithTimeout(detached, async.timeout)
		defer cancel()

		if err := async.mailer.Send(sendCtx, message); err != nil {
			logger.ErrorContext(sendCtx, "mail_send_failed",
				slog.String("template", string(message.Template)),
				slog.Any("error", err),
			)
		}
	}()
}

// Wait blocks until every scheduled send has finished. Used during shutdown and in tests.
func (async *Async) Wait() {
	async.pending.Wait()
}
