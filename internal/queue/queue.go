// Package queue provides at-least-once message queue clients.
package queue

import (
	"context"
	"time"
)

// Message is one delivery of a queued message. The same logical message may
// be delivered more than once; ReceiveCount counts deliveries including this one.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	ReceiveCount  int
	Attributes    map[string]string
}

// ReceiveOptions controls a single receive call.
type ReceiveOptions struct {
	MaxMessages       int
	VisibilityTimeout time.Duration
	WaitTime          time.Duration
}

// Client receives and acknowledges messages.
// A received message stays hidden for VisibilityTimeout and is redelivered
// unless Delete is called with its receipt handle first.
type Client interface {
	Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Publisher sends a message body. It returns the id assigned by the queue.
type Publisher interface {
	Publish(ctx context.Context, subject, body string) (string, error)
}
