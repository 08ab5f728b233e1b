// Package queue defines the contract for publishing delayed, retried HTTP
// jobs. platform/qstash delivers them through Upstash QStash; task runs them
// in-process for local development.
package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrInvalidMessage is returned when a message cannot be published as given.
var ErrInvalidMessage = errors.New("invalid queue message")

// Message is a job delivered by HTTP POST to URL.
type Message struct {
	// URL is the absolute destination, including any query string.
	URL  string
	Body []byte
	// Delay postpones the first delivery attempt.
	Delay time.Duration
	// Retries is the number of redeliveries after a failed attempt.
	// Negative means the publisher's default.
	Retries int
	// DeduplicationID suppresses duplicate publishes with the same ID.
	DeduplicationID string
}

// Validate checks that the destination is an absolute http(s) URL.
func (m Message) Validate() error {
	u, err := url.Parse(m.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: destination %q is not an absolute http(s) URL", ErrInvalidMessage, m.URL)
	}
	if m.Delay < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalidMessage)
	}
	return nil
}

// Publisher enqueues messages for at-least-once delivery.
type Publisher interface {
	// Publish returns the queue's message ID once the message is accepted.
	Publish(ctx context.Context, msg Message) (string, error)
}
