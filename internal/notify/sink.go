// Package notify delivers user-facing emails about post outcomes and platform health.
package notify

import (
	"context"
	"errors"
)

// ErrInvalidMessage is returned for messages without a recipient
var ErrInvalidMessage = errors.New("message has no recipient")

// Message is one rendered email
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sink delivers a message synchronously
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// NopSink discards every message; used when SMTP is not configured
type NopSink struct{}

func (NopSink) Send(context.Context, Message) error { return nil }
