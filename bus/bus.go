package bus

import (
	"context"
	"errors"
	"strings"
)

// Common errors.
var (
	ErrClosed         = errors.New("bus closed")
	ErrInvalidSubject = errors.New("invalid subject")
)

// Message represents a message received from the bus.
type Message struct {
	// Subject the message was published to.
	Subject string

	// Data is the message payload.
	Data []byte
}

// MessageBus provides publish/subscribe messaging.
type MessageBus interface {
	// Publish sends a message to all subscribers of a subject.
	// Wildcards are not allowed in subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe creates a subscription to a subject or wildcard pattern.
	Subscribe(subject string) (Subscription, error)

	// Close shuts down the bus.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Messages returns the channel for incoming messages.
	// Channel is closed when subscription ends.
	Messages() <-chan *Message

	// Unsubscribe cancels the subscription.
	Unsubscribe() error
}

// Config holds common bus configuration.
type Config struct {
	// BufferSize for subscription channels.
	// Default: 256
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
	}
}

// ValidateSubject checks that subject is a publishable subject: non-empty
// dot-separated tokens without whitespace or wildcards.
func ValidateSubject(subject string) error {
	if err := validateTokens(subject); err != nil {
		return err
	}
	if strings.ContainsAny(subject, "*>") {
		return ErrInvalidSubject
	}
	return nil
}

// ValidatePattern checks a subscription subject, which may contain
// wildcards as whole tokens ("*" anywhere, ">" only last).
func ValidatePattern(pattern string) error {
	if err := validateTokens(pattern); err != nil {
		return err
	}
	tokens := strings.Split(pattern, ".")
	for i, tok := range tokens {
		if strings.ContainsAny(tok, "*>") && len(tok) > 1 {
			return ErrInvalidSubject
		}
		if tok == ">" && i != len(tokens)-1 {
			return ErrInvalidSubject
		}
	}
	return nil
}

func validateTokens(s string) error {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return ErrInvalidSubject
	}
	for _, tok := range strings.Split(s, ".") {
		if tok == "" {
			return ErrInvalidSubject
		}
	}
	return nil
}

// Subject joins tokens with dots.
func Subject(tokens ...string) string {
	return strings.Join(tokens, ".")
}

// Matches reports whether subject is matched by pattern.
func Matches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		if tok == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

// Nop is a MessageBus that accepts and discards every message.
type Nop struct{}

// Publish validates the subject and drops the message.
func (Nop) Publish(ctx context.Context, subject string, data []byte) error {
	return ValidateSubject(subject)
}

// Subscribe returns a subscription that never receives anything.
func (Nop) Subscribe(subject string) (Subscription, error) {
	if err := ValidatePattern(subject); err != nil {
		return nil, err
	}
	return &nopSub{ch: make(chan *Message)}, nil
}

// Close does nothing.
func (Nop) Close() error { return nil }

type nopSub struct {
	ch     chan *Message
	closed bool
}

func (s *nopSub) Messages() <-chan *Message { return s.ch }

func (s *nopSub) Unsubscribe() error {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}
