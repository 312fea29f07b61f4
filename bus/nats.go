package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSBus carries task events over core NATS subjects. Delivery is at most
// once; JetStream is reserved for the state store.
type NATSBus struct {
	nc         *nats.Conn
	bufferSize int
	ownsConn   bool
}

var _ MessageBus = (*NATSBus)(nil)

// NATSConfig describes how to reach the NATS server.
type NATSConfig struct {
	Config

	URL  string
	Name string // client name shown by the server

	// Token takes precedence over User/Password when both are set.
	Token    string
	User     string
	Password string

	ReconnectWait  time.Duration
	MaxReconnects  int // -1 retries forever
	ConnectTimeout time.Duration
}

// DefaultNATSConfig targets a local server and reconnects forever.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		Config:         DefaultConfig(),
		URL:            nats.DefaultURL,
		Name:           "todokit",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 5 * time.Second,
	}
}

func (cfg NATSConfig) options() []nats.Option {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	switch {
	case cfg.Token != "":
		opts = append(opts, nats.Token(cfg.Token))
	case cfg.User != "":
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	return opts
}

// Connect dials the server. The returned connection may be shared by the
// bus and the KV store.
func Connect(cfg NATSConfig) (*nats.Conn, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, cfg.options()...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}

// NewNATSBus dials its own connection and closes it on Close.
func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	nc, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	b := NewNATSBusFromConn(nc, cfg)
	b.ownsConn = true
	return b, nil
}

// NewNATSBusFromConn publishes on a connection owned by the caller.
func NewNATSBusFromConn(nc *nats.Conn, cfg NATSConfig) *NATSBus {
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultConfig().BufferSize
	}
	return &NATSBus{nc: nc, bufferSize: size}
}

func (b *NATSBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ValidateSubject(subject); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.nc.IsClosed() {
		return ErrClosed
	}
	return natsErr("publish", b.nc.Publish(subject, data))
}

// Subscribe delivers matching messages into a buffered channel. When the
// buffer is full new messages are dropped rather than stalling the NATS
// dispatcher.
func (b *NATSBus) Subscribe(subject string) (Subscription, error) {
	if err := ValidatePattern(subject); err != nil {
		return nil, err
	}
	if b.nc.IsClosed() {
		return nil, ErrClosed
	}

	sub := &natsSubscription{out: make(chan *Message, b.bufferSize)}
	ns, err := b.nc.Subscribe(subject, sub.onMsg)
	if err != nil {
		return nil, natsErr("subscribe", err)
	}
	sub.ns = ns
	return sub, nil
}

// Close closes the connection only if NewNATSBus opened it.
func (b *NATSBus) Close() error {
	if b.ownsConn {
		b.nc.Close()
	}
	return nil
}

// Conn exposes the connection, e.g. for draining at shutdown.
func (b *NATSBus) Conn() *nats.Conn { return b.nc }

func natsErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, nats.ErrConnectionClosed):
		return ErrClosed
	}
	return fmt.Errorf("nats %s: %w", op, err)
}

type natsSubscription struct {
	ns *nats.Subscription

	mu   sync.Mutex
	out  chan *Message
	done bool
}

// onMsg runs on the connection's dispatcher goroutine.
func (s *natsSubscription) onMsg(m *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	select {
	case s.out <- &Message{Subject: m.Subject, Data: m.Data}:
	default:
	}
}

func (s *natsSubscription) Messages() <-chan *Message { return s.out }

// Unsubscribe closes the channel. It tolerates a connection that is
// already gone.
func (s *natsSubscription) Unsubscribe() error {
	err := s.ns.Unsubscribe()

	s.mu.Lock()
	if !s.done {
		s.done = true
		close(s.out)
	}
	s.mu.Unlock()

	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
		return nil
	}
	return err
}
