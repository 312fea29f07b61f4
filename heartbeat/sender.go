package heartbeat

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/vinayprograms/todokit/bus"
)

// publishTimeout bounds a single heartbeat publish.
const publishTimeout = 2 * time.Second

// BusSender publishes heartbeats on a MessageBus. Publish failures are
// dropped; the next tick tries again.
type BusSender struct {
	bus      bus.MessageBus
	instance string
	subject  string
	interval time.Duration
	sessions func() int

	mu     sync.Mutex
	status Status
	meta   map[string]string
	stop   chan struct{} // nil while not running
	loop   chan struct{}
}

var _ Sender = (*BusSender)(nil)

func NewBusSender(cfg SenderConfig) (*BusSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := DefaultSenderConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = d.SubjectPrefix
	}

	return &BusSender{
		bus:      cfg.Bus,
		instance: cfg.Instance,
		subject:  Subject(cfg.SubjectPrefix, cfg.Instance),
		interval: cfg.Interval,
		sessions: cfg.Sessions,
		status:   StatusServing,
		meta:     map[string]string{},
	}, nil
}

func (s *BusSender) Instance() string { return s.instance }

// Start reports immediately and then every interval until Stop or until
// ctx ends.
func (s *BusSender) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	stop, loop := make(chan struct{}), make(chan struct{})
	s.stop, s.loop = stop, loop
	s.mu.Unlock()

	go s.beat(ctx, stop, loop)
	return nil
}

func (s *BusSender) beat(ctx context.Context, stop, loop chan struct{}) {
	defer close(loop)

	s.publish()
	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			s.publish()
		case <-stop:
			return
		case <-ctx.Done():
			s.mu.Lock()
			if s.stop == stop {
				s.stop = nil
			}
			s.mu.Unlock()
			return
		}
	}
}

// SetStatus takes effect in the next report; a change is reported at once
// while running.
func (s *BusSender) SetStatus(status Status) {
	s.mu.Lock()
	changed := s.status != status
	s.status = status
	running := s.stop != nil
	s.mu.Unlock()

	if changed && running {
		s.publish()
	}
}

func (s *BusSender) SetMetadata(key, value string) {
	s.mu.Lock()
	s.meta[key] = value
	s.mu.Unlock()
}

// Stop ends the loop and publishes a final StatusStopped report.
func (s *BusSender) Stop() error {
	s.mu.Lock()
	stop, loop := s.stop, s.loop
	s.stop = nil
	s.mu.Unlock()
	if stop == nil {
		return ErrNotStarted
	}

	close(stop)
	<-loop

	s.mu.Lock()
	s.status = StatusStopped
	s.mu.Unlock()
	return s.publish()
}

func (s *BusSender) publish() error {
	data, err := s.snapshot().Marshal()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return s.bus.Publish(ctx, s.subject, data)
}

func (s *BusSender) snapshot() *Heartbeat {
	s.mu.Lock()
	hb := &Heartbeat{
		Instance:  s.instance,
		Timestamp: time.Now().UTC(),
		Status:    s.status,
	}
	if len(s.meta) > 0 {
		hb.Metadata = maps.Clone(s.meta)
	}
	s.mu.Unlock()

	if s.sessions != nil {
		hb.Sessions = s.sessions()
	}
	return hb
}
