package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vinayprograms/todokit/bus"
)

var (
	ErrAlreadyStarted = errors.New("heartbeat already started")
	ErrNotStarted     = errors.New("heartbeat not started")
	ErrInvalidConfig  = errors.New("invalid heartbeat configuration")
)

// Status is the lifecycle phase an instance reports.
type Status string

const (
	StatusServing  Status = "serving"
	StatusDraining Status = "draining"
	StatusStopped  Status = "stopped"
)

// Heartbeat is the JSON body published on Subject(prefix, instance).
type Heartbeat struct {
	Instance  string            `json:"instance"`
	Timestamp time.Time         `json:"timestamp"`
	Status    Status            `json:"status"`
	Sessions  int               `json:"sessions"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (h *Heartbeat) Marshal() ([]byte, error) { return json.Marshal(h) }

// Unmarshal decodes a heartbeat body.
func Unmarshal(data []byte) (*Heartbeat, error) {
	h := new(Heartbeat)
	if err := json.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("heartbeat: %w", err)
	}
	return h, nil
}

// Subject is <prefix>.heartbeat.<instance>.
func Subject(prefix, instance string) string {
	return bus.Subject(prefix, "heartbeat", instance)
}

// Sender announces that this instance is alive until stopped.
type Sender interface {
	// Start fails with ErrAlreadyStarted on a running sender.
	Start(ctx context.Context) error
	SetStatus(status Status)
	SetMetadata(key, value string)
	// Stop sends a final StatusStopped report. It fails with ErrNotStarted
	// if the sender is not running.
	Stop() error
}

// SenderConfig needs at least Bus and Instance.
type SenderConfig struct {
	Bus      bus.MessageBus
	Instance string

	SubjectPrefix string        // default "todokit"
	Interval      time.Duration // default 15s

	// Sessions, if set, is sampled for every report.
	Sessions func() int
}

func (c *SenderConfig) Validate() error {
	switch {
	case c.Bus == nil:
		return fmt.Errorf("%w: bus is required", ErrInvalidConfig)
	case c.Instance == "":
		return fmt.Errorf("%w: instance is required", ErrInvalidConfig)
	}
	return nil
}

func DefaultSenderConfig() SenderConfig {
	return SenderConfig{SubjectPrefix: "todokit", Interval: 15 * time.Second}
}
