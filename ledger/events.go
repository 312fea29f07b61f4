package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/todokit/bus"
	"github.com/vinayprograms/todokit/identity"
	"github.com/vinayprograms/todokit/logging"
	"github.com/vinayprograms/todokit/profiles"
	"github.com/vinayprograms/todokit/tasks"
	"github.com/vinayprograms/todokit/telemetry"
)

// Event types, appended to the configured subject prefix.
const (
	EventAccountOnboarded = "account.onboarded"
	EventTaskAppended     = "task.appended"
)

// Event is the payload published after a successful write.
type Event struct {
	ID      string               `json:"id"`
	Type    string               `json:"type"`
	Account string               `json:"account"`
	At      time.Time            `json:"at"`
	Profile *profiles.User       `json:"profile,omitempty"`
	Task    *tasks.Task          `json:"task,omitempty"`
	Length  int                  `json:"length,omitempty"`
	Trace   telemetry.MapCarrier `json:"trace,omitempty"`
}

// publisher sends events and logs, rather than returns, failures: the
// write they describe has already committed.
type publisher struct {
	bus    bus.MessageBus
	prefix string
	logger *logging.Logger
	now    func() time.Time
}

func newPublisher(b bus.MessageBus, prefix string, logger *logging.Logger) *publisher {
	return &publisher{bus: b, prefix: prefix, logger: logger, now: time.Now}
}

func (p *publisher) subject(eventType string) string {
	return bus.Subject(p.prefix, eventType)
}

func (p *publisher) accountOnboarded(ctx context.Context, account identity.AccountID, user profiles.User) {
	p.publish(ctx, Event{
		Type:    EventAccountOnboarded,
		Account: string(account),
		Profile: &user,
		Length:  1,
	})
}

func (p *publisher) taskAppended(ctx context.Context, account identity.AccountID, task tasks.Task, length int) {
	p.publish(ctx, Event{
		Type:    EventTaskAppended,
		Account: string(account),
		Task:    &task,
		Length:  length,
	})
}

func (p *publisher) publish(ctx context.Context, ev Event) {
	ev.ID = uuid.NewString()
	ev.At = p.now().UTC()

	carrier := telemetry.MapCarrier{}
	telemetry.InjectContext(ctx, carrier)
	if len(carrier) > 0 {
		ev.Trace = carrier
	}

	subject := p.subject(ev.Type)
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.EventDropped(subject, err)
		return
	}
	if err := p.bus.Publish(ctx, subject, data); err != nil {
		p.logger.EventDropped(subject, err)
	}
}
