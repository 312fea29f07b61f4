package ledger

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/todokit/bus"
	"github.com/vinayprograms/todokit/errors"
	"github.com/vinayprograms/todokit/identity"
	"github.com/vinayprograms/todokit/logging"
	"github.com/vinayprograms/todokit/profiles"
	"github.com/vinayprograms/todokit/state"
	"github.com/vinayprograms/todokit/status"
	"github.com/vinayprograms/todokit/tasks"
	"github.com/vinayprograms/todokit/telemetry"
)

// Name is the constant returned by GetName.
const Name = "Works"

// Defaults for Config.
const (
	DefaultLockTTL       = 10 * time.Second
	DefaultLockWait      = 5 * time.Second
	DefaultSubjectPrefix = "todokit"
)

// Config holds the ledger's collaborators.
type Config struct {
	// Store is the state backend. Required.
	Store state.StateStore

	// Bus receives domain events. Default: bus.Nop{}
	Bus bus.MessageBus

	// Logger for operation logs. Default: discards output.
	Logger *logging.Logger

	// Tracer for operation spans. Default: telemetry.GetTracer()
	Tracer *telemetry.Tracer

	// Resolver identifies the caller. Default: identity.ContextResolver{}
	Resolver identity.Resolver

	// SeedAdminTasks gives the administrator a task list at construction.
	SeedAdminTasks bool

	// LockTTL bounds how long a crashed writer can hold an account lock.
	// Default: 10s
	LockTTL time.Duration

	// LockWait bounds how long a write waits for the account lock.
	// Default: 5s
	LockWait time.Duration

	// SubjectPrefix is prepended to event subjects. Default: "todokit"
	SubjectPrefix string

	// MaxAppendAttempts bounds compare-and-swap retries per AddTask.
	// Default: tasks.DefaultMaxAttempts
	MaxAppendAttempts int
}

func (c *Config) applyDefaults() {
	if c.Bus == nil {
		c.Bus = bus.Nop{}
	}
	if c.Logger == nil {
		c.Logger = logging.Nop()
	}
	if c.Tracer == nil {
		c.Tracer = telemetry.GetTracer()
	}
	if c.Resolver == nil {
		c.Resolver = identity.ContextResolver{}
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.LockWait <= 0 {
		c.LockWait = DefaultLockWait
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.MaxAppendAttempts <= 0 {
		c.MaxAppendAttempts = tasks.DefaultMaxAttempts
	}
}

// Ledger serves account operations over a state store.
type Ledger struct {
	cfg      Config
	store    state.StateStore
	profiles *profiles.Store
	tasks    *tasks.Store
	logger   *logging.Logger
	tracer   *telemetry.Tracer
	admin    identity.AccountID
	events   *publisher
}

// New creates a ledger and writes the administrator profile for admin.
// It is the only operation that returns an error: a ledger that could not
// record its administrator is not started.
func New(ctx context.Context, cfg Config, admin identity.AccountID, user profiles.User) (*Ledger, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ledger: store required")
	}
	if admin == "" {
		return nil, fmt.Errorf("ledger: admin account required")
	}
	cfg.applyDefaults()

	l := &Ledger{
		cfg:      cfg,
		store:    cfg.Store,
		profiles: profiles.NewStore(cfg.Store),
		tasks:    tasks.NewStore(cfg.Store, tasks.WithMaxAttempts(cfg.MaxAppendAttempts)),
		logger:   cfg.Logger.WithComponent("ledger"),
		tracer:   cfg.Tracer,
		admin:    admin,
	}
	l.events = newPublisher(cfg.Bus, cfg.SubjectPrefix, l.logger)

	if err := l.profiles.InitializeAdmin(ctx, admin, user); err != nil {
		return nil, fmt.Errorf("ledger: initialize admin: %w", err)
	}
	if cfg.SeedAdminTasks {
		err := l.tasks.Create(ctx, admin, []tasks.Task{tasks.DefaultTask()})
		if err != nil && !stderrors.Is(err, tasks.ErrExists) {
			return nil, fmt.Errorf("ledger: seed admin tasks: %w", err)
		}
	}

	l.logger.Info("ledger_ready", map[string]interface{}{
		"admin":       string(admin),
		"seed_tasks":  cfg.SeedAdminTasks,
		"lock_ttl":    cfg.LockTTL.String(),
		"event_topic": cfg.SubjectPrefix,
	})
	return l, nil
}

// Admin returns the administrator account.
func (l *Ledger) Admin() identity.AccountID {
	return l.admin
}

// GetName returns a constant for liveness checks.
func (l *Ledger) GetName() string {
	return Name
}

// GetMyAccount returns the caller's profile.
func (l *Ledger) GetMyAccount(ctx context.Context) status.Result[profiles.User] {
	ctx, span, account, err := l.begin(ctx, "get_my_account")
	if err != nil {
		return finish(l, span, "get_my_account", account, false, status.Internal[profiles.User](err))
	}

	user, err := l.profiles.Get(ctx, account)
	var r status.Result[profiles.User]
	switch {
	case err == nil:
		r = status.Ok(user)
	case stderrors.Is(err, profiles.ErrNotFound):
		r = status.Missing[profiles.User]()
	default:
		l.logger.StoreError("get_profile", profiles.Key(account), err)
		r = status.Fail[profiles.User](err)
	}
	return finish(l, span, "get_my_account", account, false, r)
}

// GetMyTasks returns the caller's task list in insertion order. An account
// without a list gets NotFound with an empty list.
func (l *Ledger) GetMyTasks(ctx context.Context) status.Result[[]tasks.Task] {
	ctx, span, account, err := l.begin(ctx, "get_my_tasks")
	if err != nil {
		return finish(l, span, "get_my_tasks", account, false, status.Internal[[]tasks.Task](err))
	}

	list, err := l.tasks.Get(ctx, account)
	var r status.Result[[]tasks.Task]
	switch {
	case err == nil:
		r = status.Ok(list)
	case stderrors.Is(err, tasks.ErrNotFound):
		r = status.MissingWith([]tasks.Task{})
	default:
		l.logger.StoreError("get_tasks", tasks.Key(account), err)
		r = status.Fail[[]tasks.Task](err)
	}
	return finish(l, span, "get_my_tasks", account, false, r)
}

// RegisterUser onboards the caller: it creates the profile and a task list
// holding tasks.DefaultTask. An existing profile is left untouched and
// Duplicate is returned.
func (l *Ledger) RegisterUser(ctx context.Context, firstName, lastName, email string, age uint32) status.Result[struct{}] {
	ctx, span, account, err := l.begin(ctx, "register_user")
	if err != nil {
		return finish(l, span, "register_user", account, true, status.Internal[struct{}](err))
	}

	r := l.withAccountLock(ctx, account, func(ctx context.Context) status.Result[struct{}] {
		exists, err := l.profiles.Exists(ctx, account)
		if err != nil {
			l.logger.StoreError("check_profile", profiles.Key(account), err)
			return status.Internal[struct{}](err)
		}
		if exists {
			return status.Exists[struct{}]()
		}

		user := profiles.User{FirstName: firstName, LastName: lastName, Email: email, Age: age}
		if r, ok := l.resumeOnboarding(ctx, account, user); ok {
			return r
		}

		initial := []tasks.Task{tasks.DefaultTask()}
		if err := l.onboard(ctx, account, user, initial); err != nil {
			if stderrors.Is(err, state.ErrKeyExists) {
				return status.Exists[struct{}]()
			}
			l.logger.StoreError("onboard", profiles.Key(account), err)
			return status.Internal[struct{}](err)
		}

		l.logger.AccountOnboarded(string(account), len(initial))
		l.events.accountOnboarded(ctx, account, user)
		return status.Done[struct{}]()
	})
	return finish(l, span, "register_user", account, true, r)
}

// AddTask appends a not-done task to the caller's list. Accounts that never
// registered get NotFound and no list is created.
func (l *Ledger) AddTask(ctx context.Context, name, date string) status.Result[struct{}] {
	ctx, span, account, err := l.begin(ctx, "add_task")
	if err != nil {
		return finish(l, span, "add_task", account, true, status.Internal[struct{}](err))
	}

	r := l.withAccountLock(ctx, account, func(ctx context.Context) status.Result[struct{}] {
		task := tasks.NewTask(name, date)

		sctx, sspan := l.tracer.StartStoreSpan(ctx, "append", tasks.Key(account))
		length, err := l.tasks.Append(sctx, account, task)
		l.tracer.EndStoreSpan(sspan, ignoreNotFound(err))

		if err != nil {
			if stderrors.Is(err, tasks.ErrNotFound) {
				return status.Missing[struct{}]()
			}
			l.logger.StoreError("append_task", tasks.Key(account), err)
			return status.Internal[struct{}](err)
		}

		l.logger.TaskAppended(string(account), length)
		l.events.taskAppended(ctx, account, task, length)
		return status.Done[struct{}]()
	})
	return finish(l, span, "add_task", account, true, r)
}

// onboard creates the task list and profile for account as one unit.
// The list is ordered first so that stores without atomic batches, which
// may briefly expose a prefix, never show a profile without its list.
func (l *Ledger) onboard(ctx context.Context, account identity.AccountID, user profiles.User, list []tasks.Task) error {
	listEntry, err := tasks.Entry(account, list)
	if err != nil {
		return err
	}
	profileEntry, err := profiles.Entry(account, user)
	if err != nil {
		return err
	}

	ctx, span := l.tracer.StartStoreSpan(ctx, "onboard", profileEntry.Key)
	err = state.CreateAll(ctx, l.store, []state.Entry{listEntry, profileEntry})
	l.tracer.EndStoreSpan(span, err)
	return err
}

// resumeOnboarding finishes a registration that stopped after the task
// list was written but before the profile was. The leftover list is kept.
// It reports false when account has no list.
func (l *Ledger) resumeOnboarding(ctx context.Context, account identity.AccountID, user profiles.User) (status.Result[struct{}], bool) {
	list, err := l.tasks.Get(ctx, account)
	switch {
	case stderrors.Is(err, tasks.ErrNotFound):
		return status.Result[struct{}]{}, false
	case err != nil:
		l.logger.StoreError("get_tasks", tasks.Key(account), err)
		return status.Internal[struct{}](err), true
	}

	if err := l.profiles.Create(ctx, account, user); err != nil {
		if stderrors.Is(err, profiles.ErrExists) {
			return status.Exists[struct{}](), true
		}
		l.logger.StoreError("create_profile", profiles.Key(account), err)
		return status.Internal[struct{}](err), true
	}

	l.logger.Warn("onboarding_resumed", map[string]interface{}{
		"account": string(account),
		"tasks":   len(list),
	})
	l.logger.AccountOnboarded(string(account), len(list))
	l.events.accountOnboarded(ctx, account, user)
	return status.Done[struct{}](), true
}

// begin resolves the caller and opens the operation span.
func (l *Ledger) begin(ctx context.Context, op string) (context.Context, trace.Span, identity.AccountID, error) {
	account, err := l.cfg.Resolver.Caller(ctx)
	if err == nil && account == "" {
		err = identity.ErrNoCaller
	}
	ctx, span := l.tracer.StartOperationSpan(ctx, op, string(account))
	if err != nil {
		l.logger.Warn("caller_unresolved", map[string]interface{}{
			"op":    op,
			"error": err,
		})
		return ctx, span, "", errors.WrapWithCode(err, errors.ErrCodeUnauthorized, "resolve caller")
	}
	return ctx, span, account, nil
}

// withAccountLock runs fn while holding account's write lock.
func (l *Ledger) withAccountLock(ctx context.Context, account identity.AccountID, fn func(context.Context) status.Result[struct{}]) status.Result[struct{}] {
	key := lockKey(account)

	lctx, cancel := context.WithTimeout(ctx, l.cfg.LockWait)
	sctx, span := l.tracer.StartStoreSpan(lctx, "lock", key)
	lock, err := state.AcquireLock(sctx, l.store, key, l.cfg.LockTTL)
	l.tracer.EndStoreSpan(span, err)
	cancel()

	if err != nil {
		l.logger.StoreError("lock", key, err)
		return status.Internal[struct{}](errors.WrapWithCode(err, errors.ErrCodeResourceBusy, "acquire account lock",
			errors.WithAccount(string(account))))
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			l.logger.Warn("unlock_failed", map[string]interface{}{
				"key":   key,
				"error": err,
			})
		}
	}()

	return fn(ctx)
}

func lockKey(account identity.AccountID) string {
	return state.Key("ledger", "account", state.EncodeToken(string(account)))
}

// finish closes the span, logs the outcome and returns r.
func finish[T any](l *Ledger, span trace.Span, op string, account identity.AccountID, write bool, r status.Result[T]) status.Result[T] {
	code := r.Status().Code()
	l.tracer.EndOperationSpan(span, code, r.Err())
	l.logger.Operation(op, string(account), code, write)
	return r
}

func ignoreNotFound(err error) error {
	if stderrors.Is(err, tasks.ErrNotFound) {
		return nil
	}
	return err
}
