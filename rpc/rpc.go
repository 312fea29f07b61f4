// Package rpc binds the ledger operations to JSON-RPC 2.0 methods.
//
// Every method answers with a result, never a JSON-RPC error, once it is
// known: get_name returns the bare string and the others return the
// status envelope. Only unknown methods produce a protocol error.
package rpc

import (
	"context"
	"encoding/json"

	"github.com/vinayprograms/todokit/errors"
	"github.com/vinayprograms/todokit/logging"
	"github.com/vinayprograms/todokit/profiles"
	"github.com/vinayprograms/todokit/status"
	"github.com/vinayprograms/todokit/tasks"
	"github.com/vinayprograms/todokit/transport"
)

// Method names.
const (
	MethodGetName      = "get_name"
	MethodGetMyAccount = "get_my_account"
	MethodRegisterUser = "register_user"
	MethodAddTask      = "add_task"
	MethodGetMyTasks   = "get_my_tasks"
)

// Methods lists every method the handler answers.
var Methods = []string{
	MethodGetName,
	MethodGetMyAccount,
	MethodRegisterUser,
	MethodAddTask,
	MethodGetMyTasks,
}

// Ledger is the set of operations exposed over JSON-RPC.
type Ledger interface {
	GetName() string
	GetMyAccount(ctx context.Context) status.Result[profiles.User]
	GetMyTasks(ctx context.Context) status.Result[[]tasks.Task]
	RegisterUser(ctx context.Context, firstName, lastName, email string, age uint32) status.Result[struct{}]
	AddTask(ctx context.Context, name, date string) status.Result[struct{}]
}

// RegisterParams are the params of register_user. All fields are required.
type RegisterParams struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Age       *uint32 `json:"age"`
}

// AddTaskParams are the params of add_task. Both fields are required.
type AddTaskParams struct {
	TaskName *string `json:"task_name"`
	TaskDate *string `json:"task_date"`
}

// Handler implements transport.Handler over a Ledger. The caller identity
// must already be bound to the request context.
type Handler struct {
	ledger Ledger
	logger *logging.Logger
}

var _ transport.Handler = (*Handler)(nil)

// NewHandler creates a handler. A nil logger discards output.
func NewHandler(l Ledger, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{ledger: l, logger: logger.WithComponent("rpc")}
}

// Handle dispatches one method call.
func (h *Handler) Handle(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case MethodGetName:
		return h.ledger.GetName(), nil
	case MethodGetMyAccount:
		return h.ledger.GetMyAccount(ctx).Envelope(), nil
	case MethodGetMyTasks:
		return h.ledger.GetMyTasks(ctx).Envelope(), nil
	case MethodRegisterUser:
		return h.registerUser(ctx, params), nil
	case MethodAddTask:
		return h.addTask(ctx, params), nil
	default:
		h.logger.Warn("unknown_method", map[string]interface{}{"method": method})
		return nil, transport.NewError(transport.MethodNotFound, method)
	}
}

func (h *Handler) registerUser(ctx context.Context, raw json.RawMessage) status.Envelope[struct{}] {
	var p RegisterParams
	if err := decode(raw, &p); err != nil {
		return h.reject(MethodRegisterUser, err)
	}
	if p.FirstName == nil || p.LastName == nil || p.Email == nil || p.Age == nil {
		return h.reject(MethodRegisterUser, errors.InvalidInput("first_name, last_name, email and age are required"))
	}
	return h.ledger.RegisterUser(ctx, *p.FirstName, *p.LastName, *p.Email, *p.Age).Envelope()
}

func (h *Handler) addTask(ctx context.Context, raw json.RawMessage) status.Envelope[struct{}] {
	var p AddTaskParams
	if err := decode(raw, &p); err != nil {
		return h.reject(MethodAddTask, err)
	}
	if p.TaskName == nil || p.TaskDate == nil {
		return h.reject(MethodAddTask, errors.InvalidInput("task_name and task_date are required"))
	}
	return h.ledger.AddTask(ctx, *p.TaskName, *p.TaskDate).Envelope()
}

func (h *Handler) reject(method string, err error) status.Envelope[struct{}] {
	h.logger.Debug("params_rejected", map[string]interface{}{
		"method": method,
		"error":  err.Error(),
	})
	return status.BadArgument[struct{}](err).Envelope()
}

// decode unmarshals params, treating absent or null params as invalid input.
func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errors.InvalidInput("params are required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeInvalidInput, "decode params")
	}
	return nil
}
