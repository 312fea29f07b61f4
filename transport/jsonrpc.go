package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the only protocol version accepted on the wire.
const Version = "2.0"

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("jsonrpc %d: %s (%v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("jsonrpc %d: %s", e.Code, e.Message)
}

// Standard error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

var standardMessages = map[int]string{
	ParseError:     "Parse error",
	InvalidRequest: "Invalid Request",
	MethodNotFound: "Method not found",
	InvalidParams:  "Invalid params",
	InternalError:  "Internal error",
}

// NewError builds an Error with the standard message for code.
func NewError(code int, data interface{}) *Error {
	msg, ok := standardMessages[code]
	if !ok {
		msg = "Server error"
	}
	return &Error{Code: code, Message: msg, Data: data}
}

// AsError converts a handler error into a wire error. Errors that already
// carry a JSON-RPC code keep it; anything else becomes InternalError.
func AsError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return NewError(InternalError, err.Error())
}

// Notification represents a JSON-RPC 2.0 notification (no ID).
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Handler handles JSON-RPC requests.
type Handler interface {
	Handle(ctx context.Context, method string, params json.RawMessage) (interface{}, error)
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, method string, params json.RawMessage) (interface{}, error)

func (f HandlerFunc) Handle(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	return f(ctx, method, params)
}

// Serve runs t and answers each inbound request with h, in arrival order.
// It returns when the peer goes away, t is closed or ctx is cancelled.
// Notifications are handled but never answered.
func Serve(ctx context.Context, t Transport, h Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- t.Run(ctx)
	}()

	recv := t.Recv()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case msg, ok := <-recv:
			if !ok {
				break loop
			}
			if err := dispatch(ctx, t, h, msg); err != nil {
				break loop
			}
		}
	}

	cancel()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func dispatch(ctx context.Context, t Transport, h Handler, msg *InboundMessage) error {
	switch {
	case msg.Request != nil:
		resp := &Response{JSONRPC: Version, ID: msg.Request.ID}
		result, err := h.Handle(ctx, msg.Request.Method, msg.Request.Params)
		if err != nil {
			resp.Error = AsError(err)
		} else {
			resp.Result = result
		}
		return t.Send(&OutboundMessage{Response: resp})

	case msg.Notification != nil:
		var params json.RawMessage
		if msg.Notification.Params != nil {
			raw, err := json.Marshal(msg.Notification.Params)
			if err != nil {
				return nil
			}
			params = raw
		}
		h.Handle(ctx, msg.Notification.Method, params)
	}
	return nil
}
