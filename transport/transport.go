package transport

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned by Send once the transport has shut down.
var ErrClosed = errors.New("transport closed")

// Transport moves JSON-RPC frames between one peer and Serve. Recv is
// closed when the peer goes away; Send fails with ErrClosed after Close.
type Transport interface {
	Recv() <-chan *InboundMessage
	Send(msg *OutboundMessage) error
	Run(ctx context.Context) error
	Close() error
}

// InboundMessage is one parsed frame. Exactly one of Request and
// Notification is set; Raw keeps the bytes as received.
type InboundMessage struct {
	Request      *Request
	Notification *Notification
	Raw          json.RawMessage
}

// OutboundMessage is a reply or an unsolicited notification.
type OutboundMessage struct {
	Response     *Response
	Notification *Notification
}

// ParseInbound classifies one frame. Bad JSON is a ParseError; a wrong
// version or a missing method is an InvalidRequest. A frame whose id is
// absent or null is a notification.
func ParseInbound(data []byte) (*InboundMessage, error) {
	var head struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  string          `json:"method"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, NewError(ParseError, err.Error())
	}
	switch {
	case head.JSONRPC != Version:
		return nil, NewError(InvalidRequest, "jsonrpc must be 2.0")
	case head.Method == "":
		return nil, NewError(InvalidRequest, "method is required")
	}

	msg := &InboundMessage{Raw: data}
	var target interface{}
	if len(head.ID) == 0 || string(head.ID) == "null" {
		msg.Notification = &Notification{}
		target = msg.Notification
	} else {
		msg.Request = &Request{}
		target = msg.Request
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, NewError(ParseError, err.Error())
	}
	return msg, nil
}

// MarshalOutbound encodes whichever half of msg is set.
func MarshalOutbound(msg *OutboundMessage) ([]byte, error) {
	switch {
	case msg.Response != nil:
		return json.Marshal(msg.Response)
	case msg.Notification != nil:
		return json.Marshal(msg.Notification)
	}
	return nil, errors.New("empty outbound message")
}

// parseErrorResponse answers a frame that ParseInbound rejected, echoing
// the id when the frame still carries one.
func parseErrorResponse(raw []byte, parseErr error) *OutboundMessage {
	var idOnly struct {
		ID interface{} `json:"id"`
	}
	json.Unmarshal(raw, &idOnly)

	return &OutboundMessage{Response: &Response{JSONRPC: Version, ID: idOnly.ID, Error: AsError(parseErr)}}
}

// Config sizes the channels between a transport and Serve.
type Config struct {
	RecvBufferSize int
	SendBufferSize int
}

// DefaultConfig buffers 100 frames each way.
func DefaultConfig() Config {
	return Config{RecvBufferSize: 100, SendBufferSize: 100}
}

func (c Config) withDefaults() Config {
	if c.RecvBufferSize <= 0 {
		c.RecvBufferSize = DefaultConfig().RecvBufferSize
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = DefaultConfig().SendBufferSize
	}
	return c
}
