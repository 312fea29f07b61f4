// Package transport carries JSON-RPC 2.0 messages between a client and a
// Handler.
//
// # Transports
//
//   - StdioTransport: newline-delimited frames on a reader/writer pair
//   - WebSocketTransport: one frame per WebSocket text message, with ping
//     keepalive
//
// Both implement Transport with a channel-based API. Recv is closed when
// the peer goes away.
//
// # Serving
//
// Serve owns the loop most callers want:
//
//	t := transport.NewStdioTransport(os.Stdin, os.Stdout, transport.DefaultConfig())
//	err := transport.Serve(ctx, t, handler)
//
// Requests on one transport are answered in arrival order. Frames that fail
// to parse are answered with ParseError or InvalidRequest and never reach the
// handler. Handler errors that are not *Error become InternalError.
package transport
