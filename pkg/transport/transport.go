// Package transport defines the boundary between the session engine
// and the underlying WebSocket implementation, plus the default
// implementation backed by github.com/coder/websocket. The engine only
// sees text and binary frames; the wire protocol, including control
// frames, stays behind the Conn interface.
package transport

import (
	"context"
	"net/http"
	"time"
)

// Frame is one text or binary message.
type Frame struct {
	Binary bool
	Data   []byte
}

// Conn is an established connection. Read blocks until the next frame
// arrives, the connection closes, or ctx is done. Close performs the
// close handshake but never waits past ctx: when the peer ignores the
// handshake the connection is torn down abortively.
type Conn interface {
	Read(ctx context.Context) (Frame, error)
	Write(ctx context.Context, f Frame) error
	Ping(ctx context.Context) (time.Duration, error)
	Close(ctx context.Context) error
}

// Dialer opens connections. sslVerify controls TLS certificate
// verification for wss endpoints; plain ws endpoints ignore it.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header, sslVerify bool) (Conn, error)
}
