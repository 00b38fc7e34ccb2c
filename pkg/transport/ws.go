package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// WS dials WebSocket endpoints using github.com/coder/websocket.
// The zero value is ready to use.
type WS struct {
	// HTTPClient overrides the client used for the handshake when TLS
	// verification is on. Dials with sslVerify false always use an
	// internal client that skips certificate verification.
	HTTPClient *http.Client

	insecureOnce   sync.Once
	insecureClient *http.Client
}

// Dial opens a connection to url with the given handshake headers.
func (d *WS) Dial(ctx context.Context, url string, header http.Header, sslVerify bool) (Conn, error) {
	client := d.HTTPClient
	if !sslVerify {
		client = d.insecure()
	}

	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: client,
		HTTPHeader: header,
	})
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}

	// Interactive sessions echo whatever the peer sends; don't cap it
	// at the library default of 32KiB.
	conn.SetReadLimit(-1)

	return &wsConn{conn: conn}, nil
}

// insecure returns a cached client that accepts any TLS certificate.
func (d *WS) insecure() *http.Client {
	d.insecureOnce.Do(func() {
		t, ok := http.DefaultTransport.(*http.Transport)
		if ok {
			t = t.Clone()
		} else {
			t = &http.Transport{}
		}
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator-controlled verification toggle

		d.insecureClient = &http.Client{Transport: t}
	})

	return d.insecureClient
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) (Frame, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return Frame{}, err
	}

	return Frame{Binary: typ == websocket.MessageBinary, Data: data}, nil
}

func (c *wsConn) Write(ctx context.Context, f Frame) error {
	typ := websocket.MessageText
	if f.Binary {
		typ = websocket.MessageBinary
	}

	return c.conn.Write(ctx, typ, f.Data)
}

// Ping sends a protocol ping and reports the round-trip time to the
// peer's pong. A concurrent Read must be in progress for the pong to
// be received.
func (c *wsConn) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := c.conn.Ping(ctx); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}

func (c *wsConn) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = c.conn.CloseNow()
		return ctx.Err()
	}
}

// CloseCode extracts the WebSocket close status code from a read or
// write error. The second return value is false when the error does
// not carry one.
func CloseCode(err error) (int, bool) {
	code := websocket.CloseStatus(err)
	if code == -1 {
		return 0, false
	}

	return int(code), true
}
