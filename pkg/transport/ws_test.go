package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = gorilla.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// echoServer upgrades every request and echoes frames back. Captured
// handshake headers are stored for inspection.
type echoServer struct {
	*httptest.Server

	mu     sync.Mutex
	header http.Header
}

func newEchoServer(t *testing.T, tls bool) *echoServer {
	t.Helper()

	es := &echoServer{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		es.mu.Lock()
		es.header = r.Header.Clone()
		es.mu.Unlock()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = c.Close() }()

		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, data); err != nil {
				return
			}
		}
	})

	if tls {
		es.Server = httptest.NewTLSServer(handler)
	} else {
		es.Server = httptest.NewServer(handler)
	}
	t.Cleanup(es.Close)

	return es
}

func (es *echoServer) handshakeHeader() http.Header {
	es.mu.Lock()
	defer es.mu.Unlock()

	return es.header
}

func (es *echoServer) wsURL() string {
	return "ws" + strings.TrimPrefix(es.URL, "http")
}

func TestDialEcho(t *testing.T) {
	es := newEchoServer(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("X-Token", "secret")

	var d WS
	conn, err := d.Dial(ctx, es.wsURL(), header, true)
	require.NoError(t, err)
	defer func() { _ = conn.Close(ctx) }()

	assert.Equal(t, "secret", es.handshakeHeader().Get("X-Token"))

	t.Run("text", func(t *testing.T) {
		require.NoError(t, conn.Write(ctx, Frame{Data: []byte("hello")}))
		f, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.False(t, f.Binary)
		assert.Equal(t, "hello", string(f.Data))
	})

	t.Run("binary", func(t *testing.T) {
		require.NoError(t, conn.Write(ctx, Frame{Binary: true, Data: []byte{0x00, 0x01}}))
		f, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.True(t, f.Binary)
		assert.Equal(t, []byte{0x00, 0x01}, f.Data)
	})
}

func TestPing(t *testing.T) {
	es := newEchoServer(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var d WS
	conn, err := d.Dial(ctx, es.wsURL(), nil, true)
	require.NoError(t, err)

	// Pongs are only delivered while a read is in progress.
	readCtx, stopRead := context.WithCancel(context.Background())
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_, _ = conn.Read(readCtx)
	}()

	rtt, err := conn.Ping(ctx)
	require.NoError(t, err)
	assert.Positive(t, rtt)

	stopRead()
	<-readDone
}

func TestDialTLS(t *testing.T) {
	es := newEchoServer(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var d WS

	t.Run("verification rejects self-signed", func(t *testing.T) {
		_, err := d.Dial(ctx, es.wsURL(), nil, true)
		require.Error(t, err)
	})

	t.Run("verification off connects", func(t *testing.T) {
		conn, err := d.Dial(ctx, es.wsURL(), nil, false)
		require.NoError(t, err)
		defer func() { _ = conn.Close(ctx) }()

		require.NoError(t, conn.Write(ctx, Frame{Data: []byte("hi")}))
		f, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, "hi", string(f.Data))
	})
}

func TestDialFailure(t *testing.T) {
	es := newEchoServer(t, false)
	url := es.wsURL()
	es.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var d WS
	_, err := d.Dial(ctx, url, nil, true)
	require.Error(t, err)
}

func TestCloseCode(t *testing.T) {
	t.Run("plain errors carry none", func(t *testing.T) {
		_, ok := CloseCode(context.Canceled)
		assert.False(t, ok)
	})

	t.Run("peer close status surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer func() { _ = c.Close() }()

			msg := gorilla.FormatCloseMessage(4000, "going away")
			_ = c.WriteControl(gorilla.CloseMessage, msg, time.Now().Add(time.Second))

			// Wait for the client's close response.
			_, _, _ = c.ReadMessage()
		}))
		t.Cleanup(srv.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var d WS
		conn, err := d.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil, true)
		require.NoError(t, err)

		_, err = conn.Read(ctx)
		require.Error(t, err)

		code, ok := CloseCode(err)
		require.True(t, ok)
		assert.Equal(t, 4000, code)
	})
}
