package session

import (
	"errors"
	"net/http"
	"time"
)

// Default timer settings.
const (
	DefaultDialTimeout       = 30 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultReconnectDelay    = 1 * time.Second
	DefaultMaxReconnectDelay = 30 * time.Second
	DefaultCloseTimeout      = 5 * time.Second
)

// Header is one endpoint header. Repeated names keep their relative
// order when applied to the handshake request.
type Header struct {
	Name  string
	Value string
}

// Options holds the connection settings supplied by the host for one
// Connect. The session snapshots them when Connect executes; edits made
// while a connection is live apply on the next Connect.
type Options struct {
	// URL is the endpoint to dial. Rendered through the template
	// renderer first when TemplateURL is set.
	URL string

	// Headers are applied to the handshake request in order.
	Headers []Header

	// SSLVerify controls TLS certificate verification for wss URLs.
	SSLVerify bool

	// AutoPing sends a protocol ping every PingInterval while open.
	AutoPing bool

	// AutoReconnect re-dials after a transport failure, with capped
	// exponential backoff between attempts.
	AutoReconnect bool

	// TemplateURL renders the URL through the template renderer.
	TemplateURL bool

	// TemplateData renders outbound text through the template renderer.
	TemplateData bool

	// Context is the variable context active for template rendering.
	Context string

	// DialTimeout bounds each dial attempt.
	DialTimeout time.Duration

	// PingInterval is the auto-ping period.
	PingInterval time.Duration

	// ReconnectDelay is the delay before the first reconnect attempt.
	// It is also the backoff floor: the delay never drops below it and
	// resets to it after every successful open.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the backoff growth.
	MaxReconnectDelay time.Duration

	// CloseTimeout bounds the close handshake on Disconnect.
	CloseTimeout time.Duration
}

// Validate reports whether the options can be used for a Connect.
func (o Options) Validate() error {
	if o.URL == "" {
		return errors.New("session: URL is required")
	}

	return nil
}

// withDefaults fills unset timers with the package defaults.
func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.MaxReconnectDelay <= 0 {
		o.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if o.MaxReconnectDelay < o.ReconnectDelay {
		o.MaxReconnectDelay = o.ReconnectDelay
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = DefaultCloseTimeout
	}

	return o
}

// header converts the ordered header slice for the handshake request.
func (o Options) header() http.Header {
	if len(o.Headers) == 0 {
		return nil
	}

	h := make(http.Header, len(o.Headers))
	for _, hd := range o.Headers {
		h.Add(hd.Name, hd.Value)
	}

	return h
}
