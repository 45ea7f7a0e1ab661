package client

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithToken sets the API key sent in the auth handshake.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithFormat selects the frame codec negotiated after auth: "json"
// (default) or "msgpack". Binary print payloads travel more compactly as
// msgpack.
func WithFormat(format string) Option {
	return func(c *Client) { c.format = format }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithReconnect re-dials after a dropped connection, up to maxRetries
// times with exponential delays starting at baseDelay. Subscriptions are
// restored on the new connection.
func WithReconnect(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.reconnect = true
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
	}
}

// WithDialTimeout bounds the websocket handshake. Zero means no limit
// beyond the dial context.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithHeader adds HTTP headers to the upgrade request, e.g. for a proxy
// in front of the broker.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h.Clone() }
}
