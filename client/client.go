// Package client connects to a remote spool broker over the wire protocol
// (WebSocket) to submit print jobs and follow their progress.
//
// Usage:
//
//	c, err := client.Dial("wss://print.example.com/ws",
//	    client.WithToken("sk_..."),
//	)
//	defer c.Close()
//
//	// Print a receipt on the best receipt printer at a location.
//	res, err := c.Print(ctx, receipt, "escpos",
//	    client.WithDocumentType("receipt"),
//	    client.WithLocation("store-12"),
//	)
//
//	// Follow the job until it completes.
//	ch, err := c.WatchJob(ctx, res.JobID)
//	for evt := range ch {
//	    fmt.Println(evt.Type)
//	}
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/spool/stream"
	"github.com/xraph/spool/wire"
)

// Error is an error frame returned by the server.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("spool/client: %d: %s", e.Code, e.Message)
}

// Client talks to a remote spool server.
type Client struct {
	url    string
	token  string
	format string
	logger *slog.Logger

	// Dialing.
	dialTimeout time.Duration
	header      http.Header

	// Reconnection.
	reconnect  bool
	maxRetries int
	baseDelay  time.Duration

	// Connection state.
	conn      net.Conn
	codec     wire.Codec
	mu        sync.Mutex
	closed    atomic.Bool
	sessionID string

	// Request-response correlation.
	pending sync.Map // frameID → chan *wire.Frame

	// Subscriptions.
	subs sync.Map // channel → chan *stream.Event
}

// Dial connects to a spool server and authenticates.
func Dial(url string, opts ...Option) (*Client, error) {
	return DialContext(context.Background(), url, opts...)
}

// DialContext connects to a spool server with a context.
func DialContext(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		url:        url,
		format:     wire.CodecNameJSON,
		logger:     slog.Default(),
		maxRetries: 5,
		baseDelay:  time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.connect(ctx); err != nil {
		return nil, fmt.Errorf("spool/client: dial: %w", err)
	}

	go c.readLoop()

	return c, nil
}

// connect establishes the WebSocket connection and authenticates. The
// auth exchange is JSON; the negotiated codec applies afterwards.
func (c *Client) connect(ctx context.Context) error {
	dialer := ws.Dialer{Timeout: c.dialTimeout}
	if len(c.header) > 0 {
		dialer.Header = ws.HandshakeHeaderHTTP(c.header)
	}
	conn, _, _, err := dialer.Dial(ctx, c.url)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	c.codec = &wire.JSONCodec{}

	authFrame, err := wire.NewRequestFrame(wire.GenerateFrameID(), wire.MethodAuth, wire.AuthRequest{
		Token:  c.token,
		Format: c.format,
	})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("marshal auth request: %w", err)
	}
	authFrame.Token = c.token

	if err := c.writeFrame(authFrame); err != nil {
		_ = conn.Close()
		return fmt.Errorf("write auth frame: %w", err)
	}

	// The read loop is not running yet, so read the auth response here.
	type readResult struct {
		resp *wire.Frame
		err  error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		data, readErr := wsutil.ReadServerText(conn)
		if readErr != nil {
			resultCh <- readResult{err: fmt.Errorf("read auth response: %w", readErr)}
			return
		}
		var frame wire.Frame
		if unmarshalErr := json.Unmarshal(data, &frame); unmarshalErr != nil {
			resultCh <- readResult{err: fmt.Errorf("unmarshal auth response: %w", unmarshalErr)}
			return
		}
		resultCh <- readResult{resp: &frame}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			_ = conn.Close()
			return result.err
		}
		resp := result.resp
		if resp.Type == wire.FrameErr {
			_ = conn.Close()
			msg := "unknown error"
			if resp.Error != nil {
				msg = resp.Error.Message
			}
			return fmt.Errorf("auth failed: %s", msg)
		}
		var authResp wire.AuthResponse
		if len(resp.Data) > 0 {
			if unmarshalErr := json.Unmarshal(resp.Data, &authResp); unmarshalErr != nil {
				c.logger.Warn("failed to unmarshal auth response", slog.String("error", unmarshalErr.Error()))
			}
		}
		c.sessionID = authResp.SessionID
		c.codec = wire.GetCodec(authResp.Format)
		c.logger.Info("spool client connected",
			slog.String("session_id", c.sessionID),
			slog.String("format", c.codec.Name()),
		)
		return nil
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	case <-time.After(10 * time.Second):
		_ = conn.Close()
		return fmt.Errorf("auth timeout")
	}
}

// readLoop reads frames from the WebSocket and routes them.
func (c *Client) readLoop() {
	for {
		if c.closed.Load() {
			return
		}

		data, _, err := wsutil.ReadServerData(c.conn)
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("spool client read error", slog.String("error", err.Error()))
			if c.reconnect {
				c.tryReconnect()
			}
			return
		}

		frame, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Warn("spool client: invalid frame", slog.String("error", err.Error()))
			continue
		}

		switch frame.Type {
		case wire.FrameResponse, wire.FrameErr:
			if val, ok := c.pending.Load(frame.CorrelID); ok {
				ch := val.(chan *wire.Frame) //nolint:errcheck // pending map always stores chan *wire.Frame
				select {
				case ch <- frame:
				default:
				}
			}
		case wire.FrameEvent:
			c.routeEvent(frame)
		case wire.FramePong:
		}
	}
}

// routeEvent delivers an event frame to every local subscription that
// covers it. The server sends one frame per event; the frame channel is
// the event's entity topic.
func (c *Client) routeEvent(frame *wire.Frame) {
	var evt stream.Event
	if err := json.Unmarshal(frame.Data, &evt); err != nil {
		c.logger.Warn("spool client: invalid event", slog.String("error", err.Error()))
		return
	}
	c.subs.Range(func(key, val any) bool {
		if !covers(key.(string), &evt) { //nolint:errcheck // subs map always has string keys
			return true
		}
		ch := val.(chan *stream.Event) //nolint:errcheck // subs map always stores chan *stream.Event
		select {
		case ch <- &evt:
		default:
			// Drop if subscriber is slow.
		}
		return true
	})
}

// tryReconnect attempts to reconnect with exponential backoff.
func (c *Client) tryReconnect() {
	delay := c.baseDelay
	for i := range c.maxRetries {
		c.logger.Info("spool client reconnecting",
			slog.Int("attempt", i+1),
			slog.Duration("delay", delay),
		)
		time.Sleep(delay)

		if err := c.connect(context.Background()); err != nil {
			c.logger.Warn("spool client reconnect failed", slog.String("error", err.Error()))
			delay = min(delay*2, 30*time.Second)
			continue
		}

		c.logger.Info("spool client reconnected")
		go c.readLoop()
		c.resubscribe()
		return
	}
	c.logger.Error("spool client: max reconnection attempts reached")
}

// resubscribe repeats the subscribe request for every open subscription
// after a reconnect.
func (c *Client) resubscribe() {
	c.subs.Range(func(key, _ any) bool {
		channel := key.(string) //nolint:errcheck // subs map is keyed by channel name
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.request(ctx, wire.MethodSubscribe, wire.SubscribeRequest{Channel: channel}); err != nil {
			c.logger.Warn("spool client resubscribe failed",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
		}
		return true
	})
}

// request sends a request frame and waits for the correlated response.
func (c *Client) request(ctx context.Context, method string, data any) (*wire.Frame, error) {
	frame := &wire.Frame{
		ID:        wire.GenerateFrameID(),
		Type:      wire.FrameRequest,
		Method:    method,
		Timestamp: time.Now().UTC(),
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal request data: %w", err)
		}
		frame.Data = raw
	}

	respCh := make(chan *wire.Frame, 1)
	c.pending.Store(frame.ID, respCh)
	defer c.pending.Delete(frame.ID)

	if err := c.writeFrame(frame); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.Type == wire.FrameErr {
			if resp.Error == nil {
				return nil, &Error{Code: wire.ErrCodeInternal, Message: "unknown error"}
			}
			return nil, &Error{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// call sends a request and decodes the response payload into out.
func (c *Client) call(ctx context.Context, method string, data, out any) error {
	resp, err := c.request(ctx, method, data)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", method, err)
	}
	return nil
}

// writeFrame encodes and sends a frame over the WebSocket.
func (c *Client) writeFrame(frame *wire.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.codec.Encode(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	op := ws.OpText
	if c.codec.Name() == wire.CodecNameMsgpack {
		op = ws.OpBinary
	}
	return wsutil.WriteClientMessage(c.conn, op, data)
}

// SessionID returns the session ID assigned by the server.
func (c *Client) SessionID() string { return c.sessionID }

// Close closes the client connection.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.subs.Range(func(key, val any) bool {
		ch := val.(chan *stream.Event) //nolint:errcheck // subs map always stores chan *stream.Event
		close(ch)
		c.subs.Delete(key)
		return true
	})

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
