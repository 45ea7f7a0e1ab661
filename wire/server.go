package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/spool/id"
	"github.com/xraph/spool/stream"
)

// Server upgrades HTTP requests to WebSocket connections and speaks the
// wire protocol on them. It implements http.Handler.
type Server struct {
	broker       *stream.Broker
	handler      *Handler
	auth         Authenticator
	defaultCodec Codec
	conns        *ConnectionManager
	logger       *slog.Logger
}

// NewServer creates a new wire server.
func NewServer(broker *stream.Broker, handler *Handler, opts ...Option) *Server {
	s := &Server{
		broker:       broker,
		handler:      handler,
		defaultCodec: &JSONCodec{},
		conns:        NewConnectionManager(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auth == nil {
		s.auth = &NoopAuthenticator{}
	}
	handler.conns = s.conns
	return s
}

// Broker returns the underlying stream broker.
func (s *Server) Broker() *stream.Broker { return s.broker }

// Connections returns the connection manager.
func (s *Server) Connections() *ConnectionManager { return s.conns }

// ServeHTTP upgrades the request and serves frames until the peer goes
// away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	connID := id.NewSubscriberID().String()
	if err := s.serve(r.Context(), connID, conn); err != nil {
		s.logger.Debug("websocket closed with error",
			slog.String("conn_id", connID),
			slog.String("error", err.Error()),
		)
	}
}

// socket serializes writes: the frame loop and the event forwarder share
// the connection.
type socket struct {
	mu    sync.Mutex
	conn  net.Conn
	codec Codec
}

func (sk *socket) write(frame *Frame) error {
	data, err := sk.codec.Encode(frame)
	if err != nil {
		return err
	}
	op := ws.OpText
	if sk.codec.Name() == CodecNameMsgpack {
		op = ws.OpBinary
	}
	sk.mu.Lock()
	defer sk.mu.Unlock()
	return wsutil.WriteServerMessage(sk.conn, op, data)
}

func (s *Server) serve(ctx context.Context, connID string, conn net.Conn) error {
	s.logger.Info("websocket connected", slog.String("conn_id", connID))

	// The auth frame is always JSON; the codec is negotiated by it.
	sk := &socket{conn: conn, codec: &JSONCodec{}}

	authData, _, err := wsutil.ReadClientData(conn)
	if err != nil {
		return fmt.Errorf("wire: read auth frame: %w", err)
	}

	var authFrame Frame
	if err := json.Unmarshal(authData, &authFrame); err != nil {
		_ = sk.write(NewErrorFrame("", ErrCodeBadRequest, "invalid auth frame"))
		return fmt.Errorf("wire: unmarshal auth frame: %w", err)
	}
	if authFrame.Method != MethodAuth {
		_ = sk.write(NewErrorFrame(authFrame.ID, ErrCodeBadRequest, "first frame must be auth"))
		return fmt.Errorf("wire: expected auth frame, got %q", authFrame.Method)
	}

	var authReq AuthRequest
	if len(authFrame.Data) > 0 {
		if err := json.Unmarshal(authFrame.Data, &authReq); err != nil {
			_ = sk.write(NewErrorFrame(authFrame.ID, ErrCodeBadRequest, "invalid auth data"))
			return err
		}
	}

	token := authReq.Token
	if token == "" {
		token = authFrame.Token
	}
	identity, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		_ = sk.write(NewErrorFrame(authFrame.ID, ErrCodeUnauthorized, "authentication failed"))
		return fmt.Errorf("wire: auth failed: %w", err)
	}

	codec := s.defaultCodec
	if authReq.Format != "" {
		codec = GetCodec(authReq.Format)
	}

	wconn := NewConnection(connID, identity, codec)
	s.conns.Add(wconn)
	defer func() {
		s.broker.RemoveSubscriber(connID)
		s.conns.Remove(connID)
		s.logger.Info("websocket disconnected", slog.String("conn_id", connID))
	}()

	resp, err := NewResponseFrame(authFrame.ID, AuthResponse{
		Format:    codec.Name(),
		SessionID: connID,
	})
	if err != nil {
		return fmt.Errorf("wire: marshal auth response: %w", err)
	}
	if err := sk.write(resp); err != nil {
		return err
	}
	sk.codec = codec

	s.logger.Info("websocket authenticated",
		slog.String("conn_id", connID),
		slog.String("subject", identity.Subject),
		slog.String("codec", codec.Name()),
	)

	sub := s.broker.Subscribe(connID)
	go s.forwardEvents(sk, sub)

	for {
		data, _, err := wsutil.ReadClientData(conn)
		if err != nil {
			return nil // Connection closed.
		}
		wconn.Touch()

		frame, err := codec.Decode(data)
		if err != nil {
			s.writeOrWarn(sk, NewErrorFrame("", ErrCodeBadRequest, "invalid frame: "+err.Error()))
			continue
		}

		if frame.Type == FramePing {
			s.writeOrWarn(sk, &Frame{
				ID:        GenerateFrameID(),
				Type:      FramePong,
				CorrelID:  frame.ID,
				Timestamp: frame.Timestamp,
			})
			continue
		}

		if frame.Credits > 0 {
			sub.AddCredits(int64(frame.Credits))
			continue
		}

		if required := RequiredScope(frame.Method); required != "" && !identity.HasScope(required) {
			s.writeOrWarn(sk, NewErrorFrame(frame.ID, ErrCodeForbidden, "insufficient permissions"))
			continue
		}

		respFrame := s.handler.Handle(ctx, frame, wconn)
		if respFrame == nil {
			continue
		}

		if respFrame.Type == FrameResponse {
			switch frame.Method {
			case MethodSubscribe:
				var req SubscribeRequest
				if json.Unmarshal(frame.Data, &req) == nil {
					s.broker.SubscribeTo(connID, req.Channel)
					wconn.AddSubscription(req.Channel)
					if len(req.Types) > 0 {
						sub.Accept(eventTypes(req.Types)...)
					}
				}
			case MethodUnsubscribe:
				var req UnsubscribeRequest
				if json.Unmarshal(frame.Data, &req) == nil {
					s.broker.Unsubscribe(connID, req.Channel)
					wconn.RemoveSubscription(req.Channel)
				}
			}
		}

		s.writeOrWarn(sk, respFrame)
	}
}

// forwardEvents writes broker events to the socket until the subscriber
// is removed or the peer goes away.
func (s *Server) forwardEvents(sk *socket, sub *stream.Subscriber) {
	for evt := range sub.C() {
		frame, err := NewEventFrame(evt.Topic, evt)
		if err != nil {
			continue
		}
		if err := sk.write(frame); err != nil {
			return
		}
	}
}

func (s *Server) writeOrWarn(sk *socket, frame *Frame) {
	if err := sk.write(frame); err != nil {
		s.logger.Warn("failed to write frame", slog.String("error", err.Error()))
	}
}

func eventTypes(names []string) []stream.EventType {
	out := make([]stream.EventType, len(names))
	for i, n := range names {
		out[i] = stream.EventType(n)
	}
	return out
}
