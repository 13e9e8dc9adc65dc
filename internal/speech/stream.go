package speech

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const streamHandshakeTimeout = 10 * time.Second

// streamSession is one live WebSocket session with the streaming gateway,
// isolated by call id. The read loop owns the connection; Close is safe to
// call concurrently and more than once.
type streamSession struct {
	callID string
	conn   *websocket.Conn
	events chan StreamEvent

	closeOnce sync.Once
	closed    chan struct{}
}

// OpenStream opens a streaming session for a call. The softswitch must be
// instructed separately to fork the caller-leg audio to StreamEndpoint.
func (c *Client) OpenStream(ctx context.Context, callID string) (StreamHandle, error) {
	if c.streamURL == "" {
		return nil, fmt.Errorf("no stream endpoint configured")
	}

	dialer := websocket.Dialer{HandshakeTimeout: streamHandshakeTimeout}
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	conn, resp, err := dialer.DialContext(ctx, c.StreamEndpoint(callID), header)
	if err != nil {
		if resp != nil {
			slog.Error("speech: stream dial failed", "call_id", callID, "status", resp.StatusCode, "error", err)
		} else {
			slog.Error("speech: stream dial failed", "call_id", callID, "error", err)
		}
		return nil, fmt.Errorf("dial stream: %w", err)
	}

	s := &streamSession{
		callID: callID,
		conn:   conn,
		events: make(chan StreamEvent, 32),
		closed: make(chan struct{}),
	}

	// Announce the session so the gateway binds the forked audio to it.
	hello, err := encodeStreamEnvelope(&streamEnvelope{CallID: callID, Type: "session_start"})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("announce session: %w", err)
	}

	go s.readLoop()

	slog.Debug("speech: stream session opened", "call_id", callID)
	return s, nil
}

func (s *streamSession) Events() <-chan StreamEvent {
	return s.events
}

func (s *streamSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
	return nil
}

// readLoop pumps gateway envelopes into the event channel until the
// transport closes, then closes the channel so consumers observe a finite
// sequence.
func (s *streamSession) readLoop() {
	defer close(s.events)
	defer s.Close()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				// Deliberate close, not an error.
			default:
				slog.Warn("speech: stream closed", "call_id", s.callID, "error", err)
			}
			return
		}

		env, err := decodeStreamEnvelope(data)
		if err != nil {
			slog.Warn("speech: dropping malformed stream message", "call_id", s.callID, "error", err)
			continue
		}

		ev, ok := env.toEvent()
		if !ok {
			continue
		}

		select {
		case s.events <- ev:
		case <-s.closed:
			return
		}
	}
}
