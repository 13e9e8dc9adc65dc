package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeStreamGateway accepts one WebSocket session, records the session_start
// envelope and replies with a scripted sequence of envelopes.
type fakeStreamGateway struct {
	t        *testing.T
	srv      *httptest.Server
	script   []*streamEnvelope
	started  chan *streamEnvelope
	wantAuth string
}

func newFakeStreamGateway(t *testing.T, script []*streamEnvelope) *fakeStreamGateway {
	g := &fakeStreamGateway{t: t, script: script, started: make(chan *streamEnvelope, 1)}
	upgrader := websocket.Upgrader{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.wantAuth != "" && r.Header.Get("Authorization") != g.wantAuth {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read hello: %v", err)
			return
		}
		hello, err := decodeStreamEnvelope(data)
		if err != nil {
			t.Errorf("decode hello: %v", err)
			return
		}
		g.started <- hello

		for _, env := range g.script {
			payload, err := encodeStreamEnvelope(env)
			if err != nil {
				t.Errorf("encode: %v", err)
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				return
			}
		}
	}))
	return g
}

func (g *fakeStreamGateway) wsURL() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func (g *fakeStreamGateway) close() {
	g.srv.Close()
}

func collectEvents(t *testing.T, h StreamHandle, n int) []StreamEvent {
	t.Helper()
	var got []StreamEvent
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				t.Fatalf("stream closed after %d of %d events", len(got), n)
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(got), n)
		}
	}
	return got
}

func TestOpenStreamEventSequence(t *testing.T) {
	g := newFakeStreamGateway(t, []*streamEnvelope{
		{Type: "speech_start"},
		{Type: "partial", Text: "je ne suis"},
		{Type: "speech_end", DurationMs: 1800},
		{Type: "final", Text: "je ne suis pas intéressé"},
	})
	defer g.close()

	c := NewClient("", g.wsURL(), "", "whisper-large-v3")
	h, err := c.OpenStream(context.Background(), "call_abc123")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer h.Close()

	select {
	case hello := <-g.started:
		if hello.Type != "session_start" || hello.CallID != "call_abc123" {
			t.Errorf("unexpected hello %+v", hello)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("gateway never saw session_start")
	}

	events := collectEvents(t, h, 4)

	if events[0].Kind != StreamSpeechStart {
		t.Errorf("event 0: want speech_start, got %s", events[0].Kind)
	}
	if events[1].Kind != StreamPartial || events[1].Text != "je ne suis" {
		t.Errorf("event 1: %+v", events[1])
	}
	if events[2].Kind != StreamSpeechEnd || events[2].DurationMs != 1800 {
		t.Errorf("event 2: %+v", events[2])
	}
	if events[3].Kind != StreamFinal || events[3].Text != "je ne suis pas intéressé" {
		t.Errorf("event 3: %+v", events[3])
	}
}

func TestStreamChannelClosesOnTransportClose(t *testing.T) {
	g := newFakeStreamGateway(t, []*streamEnvelope{{Type: "speech_start"}})
	defer g.close()

	c := NewClient("", g.wsURL(), "", "whisper-large-v3")
	h, err := c.OpenStream(context.Background(), "call_gone")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer h.Close()

	<-g.started
	collectEvents(t, h, 1)

	// The gateway handler returns after its script, closing the socket.
	select {
	case _, ok := <-h.Events():
		if ok {
			t.Error("expected channel close, got event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel never closed")
	}
}

func TestStreamMalformedMessageSkipped(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage() // hello
		conn.WriteMessage(websocket.BinaryMessage, []byte{0xc1}) // never a valid msgpack value
		good, _ := encodeStreamEnvelope(&streamEnvelope{Type: "final", Text: "allô"})
		conn.WriteMessage(websocket.BinaryMessage, good)
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient("", "ws"+strings.TrimPrefix(srv.URL, "http"), "", "whisper-large-v3")
	h, err := c.OpenStream(context.Background(), "call_mal")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer h.Close()

	events := collectEvents(t, h, 1)
	if events[0].Kind != StreamFinal || events[0].Text != "allô" {
		t.Errorf("expected the valid envelope to survive, got %+v", events[0])
	}
}

func TestOpenStreamSendsAuth(t *testing.T) {
	g := newFakeStreamGateway(t, nil)
	g.wantAuth = "Bearer sk-test"
	defer g.close()

	c := NewClient("", g.wsURL(), "sk-test", "whisper-large-v3")
	h, err := c.OpenStream(context.Background(), "call_auth")
	if err != nil {
		t.Fatalf("open stream with auth: %v", err)
	}
	h.Close()
}

func TestOpenStreamNoEndpoint(t *testing.T) {
	c := NewClient("http://localhost:1", "", "", "whisper-large-v3")
	if _, err := c.OpenStream(context.Background(), "call_x"); err == nil {
		t.Error("expected error with no stream endpoint configured")
	}
}
