package speech

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// streamEnvelope is the wire format of the streaming gateway's control
// channel. Audio flows softswitch→gateway as opaque binary chunks; the
// gateway answers with msgpack envelopes on the same socket.
type streamEnvelope struct {
	CallID     string `msgpack:"call_id"`
	Type       string `msgpack:"type"`
	DurationMs int64  `msgpack:"duration_ms,omitempty"`
	Text       string `msgpack:"text,omitempty"`
}

func decodeStreamEnvelope(data []byte) (*streamEnvelope, error) {
	var e streamEnvelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode stream envelope: %w", err)
	}
	return &e, nil
}

func encodeStreamEnvelope(e *streamEnvelope) ([]byte, error) {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode stream envelope: %w", err)
	}
	return data, nil
}

func (e *streamEnvelope) toEvent() (StreamEvent, bool) {
	switch StreamEventKind(e.Type) {
	case StreamSpeechStart:
		return StreamEvent{Kind: StreamSpeechStart}, true
	case StreamSpeechEnd:
		return StreamEvent{Kind: StreamSpeechEnd, DurationMs: e.DurationMs}, true
	case StreamPartial:
		return StreamEvent{Kind: StreamPartial, Text: e.Text}, true
	case StreamFinal:
		return StreamEvent{Kind: StreamFinal, Text: e.Text}, true
	default:
		return StreamEvent{}, false
	}
}
