package esl

import (
	"bufio"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Event names consumed from the softswitch, plus the synthetic ones the
// client emits itself.
const (
	EventChannelCreate         = "CHANNEL_CREATE"
	EventChannelAnswer         = "CHANNEL_ANSWER"
	EventChannelHangup         = "CHANNEL_HANGUP"
	EventChannelHangupComplete = "CHANNEL_HANGUP_COMPLETE"
	EventChannelDestroy        = "CHANNEL_DESTROY"
	EventPlaybackStart         = "PLAYBACK_START"
	EventPlaybackStop          = "PLAYBACK_STOP"
	EventRecordStart           = "RECORD_START"
	EventRecordStop            = "RECORD_STOP"
	EventCustom                = "CUSTOM"

	// EventProviderDisconnected is synthesized locally when the event
	// connection drops; it is delivered to every open subscription so the
	// owning call can terminate.
	EventProviderDisconnected = "PROVIDER_DISCONNECTED"
)

// subscribedEvents is the fixed set requested on the event connection.
var subscribedEvents = []string{
	EventChannelCreate,
	EventChannelAnswer,
	EventChannelHangup,
	EventChannelHangupComplete,
	EventChannelDestroy,
	EventPlaybackStart,
	EventPlaybackStop,
	EventRecordStart,
	EventRecordStop,
	EventCustom,
}

// Event is one asynchronous softswitch event. Headers hold the decoded
// key/value pairs; ordering variance between softswitch versions is
// irrelevant because lookup is by name.
type Event struct {
	Name    string
	Headers map[string]string
	Body    string
}

func (e *Event) Get(key string) string {
	return e.Headers[key]
}

// UniqueID returns the channel identifier the event belongs to, or "".
func (e *Event) UniqueID() string {
	return e.Headers["Unique-ID"]
}

// HangupCause returns the hangup cause header for hangup events.
func (e *Event) HangupCause() string {
	return e.Headers["Hangup-Cause"]
}

// Application returns the app name for playback/record events.
func (e *Event) Application() string {
	return e.Headers["Application"]
}

// parseEventBody parses the header-formatted body of a text/event-plain
// message into an Event. Values are URL-decoded; a trailing free-form body
// (announced by an inner Content-Length) is kept verbatim.
func parseEventBody(body string) (*Event, error) {
	ev := &Event{Headers: make(map[string]string)}

	r := bufio.NewReader(strings.NewReader(body))
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			if err != nil {
				break
			}
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if dec, decErr := url.QueryUnescape(v); decErr == nil {
			v = dec
		}
		ev.Headers[k] = v
		if err != nil {
			break
		}
	}

	if cl := ev.Headers["Content-Length"]; cl != "" {
		if n, err := strconv.Atoi(cl); err == nil && n > 0 {
			buf := make([]byte, n)
			read, _ := r.Read(buf)
			ev.Body = string(buf[:read])
		}
	}

	ev.Name = ev.Headers["Event-Name"]
	if ev.Name == "" {
		return nil, fmt.Errorf("event without Event-Name header")
	}
	return ev, nil
}

func syntheticDisconnect(callID string) *Event {
	return &Event{
		Name: EventProviderDisconnected,
		Headers: map[string]string{
			"Event-Name": EventProviderDisconnected,
			"Unique-ID":  callID,
		},
	}
}
