package esl

import (
	"errors"
	"testing"
)

func TestParseEventBody(t *testing.T) {
	body := "Event-Name: CHANNEL_ANSWER\n" +
		"Unique-ID: call_abc123\n" +
		"Caller-Caller-ID-Number: %2B33612345678\n" +
		"Answer-State: answered\n\n"

	ev, err := parseEventBody(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Name != EventChannelAnswer {
		t.Errorf("expected CHANNEL_ANSWER, got %s", ev.Name)
	}
	if ev.UniqueID() != "call_abc123" {
		t.Errorf("expected call_abc123, got %s", ev.UniqueID())
	}
	if got := ev.Get("Caller-Caller-ID-Number"); got != "+33612345678" {
		t.Errorf("header value should be URL-decoded, got %q", got)
	}
}

func TestParseEventBodyHeaderOrderIrrelevant(t *testing.T) {
	a := "Event-Name: CHANNEL_HANGUP_COMPLETE\nUnique-ID: u1\nHangup-Cause: USER_BUSY\n\n"
	b := "Hangup-Cause: USER_BUSY\nUnique-ID: u1\nEvent-Name: CHANNEL_HANGUP_COMPLETE\n\n"

	evA, err := parseEventBody(a)
	if err != nil {
		t.Fatal(err)
	}
	evB, err := parseEventBody(b)
	if err != nil {
		t.Fatal(err)
	}

	if evA.Name != evB.Name || evA.UniqueID() != evB.UniqueID() || evA.HangupCause() != evB.HangupCause() {
		t.Error("header ordering should not change the parsed event")
	}
}

func TestParseEventBodyMissingName(t *testing.T) {
	if _, err := parseEventBody("Unique-ID: u1\n\n"); err == nil {
		t.Error("expected error for event without Event-Name")
	}
}

func TestAPIErrorMapping(t *testing.T) {
	cases := []struct {
		body string
		want error
	}{
		{"-ERR USER_BUSY", ErrUserBusy},
		{"-ERR NO_ROUTE_DESTINATION", ErrNoTrunk},
		{"-ERR GATEWAY_DOWN", ErrNoTrunk},
		{"-ERR NO_ANSWER", ErrTimeout},
		{"-ERR ORIGINATOR_CANCEL", ErrProviderRejected},
		{"-ERR CALL_REJECTED", ErrProviderRejected},
	}

	for _, tc := range cases {
		err := apiError(tc.body)
		if !errors.Is(err, tc.want) {
			t.Errorf("apiError(%q) = %v, want %v", tc.body, err, tc.want)
		}
	}
}
