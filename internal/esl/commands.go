package esl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vocira/vocira/shared/id"
)

// failureSentinel prefixes every failed API reply from the softswitch.
const failureSentinel = "-ERR"

var (
	ErrProviderRejected = errors.New("provider rejected the call")
	ErrNoTrunk          = errors.New("no outbound trunk available")
	ErrTimeout          = errors.New("originate timed out")
	ErrUserBusy         = errors.New("destination busy")
	ErrDisconnected     = errors.New("softswitch disconnected")
)

// apiError maps a failure reply body onto a sentinel error. The raw reason
// is preserved in the wrap.
func apiError(body string) error {
	reason := strings.TrimSpace(strings.TrimPrefix(body, failureSentinel))
	switch {
	case strings.Contains(reason, "USER_BUSY"):
		return fmt.Errorf("%w: %s", ErrUserBusy, reason)
	case strings.Contains(reason, "NO_ROUTE_DESTINATION"),
		strings.Contains(reason, "GATEWAY_DOWN"),
		strings.Contains(reason, "NETWORK_OUT_OF_ORDER"):
		return fmt.Errorf("%w: %s", ErrNoTrunk, reason)
	case strings.Contains(reason, "NO_ANSWER"),
		strings.Contains(reason, "TIMEOUT"),
		strings.Contains(reason, "NO_USER_RESPONSE"):
		return fmt.Errorf("%w: %s", ErrTimeout, reason)
	default:
		return fmt.Errorf("%w: %s", ErrProviderRejected, reason)
	}
}

// OriginateParams carry everything needed to place one outbound leg.
type OriginateParams struct {
	Destination string
	CallerID    string
	Gateway     string
	TimeoutS    int
	// CallID pins the channel UUID so callers can subscribe to events
	// before the leg exists. Generated when empty.
	CallID string
	// Vars are set as channel variables on the new leg.
	Vars map[string]string
}

// Originate places an outbound call and parks the answered leg for the
// controller to drive. Returns the channel UUID assigned to the leg.
func (c *Client) Originate(ctx context.Context, p OriginateParams) (string, error) {
	callID := p.CallID
	if callID == "" {
		callID = id.NewWithLength("call", 16)
	}

	vars := []string{
		"origination_uuid=" + callID,
		"origination_caller_id_number=" + p.CallerID,
		fmt.Sprintf("originate_timeout=%d", p.TimeoutS),
		"ignore_early_media=true",
	}
	keys := make([]string, 0, len(p.Vars))
	for k := range p.Vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vars = append(vars, k+"="+p.Vars[k])
	}

	cmd := fmt.Sprintf("originate {%s}sofia/gateway/%s/%s &park()",
		strings.Join(vars, ","), p.Gateway, p.Destination)

	reply, err := c.ExecApi(ctx, cmd)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(reply, "+OK") {
		return "", fmt.Errorf("%w: unexpected reply %q", ErrProviderRejected, reply)
	}
	return callID, nil
}

// RecordStart begins recording the channel to a file on the softswitch
// host. limitS of zero means unlimited.
func (c *Client) RecordStart(ctx context.Context, callID, path string, limitS int) error {
	cmd := fmt.Sprintf("uuid_record %s start %s", callID, path)
	if limitS > 0 {
		cmd = fmt.Sprintf("%s %d", cmd, limitS)
	}
	_, err := c.ExecApi(ctx, cmd)
	return err
}

func (c *Client) RecordStop(ctx context.Context, callID, path string) error {
	_, err := c.ExecApi(ctx, fmt.Sprintf("uuid_record %s stop %s", callID, path))
	return err
}

// Play starts non-blocking playback on the channel. Completion arrives as a
// PLAYBACK_STOP event.
func (c *Client) Play(ctx context.Context, callID, audioPath string) error {
	_, err := c.ExecApi(ctx, fmt.Sprintf("uuid_broadcast %s %s aleg", callID, audioPath))
	return err
}

// Break interrupts the current playback on the channel.
func (c *Client) Break(ctx context.Context, callID string) error {
	_, err := c.ExecApi(ctx, "uuid_break "+callID)
	return err
}

func (c *Client) SetVar(ctx context.Context, callID, key, value string) error {
	_, err := c.ExecApi(ctx, fmt.Sprintf("uuid_setvar %s %s %s", callID, key, value))
	return err
}

// Transfer moves the call to a dialplan extension, used when an
// on-softswitch ASR module owns the next leg of the dialog.
func (c *Client) Transfer(ctx context.Context, callID, extension, dialplanContext string) error {
	_, err := c.ExecApi(ctx, fmt.Sprintf("uuid_transfer %s %s XML %s", callID, extension, dialplanContext))
	return err
}

// AudioStreamStart forks the caller-leg media to an external WebSocket
// consumer as raw PCM.
func (c *Client) AudioStreamStart(ctx context.Context, callID, wsURL string, sampleRate int) error {
	_, err := c.ExecApi(ctx, fmt.Sprintf("uuid_audio_stream %s start %s mono %dk", callID, wsURL, sampleRate/1000))
	return err
}

func (c *Client) AudioStreamStop(ctx context.Context, callID string) error {
	_, err := c.ExecApi(ctx, fmt.Sprintf("uuid_audio_stream %s stop", callID))
	return err
}

// Kill hangs the channel up. The caller is expected to have marked the
// hangup as robot-initiated before issuing this.
func (c *Client) Kill(ctx context.Context, callID string) error {
	_, err := c.ExecApi(ctx, "uuid_kill "+callID+" NORMAL_CLEARING")
	return err
}
