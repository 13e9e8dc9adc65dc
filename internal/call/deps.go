package call

import (
	"context"

	"github.com/vocira/vocira/internal/esl"
)

// Switch is the slice of the softswitch client the controller drives.
// *esl.Client satisfies it; tests substitute a scripted fake.
type Switch interface {
	Originate(ctx context.Context, p esl.OriginateParams) (string, error)
	Subscribe(callID string) *esl.Subscription
	RecordStart(ctx context.Context, callID, path string, limitS int) error
	RecordStop(ctx context.Context, callID, path string) error
	Play(ctx context.Context, callID, audioPath string) error
	Break(ctx context.Context, callID string) error
	SetVar(ctx context.Context, callID, key, value string) error
	Transfer(ctx context.Context, callID, extension, dialplanContext string) error
	AudioStreamStart(ctx context.Context, callID, wsURL string, sampleRate int) error
	AudioStreamStop(ctx context.Context, callID string) error
	Kill(ctx context.Context, callID string) error
}

var _ Switch = (*esl.Client)(nil)
