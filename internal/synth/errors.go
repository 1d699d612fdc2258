package synth

import "errors"

// Error kinds (spec.md §7), as sentinels for errors.Is. Audio-thread
// failures are recovered locally: the offending voice, message or event
// is skipped and counted (DroppedVoices, EventBus.Dropped, the ring's
// drop counter). No function in this package returns these sentinels.
var (
	ErrInvalidSoundFont   = errors.New("synth: invalid soundfont")
	ErrMissingSample      = errors.New("synth: missing sample")
	ErrInvalidMIDIEvent   = errors.New("synth: invalid midi event")
	ErrVoiceLimitExceeded = errors.New("synth: voice limit exceeded")
	ErrQueueOverflow      = errors.New("synth: queue overflow")
)
