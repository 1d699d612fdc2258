package sequencer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/icco/genisynth/internal/sf2"
	"github.com/icco/genisynth/internal/synth"
)

func synthBankForTest() *sf2.Bank {
	return sf2.NewSyntheticBank(sf2.SyntheticSampleSpec{
		Name:           "test",
		FrequencyHz:    440,
		SampleRate:     48000,
		DurationCycles: 32,
		OriginalPitch:  69,
	})
}

// recordingSink captures every message sent to it in order, standing in
// for a real MIDI-out port in passthrough-mode tests.
type recordingSink struct {
	sent []midi.Message
}

func (r *recordingSink) Send(msg midi.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func twoNoteTrack() SequencerTrack {
	return SequencerTrack{Events: []TrackEvent{
		{Tick: 0, Message: midi.NoteOn(0, 60, 100)},
		{Tick: 480, Message: midi.NoteOff(0, 60, 0)},
		{Tick: 480, Message: midi.NoteOn(0, 64, 100)},
		{Tick: 960, Message: midi.NoteOff(0, 64, 0)},
	}}
}

// constantTempoMap builds a TempoMap at 120bpm, 480 ticks/quarter, so
// one quarter note (480 ticks) is exactly half a second.
func constantTempoMap() *TempoMap {
	tm := NewTempoMap(480)
	tm.AddTempoChange(0, 500000) // 120bpm
	return tm
}

func TestSequencerPassthroughDispatchesInTickOrder(t *testing.T) {
	sink := &recordingSink{}
	seq := NewPassthroughSequencer([]SequencerTrack{twoNoteTrack()}, constantTempoMap(), sink)

	seq.Play(0)
	seq.Advance(0)
	require.Len(t, sink.sent, 1, "only the tick-0 event should be due at t=0")

	seq.Advance(0.5)
	require.Len(t, sink.sent, 3, "the two tick-480 events should become due at 0.5s")

	seq.Advance(1.0)
	require.Len(t, sink.sent, 4)
}

func TestSequencerSongEndedFiresOnceAllTracksExhausted(t *testing.T) {
	sink := &recordingSink{}
	seq := NewPassthroughSequencer([]SequencerTrack{twoNoteTrack()}, constantTempoMap(), sink)

	var ended bool
	seq.OnSongEnded = func() { ended = true }

	seq.Play(0)
	seq.Advance(2.0)
	require.True(t, ended)
	require.Len(t, sink.sent, 4)
}

func TestSequencerPauseFreezesPlayedTime(t *testing.T) {
	sink := &recordingSink{}
	seq := NewPassthroughSequencer([]SequencerTrack{twoNoteTrack()}, constantTempoMap(), sink)

	seq.Play(0)
	seq.Advance(0.25)
	seq.Pause(0.25)
	require.Equal(t, 1, len(sink.sent))

	// Time passing while paused must not advance playback.
	seq.Advance(10.0)
	require.Equal(t, 1, len(sink.sent))

	seq.Resume(10.0)
	seq.Advance(10.25)
	require.Len(t, sink.sent, 3, "resuming should pick up exactly where playedTime left off")
}

func TestSequencerSetRateKeepsPlayedTimeContinuous(t *testing.T) {
	sink := &recordingSink{}
	seq := NewPassthroughSequencer([]SequencerTrack{twoNoteTrack()}, constantTempoMap(), sink)

	seq.Play(0)
	seq.Advance(0.25) // halfway to the tick-480 events at normal rate
	require.Len(t, sink.sent, 1)

	seq.SetRate(2.0, 0.25)
	// At double rate, the remaining 0.25s of wall-clock covers 0.5s of
	// played time, which is enough to reach the tick-480 events.
	seq.Advance(0.5)
	require.Len(t, sink.sent, 3)
}

func TestSequencerLoopReplaysFromLoopStart(t *testing.T) {
	sink := &recordingSink{}
	seq := NewPassthroughSequencer([]SequencerTrack{twoNoteTrack()}, constantTempoMap(), sink)
	seq.SetLoop(0, 960, 1)

	seq.Play(0)
	seq.Advance(1.0) // reaches the loop end tick, should loop back once
	require.False(t, seq.ended)

	seq.Advance(2.0)
	require.True(t, seq.ended, "after the single loop iteration is consumed, the song should end normally")
}

func TestSequencerStopReleasesVoicesAndRewindsCursors(t *testing.T) {
	s := synth.NewSynth(synthBankForTest(), synth.Options{SampleRate: 48000, VoiceCap: 16})

	seq := NewSequencer([]SequencerTrack{twoNoteTrack()}, constantTempoMap(), s)
	seq.Play(0)
	seq.Advance(0)

	seq.Stop()
	require.False(t, seq.playing)
	require.Equal(t, 0, seq.cursors[0])
}

func TestSequencerSeekReplaysControllerStateSilently(t *testing.T) {
	track := SequencerTrack{Events: []TrackEvent{
		{Tick: 0, Message: midi.ProgramChange(0, 5)},
		{Tick: 0, Message: midi.ControlChange(0, 7, 100)},
		{Tick: 240, Message: midi.NoteOn(0, 60, 100)},
		{Tick: 480, Message: midi.NoteOff(0, 60, 0)},
	}}
	sink := &recordingSink{}
	seq := NewPassthroughSequencer([]SequencerTrack{track}, constantTempoMap(), sink)

	seq.Play(0)
	seq.Seek(240, 0)

	require.False(t, seq.channels[0].haveProgram == false && seq.channels[0].controllers[7] == 0,
		"seeking past tick 240 must have replayed the program-change and CC7 into channel state")
	require.Equal(t, uint8(5), seq.channels[0].program)
	require.Equal(t, uint8(100), seq.channels[0].controllers[7])

	for _, msg := range sink.sent {
		var ch, key, vel uint8
		require.False(t, msg.GetNoteOn(&ch, &key, &vel), "silent replay must never sound a note")
	}
}
