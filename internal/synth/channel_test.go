package synth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/icco/genisynth/internal/midiutil"
	"github.com/icco/genisynth/internal/sf2"
)

func testBank() *sf2.Bank {
	return sf2.NewSyntheticBank(sf2.SyntheticSampleSpec{
		Name:          "test",
		FrequencyHz:   440,
		SampleRate:    48000,
		DurationCycles: 32,
		OriginalPitch: 69,
	})
}

func testChannel(t *testing.T) *Channel {
	t.Helper()
	c := NewChannel(0, testBank(), 48000, NewEventBus(64))
	c.Dispatch(midi.ProgramChange(0, 0), 0)
	require.NotNil(t, c.preset)
	return c
}

func TestChannelNoteOnSpawnsVoice(t *testing.T) {
	c := testChannel(t)
	c.Dispatch(midi.NoteOn(0, 69, 100), 0)
	require.Equal(t, 1, c.ActiveVoiceCount())
}

func TestChannelVelocityZeroIsNoteOff(t *testing.T) {
	c := testChannel(t)
	c.Dispatch(midi.NoteOn(0, 69, 100), 0)
	require.Equal(t, 1, c.ActiveVoiceCount())

	c.Dispatch(midi.NoteOn(0, 69, 0), 0)
	require.True(t, c.voices[0].InRelease())
}

func TestChannelSustainHoldsNoteAfterOff(t *testing.T) {
	c := testChannel(t)
	c.Dispatch(midi.ControlChange(0, midiutil.CCSustainPedal, 127), 0)
	c.Dispatch(midi.NoteOn(0, 60, 100), 0)
	c.Dispatch(midi.NoteOff(0, 60, 0), 0)

	require.False(t, c.voices[0].InRelease(), "sustained voice must not release while the pedal is held")

	c.Dispatch(midi.ControlChange(0, midiutil.CCSustainPedal, 0), 0)
	require.True(t, c.voices[0].InRelease(), "releasing the pedal must release the sustained voice")
}

func TestChannelAllSoundOffKillsImmediately(t *testing.T) {
	c := testChannel(t)
	c.Dispatch(midi.NoteOn(0, 60, 100), 0)
	c.Dispatch(midi.ControlChange(0, midiutil.CCAllSoundOff, 0), 0)

	require.Equal(t, 0, c.ActiveVoiceCount())
}

func TestChannelAllNotesOffReleasesRatherThanKills(t *testing.T) {
	c := testChannel(t)
	c.Dispatch(midi.NoteOn(0, 60, 100), 0)
	c.Dispatch(midi.ControlChange(0, midiutil.CCAllNotesOff, 0), 0)

	require.True(t, c.voices[0].InRelease())
	require.True(t, c.voices[0].Active(), "all-notes-off should move voices into release, not silence them immediately")
}

func TestChannelExclusiveClassSilencesPreviousVoice(t *testing.T) {
	c := testChannel(t)
	bank := c.bank
	// Give the single instrument zone an exclusive class so two notes on
	// the same channel collide.
	bank.Instruments[0].Zones[0].Generators[sf2.GenExclusiveClass] = 1

	c.Dispatch(midi.NoteOn(0, 60, 100), 0)
	require.False(t, c.voices[0].InRelease())

	c.Dispatch(midi.NoteOn(0, 64, 100), 1)
	require.True(t, c.voices[0].InRelease(), "a same-exclusive-class note-on must release the earlier voice")
}

func TestChannelResetAllControllersPreservesLockedBits(t *testing.T) {
	c := testChannel(t)
	c.Dispatch(midi.ControlChange(0, midiutil.CCBankSelectMSB, 1), 0)
	before := c.controllers[midiutil.CCBankSelectMSB]

	c.Dispatch(midi.ControlChange(0, midiutil.CCResetAllControllers, 0), 0)

	require.Equal(t, before, c.controllers[midiutil.CCBankSelectMSB])
}

func TestChannelPitchWheelRecomputesModulators(t *testing.T) {
	c := testChannel(t)
	c.Dispatch(midi.NoteOn(0, 60, 100), 0)
	c.Dispatch(midi.Pitchbend(0, 4096), 0)
	require.Equal(t, int16(4096), c.pitchWheel)
}
