package synth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/icco/genisynth/internal/sf2"
)

func testSample() *sf2.Sample {
	bank := sf2.NewSyntheticBank(sf2.SyntheticSampleSpec{
		Name:          "test",
		FrequencyHz:   440,
		SampleRate:    48000,
		DurationCycles: 32,
		OriginalPitch: 69,
	})
	return &bank.Samples[0]
}

func startedVoice(t *testing.T) *Voice {
	t.Helper()
	sample := testSample()
	gens := sf2.DefaultGenerators()
	gens[sf2.GenSampleModes] = sf2.SampleModeLoop
	gens[sf2.GenAttackVolEnv] = int16(sf2.SecondsToTimecents(0.001))
	gens[sf2.GenReleaseVolEnv] = int16(sf2.SecondsToTimecents(0.01))

	v := &Voice{}
	v.Start(voiceStartParams{
		Sample:        sample,
		Generators:    gens,
		Key:           69,
		Velocity:      100,
		ChannelNumber: 0,
		SampleRate:    48000,
	})
	require.True(t, v.Active())
	return v
}

func TestVoiceStartIsActive(t *testing.T) {
	v := startedVoice(t)
	require.Equal(t, 69, v.Key())
	require.False(t, v.InRelease())
}

func TestVoiceRenderBlockProducesNonZeroOutput(t *testing.T) {
	v := startedVoice(t)

	n := 2048
	buses := VoiceBuses{
		DryL: make([]float32, n), DryR: make([]float32, n),
		ReverbL: make([]float32, n), ReverbR: make([]float32, n),
		ChorusL: make([]float32, n), ChorusR: make([]float32, n),
	}

	v.RenderBlock(buses, 48000, ChannelPitchState{PitchBendRangeSemis: 2})

	var sawNonZero bool
	for _, s := range buses.DryL {
		if s != 0 {
			sawNonZero = true
			break
		}
	}
	require.True(t, sawNonZero, "expected a started voice to produce audible output")
}

func TestVoiceReleaseRunsToSilenceAndReclaimsSlot(t *testing.T) {
	v := startedVoice(t)
	v.Release()
	require.True(t, v.InRelease())

	n := int(48000 * 0.5)
	buses := VoiceBuses{
		DryL: make([]float32, n), DryR: make([]float32, n),
		ReverbL: make([]float32, n), ReverbR: make([]float32, n),
		ChorusL: make([]float32, n), ChorusR: make([]float32, n),
	}
	v.RenderBlock(buses, 48000, ChannelPitchState{})

	require.True(t, v.Finished())
	require.False(t, v.Active())
}

func TestVoiceKillIsImmediate(t *testing.T) {
	v := startedVoice(t)
	v.Kill()
	require.False(t, v.Active())
	require.True(t, v.Finished())
}
