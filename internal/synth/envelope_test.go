package synth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVolEnvelopeAttacksToFullGain(t *testing.T) {
	var e VolEnvelope
	e.Start(EnvelopeParams{AttackSec: 0.01, SustainDB: 0, ReleaseSec: 0.1}, 48000, 0)

	var gain float64
	for i := 0; i < int(48000*0.5); i++ {
		gain = e.Advance()
	}
	require.InDelta(t, 1.0, gain, 0.05)
	require.False(t, e.Finished())
}

func TestVolEnvelopeReleaseReachesSilence(t *testing.T) {
	var e VolEnvelope
	e.Start(EnvelopeParams{AttackSec: 0, SustainDB: 0, ReleaseSec: 0.05}, 48000, 0)
	for i := 0; i < 100; i++ {
		e.Advance()
	}
	e.Release()
	require.True(t, e.InRelease())

	for i := 0; i < int(48000*2); i++ {
		e.Advance()
	}
	require.True(t, e.Finished())
}

func TestVolEnvelopeReleaseIsIdempotent(t *testing.T) {
	var e VolEnvelope
	e.Start(EnvelopeParams{ReleaseSec: 0.1}, 48000, 0)
	e.Release()
	firstFrom := e.releaseFromDB
	e.Advance()
	e.Release() // a second Release must not reset releaseFromDB mid-decay
	require.Equal(t, firstFrom, e.releaseFromDB)
}

func TestModEnvelopeRange(t *testing.T) {
	var e ModEnvelope
	e.Start(EnvelopeParams{AttackSec: 0.01, HoldSec: 0.01, DecaySec: 0.01, SustainDB: 0}, 48000)

	for i := 0; i < int(48000*0.5); i++ {
		v := e.Advance()
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0+1e-9)
	}
}
