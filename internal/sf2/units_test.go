package sf2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimecentsRoundTrip(t *testing.T) {
	for _, tc := range []int{-12000, -1200, 0, 600, 1200, 4000} {
		seconds := TimecentsToSeconds(tc)
		back := SecondsToTimecents(seconds)
		require.InDelta(t, tc, back, 1, "round trip for %d timecents", tc)
	}
}

func TestTimecentsSentinel(t *testing.T) {
	require.Equal(t, 0.0, TimecentsToSeconds(-32768))
	require.Equal(t, 0.0, TimecentsToSeconds(-40000))
}

func TestCentibelsRoundTrip(t *testing.T) {
	for cb := 0.0; cb <= 960; cb += 40 {
		gain := CentibelsToGain(cb)
		back := GainToCentibels(gain)
		require.InDelta(t, cb, back, 0.1)
	}
}

func TestCentibelsSilenceFloor(t *testing.T) {
	require.Equal(t, 0.0, CentibelsToGain(1000))
	require.Equal(t, 0.0, CentibelsToGain(2000))
}

func TestAbsoluteCentsToHz(t *testing.T) {
	// 440 Hz should be ~6900 absolute cents above the 8.176 Hz reference.
	hz := AbsoluteCentsToHz(HzToAbsoluteCents(440))
	require.InDelta(t, 440, hz, 1e-6)
}

func TestPanGainsEqualPowerAtCenter(t *testing.T) {
	l, r := PanGains(0)
	require.InDelta(t, l, r, 1e-9)
	require.InDelta(t, 1.0, l*l+r*r, 1e-9)
}

func TestPanGainsHardLeftRight(t *testing.T) {
	l, r := PanGains(-500)
	require.InDelta(t, 1.0, l, 1e-9)
	require.InDelta(t, 0.0, r, 1e-9)

	l, r = PanGains(500)
	require.InDelta(t, 0.0, l, 1e-9)
	require.InDelta(t, 1.0, r, 1e-9)
}

func TestDecibelsToGain(t *testing.T) {
	require.InDelta(t, 1.0, DecibelsToGain(0), 1e-9)
	require.InDelta(t, 0.1, DecibelsToGain(20), 1e-9)
	require.InDelta(t, 20.0, GainToDecibels(0.1), 1e-9)
}
