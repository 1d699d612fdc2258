package synth

import (
	"math"

	"github.com/icco/genisynth/internal/sf2"
)

// Filter is a 2-pole resonant low-pass biquad (spec.md §4.3), direct
// form II transposed. Cutoff is supplied in absolute cents and
// resonance in centibels; coefficients are only recomputed when the
// cutoff input changes by at least 1 cent, per spec.md, to avoid
// recomputing trig/exp on every sample when the modulators are static.
type Filter struct {
	sampleRate float64

	lastCutoffCents float64
	coeffsValid     bool

	a0, a1, a2 float64
	b1, b2     float64

	z1, z2 float64 // transposed direct-form-II state
}

// Reset clears filter state (used on voice start so old samples don't
// leak into a reused Voice struct).
func (f *Filter) Reset(sampleRate float64) {
	f.sampleRate = sampleRate
	f.coeffsValid = false
	f.z1, f.z2 = 0, 0
}

// SetCutoffResonance updates the filter's target cutoff (absolute
// cents) and resonance (centibels), recomputing coefficients only if
// the cutoff moved by at least 1 cent since the last call.
func (f *Filter) SetCutoffResonance(cutoffCents, resonanceCB float64) {
	if f.coeffsValid && math.Abs(cutoffCents-f.lastCutoffCents) < 1 {
		return
	}
	f.lastCutoffCents = cutoffCents
	f.coeffsValid = true

	cutoffHz := sf2.AbsoluteCentsToHz(cutoffCents)
	nyquist := f.sampleRate / 2
	if cutoffHz > nyquist*0.975 {
		cutoffHz = nyquist * 0.975
	}
	if cutoffHz < 1 {
		cutoffHz = 1
	}

	qDB := resonanceCB / 10.0
	q := math.Pow(10, qDB/20.0)
	if q < 0.5 {
		q = 0.5
	}

	omega := 2 * math.Pi * cutoffHz / f.sampleRate
	sinW := math.Sin(omega)
	cosW := math.Cos(omega)
	alpha := sinW / (2 * q)

	b0 := (1 - cosW) / 2
	b1 := 1 - cosW
	b2 := (1 - cosW) / 2
	a0 := 1 + alpha
	a1 := -2 * cosW
	a2 := 1 - alpha

	f.a0 = b0 / a0
	f.a1 = b1 / a0
	f.a2 = b2 / a0
	f.b1 = a1 / a0
	f.b2 = a2 / a0
}

// Process filters one sample through the biquad, advancing internal
// state (transposed direct-form-II, two multiply-adds per coefficient).
func (f *Filter) Process(x float64) float64 {
	y := f.a0*x + f.z1
	f.z1 = f.a1*x - f.b1*y + f.z2
	f.z2 = f.a2*x - f.b2*y
	return y
}
