package synth

// LFO is a triangle-wave low-frequency oscillator used for both the
// vibrato and modulation LFOs (spec.md §4.3). It starts at 0, stays
// silent for Delay seconds, then runs continuously at Frequency.
// Triangle shape matches the teacher's own WaveTriangle arm in
// internal/audio/synth.go's generateWave, generalized with a delay gate.
type LFO struct {
	sampleRate float64
	delaySec   float64
	freqHz     float64
	elapsed    float64
	phase      float64
}

// Configure sets the delay (seconds) and frequency (Hz) for this LFO and
// resets it to its start-of-note state.
func (l *LFO) Configure(sampleRate, delaySec, freqHz float64) {
	l.sampleRate = sampleRate
	l.delaySec = delaySec
	l.freqHz = freqHz
	l.elapsed = 0
	l.phase = 0
}

// Advance steps the LFO forward by one sample and returns its current
// value in -1..1. Output is exactly 0 during the delay window.
func (l *LFO) Advance() float64 {
	dt := 1.0 / l.sampleRate
	l.elapsed += dt
	if l.elapsed < l.delaySec {
		return 0
	}
	if l.freqHz <= 0 {
		return 0
	}

	l.phase += l.freqHz * dt
	if l.phase >= 1 {
		l.phase -= float64(int(l.phase))
	}
	return triangle(l.phase)
}

// triangle maps phase in [0,1) to a -1..1 triangle wave starting at 0,
// rising to +1 at phase 0.25, falling through 0 at 0.5, reaching -1 at
// 0.75, and back to 0 at 1.0.
func triangle(phase float64) float64 {
	// Shift so the waveform starts at 0 and rises first.
	p := phase + 0.25
	if p >= 1 {
		p -= 1
	}
	if p < 0.5 {
		return 4*p - 1
	}
	return 3 - 4*p
}
