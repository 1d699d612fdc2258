package synth

import "math"

// ReverbEffect convolves the reverb send bus with a loaded impulse
// response (spec.md §4.6 step 4: "feed reverb bus through the
// impulse-response convolver"). Direct time-domain convolution against
// a circular history buffer — same shape as the teacher's state-variable
// filter in spirit (coefficients fixed at load time, only the running
// state mutates per sample), generalized from a single feedback state
// to a full impulse response. The impulse response arrives as sample
// slices from the caller; no package in this module decodes it from a
// file, so internal/synth has no file-I/O dependency.
type ReverbEffect struct {
	irL, irR         []float32
	historyL, historyR []float32
	pos              int
	enabled          bool
}

// NewReverbEffect builds a reverb bus from a stereo impulse response.
// irL and irR must be the same length; pass the same slice twice for a
// mono impulse response.
func NewReverbEffect(irL, irR []float32) *ReverbEffect {
	n := len(irL)
	return &ReverbEffect{
		irL:      irL,
		irR:      irR,
		historyL: make([]float32, n),
		historyR: make([]float32, n),
		enabled:  n > 0,
	}
}

// Process convolves sendL/sendR, the reverb-send bus samples, with the
// impulse response and adds the wet signal into outL/outR. Allocation-free: history buffers are fixed-size and reused.
func (r *ReverbEffect) Process(sendL, sendR, outL, outR []float32) {
	if !r.enabled {
		return
	}
	n := len(r.irL)
	for i := range sendL {
		r.historyL[r.pos] = sendL[i]
		r.historyR[r.pos] = sendR[i]

		var accL, accR float32
		idx := r.pos
		for t := 0; t < n; t++ {
			accL += r.irL[t] * r.historyL[idx]
			accR += r.irR[t] * r.historyR[idx]
			idx--
			if idx < 0 {
				idx = n - 1
			}
		}
		outL[i] += accL
		outR[i] += accR

		r.pos++
		if r.pos >= n {
			r.pos = 0
		}
	}
}

// ChorusConfig is spec.md §6's chorusConfig: {delay, depth, rate,
// feedback}.
type ChorusConfig struct {
	DelayMS   float64
	DepthMS   float64
	RateHz    float64
	Feedback  float64
}

// ChorusEffect is a modulated delay network: a delay line whose read
// pointer is swept by a triangle LFO, with feedback, matching spec.md
// §4.6 step 4's "modulated-delay network". The left and right channels
// have their own delay lines, read with LFO positions a quarter-cycle
// apart for stereo width, the same
// trick the teacher's LFO-driven vibrato applies to pitch rather than
// delay time.
type ChorusEffect struct {
	cfg        ChorusConfig
	sampleRate float64

	bufL, bufR []float32
	writePos   int

	lfo LFO

	enabled bool
}

// NewChorusEffect builds a chorus bus with a delay line sized to the
// configured max delay+depth, at the given sample rate.
func NewChorusEffect(cfg ChorusConfig, sampleRate float64) *ChorusEffect {
	maxDelaySamples := int((cfg.DelayMS+cfg.DepthMS+5)/1000.0*sampleRate) + 2
	if maxDelaySamples < 4 {
		maxDelaySamples = 4
	}
	c := &ChorusEffect{
		cfg:        cfg,
		sampleRate: sampleRate,
		bufL:       make([]float32, maxDelaySamples),
		bufR:       make([]float32, maxDelaySamples),
		enabled:    cfg.RateHz > 0,
	}
	c.lfo.Configure(sampleRate, 0, cfg.RateHz)
	return c
}

// Process runs the chorus send bus through the modulated delay, adding
// the wet signal into outL/outR.
func (c *ChorusEffect) Process(sendL, sendR, outL, outR []float32) {
	if !c.enabled {
		return
	}
	n := len(c.bufL)
	baseDelay := c.cfg.DelayMS / 1000.0 * c.sampleRate
	depthSamples := c.cfg.DepthMS / 1000.0 * c.sampleRate

	for i := range sendL {
		lfoL := c.lfo.Advance()
		// Offset the right channel's LFO position by a quarter period to
		// widen the stereo image without a second LFO.
		lfoR := triangle(math.Mod(c.lfoPhase()+0.25, 1.0))

		wetL := c.readDelayed(c.bufL, baseDelay+depthSamples*lfoL)
		wetR := c.readDelayed(c.bufR, baseDelay+depthSamples*lfoR)

		c.bufL[c.writePos] = sendL[i] + float32(c.cfg.Feedback)*wetL
		c.bufR[c.writePos] = sendR[i] + float32(c.cfg.Feedback)*wetR

		outL[i] += wetL
		outR[i] += wetR

		c.writePos++
		if c.writePos >= n {
			c.writePos = 0
		}
	}
}

func (c *ChorusEffect) lfoPhase() float64 {
	return c.lfo.phase
}

// readDelayed linearly interpolates buf at delaySamples behind the
// current write position.
func (c *ChorusEffect) readDelayed(buf []float32, delaySamples float64) float32 {
	n := len(buf)
	readPos := float64(c.writePos) - delaySamples
	for readPos < 0 {
		readPos += float64(n)
	}
	i0 := int(readPos) % n
	i1 := (i0 + 1) % n
	frac := readPos - math.Floor(readPos)
	return buf[i0] + float32(frac)*(buf[i1]-buf[i0])
}
