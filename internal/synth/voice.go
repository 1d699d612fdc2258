package synth

import (
	"math"

	"github.com/icco/genisynth/internal/sf2"
)

// Voice is the per-voice sample generator (spec.md §3, §4.4). It is
// exclusively owned by one Channel and lives in that Channel's
// preallocated voice arena, never heap-allocated on the hot path.
type Voice struct {
	inUse bool

	sample *sf2.Sample

	baseGenerators      sf2.GeneratorVector
	modulatedGenerators sf2.GeneratorVector
	modulators          []sf2.Modulator

	currentSampleIndex float64 // f64, spec.md §3
	playbackStep       float64

	targetKey      int
	targetVelocity int
	channelNumber  int
	exclusiveClass int16

	volEnv VolEnvelope
	modEnv ModEnvelope
	volLFO LFO
	modLFO LFO
	filter Filter

	startTimeSamples int64
	isInRelease      bool
	finished         bool

	panLeft, panRight float64
}

// Active reports whether this Voice slot is currently allocated to a
// note.
func (v *Voice) Active() bool { return v.inUse && !v.finished }

// Finished reports whether the voice has reached perceived silence and
// should be reclaimed by its Channel.
func (v *Voice) Finished() bool { return v.finished }

// Key returns the MIDI key this voice is sounding.
func (v *Voice) Key() int { return v.targetKey }

// ExclusiveClass returns the voice's SF2 exclusive class, 0 meaning
// none.
func (v *Voice) ExclusiveClass() int16 { return v.exclusiveClass }

// InRelease reports whether the voice has begun its release phase.
func (v *Voice) InRelease() bool { return v.isInRelease }

// voiceStartParams bundles everything Channel.noteOn needs to hand a
// reused Voice slot for a fresh note.
type voiceStartParams struct {
	Sample         *sf2.Sample
	Generators     sf2.GeneratorVector
	Modulators     []sf2.Modulator
	Key            int
	Velocity       int
	ChannelNumber  int
	SampleRate     float64
	StartSample    int64
	ModInputs      sf2.ModInputs
}

// Start (re)initializes a Voice slot for a new note-on, computing the
// initial modulated generator vector and envelope/LFO parameters
// (spec.md §4.4, §4.5).
func (v *Voice) Start(p voiceStartParams) {
	v.inUse = true
	v.finished = false
	v.isInRelease = false
	v.sample = p.Sample
	v.baseGenerators = p.Generators
	v.modulators = p.Modulators
	v.targetKey = p.Key
	v.targetVelocity = p.Velocity
	v.channelNumber = p.ChannelNumber
	v.exclusiveClass = p.Generators[sf2.GenExclusiveClass]
	v.startTimeSamples = p.StartSample
	v.currentSampleIndex = 0

	v.recomputeModulation(p.ModInputs)

	v.volLFO.Configure(p.SampleRate,
		sf2.TimecentsToSeconds(int(v.modulatedGenerators[sf2.GenDelayVibLFO])),
		absoluteCentsFreq(v.modulatedGenerators[sf2.GenFreqVibLFO]))
	v.modLFO.Configure(p.SampleRate,
		sf2.TimecentsToSeconds(int(v.modulatedGenerators[sf2.GenDelayModLFO])),
		absoluteCentsFreq(v.modulatedGenerators[sf2.GenFreqModLFO]))

	v.filter.Reset(p.SampleRate)

	v.volEnv.Start(v.volEnvParams(), p.SampleRate, attenuationDB(v.modulatedGenerators))
	v.modEnv.Start(v.modEnvParams(), p.SampleRate)

	left, right := sf2.PanGains(float64(v.modulatedGenerators[sf2.GenPan]))
	v.panLeft, v.panRight = left, right
}

// absoluteCentsFreq converts an absolute-cents generator value (used
// for LFO frequency generators, referenced to 8.176 Hz per SF2.04
// §8.1.3) into Hz.
func absoluteCentsFreq(cents int16) float64 {
	return sf2.AbsoluteCentsToHz(float64(cents))
}

func attenuationDB(g sf2.GeneratorVector) float64 {
	return float64(g[sf2.GenInitialAttenuation]) / 10.0
}

// sendFraction converts a 0.1%-units effects-send generator value
// (0..1000, SF2 §8.1.3/§8.1.4) to a linear 0..1 send fraction, clamping
// out-of-range modulator output.
func sendFraction(send int16) float64 {
	f := float64(send) / 1000.0
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// recomputeModulation recomputes modulatedGenerators = baseGenerators +
// Σmodulators(inputs), per spec.md §3's "recomputed whenever a
// controller it depends on changes".
func (v *Voice) recomputeModulation(in sf2.ModInputs) {
	offsets := sf2.ApplyModulators(v.modulators, in)
	v.modulatedGenerators = v.baseGenerators.Add(offsets)
}

// RecomputeModulators re-evaluates modulatedGenerators against fresh
// channel-controller state, per spec.md §4.5's "re-evaluate modulators
// on all voices whose modulator graph depends on the source". Called by
// Channel whenever a controller, pitch wheel or pressure value changes.
func (v *Voice) RecomputeModulators(in sf2.ModInputs) {
	if !v.inUse {
		return
	}
	v.recomputeModulation(in)
}

func keyScaled(key, baseGen int16, scaleGen int16) float64 {
	return float64(baseGen) + float64(scaleGen)*float64(60-key)
}

func (v *Voice) volEnvParams() EnvelopeParams {
	g := v.modulatedGenerators
	key := int16(v.targetKey)
	holdTC := keyScaled(key, g[sf2.GenHoldVolEnv], g[sf2.GenKeynumToVolEnvHold])
	decayTC := keyScaled(key, g[sf2.GenDecayVolEnv], g[sf2.GenKeynumToVolEnvDecay])
	return EnvelopeParams{
		DelaySec:   sf2.TimecentsToSeconds(int(g[sf2.GenDelayVolEnv])),
		AttackSec:  sf2.TimecentsToSeconds(int(g[sf2.GenAttackVolEnv])),
		HoldSec:    sf2.TimecentsToSeconds(int(holdTC)),
		DecaySec:   sf2.TimecentsToSeconds(int(decayTC)),
		SustainDB:  float64(g[sf2.GenSustainVolEnv]) / 10.0,
		ReleaseSec: sf2.TimecentsToSeconds(int(g[sf2.GenReleaseVolEnv])),
	}
}

func (v *Voice) modEnvParams() EnvelopeParams {
	g := v.modulatedGenerators
	key := int16(v.targetKey)
	holdTC := keyScaled(key, g[sf2.GenHoldModEnv], g[sf2.GenKeynumToModEnvHold])
	decayTC := keyScaled(key, g[sf2.GenDecayModEnv], g[sf2.GenKeynumToModEnvDecay])
	return EnvelopeParams{
		DelaySec:   sf2.TimecentsToSeconds(int(g[sf2.GenDelayModEnv])),
		AttackSec:  sf2.TimecentsToSeconds(int(g[sf2.GenAttackModEnv])),
		HoldSec:    sf2.TimecentsToSeconds(int(holdTC)),
		DecaySec:   sf2.TimecentsToSeconds(int(decayTC)),
		SustainDB:  float64(g[sf2.GenSustainModEnv]) / 10.0,
		ReleaseSec: sf2.TimecentsToSeconds(int(g[sf2.GenReleaseModEnv])),
	}
}

// Release transitions the voice's envelopes into release (spec.md
// §4.5's note-off / exclusive-class handling).
func (v *Voice) Release() {
	if v.isInRelease {
		return
	}
	v.isInRelease = true
	v.volEnv.Release()
	v.modEnv.Release()
}

// Kill immediately marks the voice finished, for hard stops (all-sound-
// off, voice-limit eviction) that skip the release tail.
func (v *Voice) Kill() {
	v.finished = true
	v.inUse = false
}

// ChannelPitchState is the subset of Channel state a Voice needs each
// block to compute its effective pitch (spec.md §4.4).
type ChannelPitchState struct {
	PitchWheel          int16 // centered at 0, +/-8192
	PitchBendRangeSemis float64
	Tuning              float64 // coarse+fine master tuning, in cents
	Transpose           int
}

// RenderBlock advances the voice by n samples, writing mixed dry/reverb/
// chorus contributions into the three output buses (spec.md §4.4,
// §4.6). Buses are float32, pre-sized to the block length by the
// caller; RenderBlock only adds into them, never allocates.
func (v *Voice) RenderBlock(out VoiceBuses, outputSampleRate float64, chState ChannelPitchState) {
	n := len(out.DryL)
	for i := 0; i < n; i++ {
		if v.finished {
			return
		}

		volGain := v.volEnv.Advance()
		if v.volEnv.Finished() {
			v.finished = true
			v.inUse = false
		}
		modEnvVal := v.modEnv.Advance()
		vibLFOVal := v.volLFO.Advance()
		modLFOVal := v.modLFO.Advance()

		sample := v.interpolate()
		v.advanceIndexAndCheckLoop(outputSampleRate, chState, modEnvVal, vibLFOVal, modLFOVal)

		cutoffCents := float64(v.modulatedGenerators[sf2.GenInitialFilterFc]) +
			modEnvVal*float64(v.modulatedGenerators[sf2.GenModEnvToFilterFc]) +
			modLFOVal*float64(v.modulatedGenerators[sf2.GenModLfoToFilterFc])
		v.filter.SetCutoffResonance(cutoffCents, float64(v.modulatedGenerators[sf2.GenInitialFilterQ]))
		filtered := v.filter.Process(sample)

		volLFOVolumeCB := modLFOVal * float64(v.modulatedGenerators[sf2.GenModLfoToVolume])
		amp := filtered * volGain * sf2.CentibelsToGain(volLFOVolumeCB)

		out.DryL[i] += float32(amp * v.panLeft)
		out.DryR[i] += float32(amp * v.panRight)

		// GenReverbEffectsSend/GenChorusEffectsSend are 0.1%-units send
		// amounts (0 = dry, 1000 = fully wet) per spec.md §4.4; higher
		// values mean more signal routed to the effect.
		reverbSend := sendFraction(v.modulatedGenerators[sf2.GenReverbEffectsSend])
		chorusSend := sendFraction(v.modulatedGenerators[sf2.GenChorusEffectsSend])
		out.ReverbL[i] += float32(amp * v.panLeft * reverbSend)
		out.ReverbR[i] += float32(amp * v.panRight * reverbSend)
		out.ChorusL[i] += float32(amp * v.panLeft * chorusSend)
		out.ChorusR[i] += float32(amp * v.panRight * chorusSend)

		if v.finished {
			return
		}
	}
}

// interpolate linearly interpolates the sample's PCM at the voice's
// current fractional index (spec.md §4.4: "linear interpolation is
// required").
func (v *Voice) interpolate() float64 {
	idx := v.currentSampleIndex
	i0 := int(idx)
	frac := idx - float64(i0)
	pcm := v.sample.PCM
	if i0 < 0 || i0 >= len(pcm) {
		return 0
	}
	s0 := float64(pcm[i0])
	s1 := s0
	if i0+1 < len(pcm) {
		s1 = float64(pcm[i0+1])
	} else if v.loops() {
		wrapIdx := int(v.sample.LoopStart)
		if wrapIdx < len(pcm) {
			s1 = float64(pcm[wrapIdx])
		}
	}
	return ((s0 + frac*(s1-s0)) / 32768.0)
}

func (v *Voice) loops() bool {
	mode := v.modulatedGenerators[sf2.GenSampleModes]
	return mode == sf2.SampleModeLoop || mode == sf2.SampleModeLoopAndTail
}

// advanceIndexAndCheckLoop computes the effective pitch (spec.md §4.4's
// formula: note + tuning + pitch wheel + modEnv·modEnvToPitch +
// modLFO·modLfoToPitch + vibLFO·vibLfoToPitch + fineTune +
// coarseTune·100 + scaleTuning·(key-root)), converts to a playback step
// and advances currentSampleIndex, wrapping on loop or finishing past
// the sample end.
func (v *Voice) advanceIndexAndCheckLoop(outputSampleRate float64, ch ChannelPitchState, modEnvVal, vibLFOVal, modLFOVal float64) {
	g := v.modulatedGenerators
	root := int(v.sample.OriginalPitch)
	if g[sf2.GenOverridingRootKey] >= 0 {
		root = int(g[sf2.GenOverridingRootKey])
	}

	pitchWheelCents := float64(ch.PitchWheel) / 8192.0 * ch.PitchBendRangeSemis * 100.0

	cents := float64((v.targetKey+ch.Transpose-root))*100.0*(float64(g[sf2.GenScaleTuning])/100.0) +
		float64(v.sample.PitchCorrection) +
		ch.Tuning +
		pitchWheelCents +
		modEnvVal*float64(g[sf2.GenModEnvToPitch]) +
		modLFOVal*float64(g[sf2.GenModLfoToPitch]) +
		vibLFOVal*float64(g[sf2.GenVibLfoToPitch]) +
		float64(g[sf2.GenFineTune]) +
		float64(g[sf2.GenCoarseTune])*100.0

	v.playbackStep = math.Exp2(cents/1200.0) * float64(v.sample.SampleRate) / outputSampleRate

	v.currentSampleIndex += v.playbackStep

	loopStart := float64(v.sample.LoopStart)
	loopEnd := float64(v.sample.LoopEnd)
	if v.loops() && loopEnd > loopStart {
		for v.currentSampleIndex >= loopEnd {
			v.currentSampleIndex -= loopEnd - loopStart
		}
	} else if v.currentSampleIndex >= float64(len(v.sample.PCM)) {
		v.finished = true
		v.inUse = false
	}
}

// VoiceBuses groups the three stereo output buses a Voice writes into
// per block: dry, reverb-send and chorus-send.
type VoiceBuses struct {
	DryL, DryR       []float32
	ReverbL, ReverbR []float32
	ChorusL, ChorusR []float32
}
