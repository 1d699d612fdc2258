// Package synth implements the real-time synthesis engine: per-voice
// sample generation (envelopes, LFOs, filter), the MIDI channel state
// machine, voice allocation, and the block-based mixing core. Every
// type here is designed to run allocation-free on a dedicated audio
// thread (spec.md §5) — all per-voice working state lives in
// preallocated struct fields, never heap-allocated per sample or
// per block.
package synth

import "github.com/icco/genisynth/internal/sf2"

// envelopeStage is one of the six DAHDSR states (spec.md §4.2). Release
// is tracked separately via isInRelease rather than as a seventh stage,
// matching spec.md's "release is orthogonal" description.
type envelopeStage uint8

const (
	stageDelay envelopeStage = iota
	stageAttack
	stageHold
	stageDecay
	stageSustain
	stageOff
)

// EnvelopeParams holds the timecent/centibel inputs converted once, at
// note-on (Voice.Start), into physical units.
type EnvelopeParams struct {
	DelaySec   float64
	AttackSec  float64
	HoldSec    float64
	DecaySec   float64
	SustainDB  float64 // 0 = full volume, 100 = silence; already /10 from SF2 centibels
	ReleaseSec float64
}

// VolEnvelope is the 6-stage DAHDSR gain envelope applied to a Voice's
// amplitude (spec.md §4.2). It outputs a linear gain via CurrentGain;
// internally it tracks the "ideal" envelope value in decibels and
// low-pass-smooths toward it to avoid zippering.
type VolEnvelope struct {
	params       EnvelopeParams
	sampleRate   float64
	stage        envelopeStage
	stageElapsed float64 // seconds spent in the current stage
	peakGain     float64 // linear gain at the top of attack (dB→gain(attenuation))

	currentDB   float64 // smoothed output, in dB of attenuation
	isInRelease bool
	releaseFromDB float64
	releaseElapsed float64

	finished bool
}

// perceived silence and zippering-smoothing constants (spec.md §4.2).
const (
	perceivedSilenceDB = 96.0
	releaseFloorDB     = 100.0
	smoothAlpha        = 0.001
	smoothAlphaRelease = smoothAlpha * 10
)

// Start (re)initializes the envelope for a new note-on with the given
// converted parameters; initialAttenuationDB is the voice's static
// initialAttenuation generator, converted to dB, which sets the peak.
func (e *VolEnvelope) Start(params EnvelopeParams, sampleRate float64, initialAttenuationDB float64) {
	e.params = params
	e.sampleRate = sampleRate
	e.stage = stageDelay
	e.stageElapsed = 0
	e.peakGain = sf2.DecibelsToGain(initialAttenuationDB)
	e.currentDB = releaseFloorDB
	e.isInRelease = false
	e.finished = false
}

// Release transitions the envelope into its release phase, deriving the
// release-start dB from whatever stage it was in (spec.md §4.2).
func (e *VolEnvelope) Release() {
	if e.isInRelease {
		return
	}
	e.releaseFromDB = e.dbAtCurrentStage()
	e.isInRelease = true
	e.releaseElapsed = 0
}

// dbAtCurrentStage computes the ideal (pre-smoothing) attenuation in dB
// implied by the envelope's current stage and progress, per spec.md
// §4.2's release-start derivation table.
func (e *VolEnvelope) dbAtCurrentStage() float64 {
	switch e.stage {
	case stageDelay:
		return releaseFloorDB
	case stageAttack:
		progress := e.attackProgress()
		gain := progress * e.peakGain
		if gain <= 0 {
			return releaseFloorDB
		}
		return sf2.GainToDecibels(gain)
	case stageHold:
		return sf2.GainToDecibels(e.peakGain)
	case stageDecay:
		return e.decayDB()
	case stageSustain:
		return e.params.SustainDB
	default:
		return releaseFloorDB
	}
}

func (e *VolEnvelope) attackProgress() float64 {
	if e.params.AttackSec <= 0 {
		return 1
	}
	p := e.stageElapsed / e.params.AttackSec
	if p > 1 {
		p = 1
	}
	return p
}

func (e *VolEnvelope) decayDB() float64 {
	attenuationDB := sf2.GainToDecibels(e.peakGain)
	if e.params.DecaySec <= 0 {
		return e.params.SustainDB
	}
	progress := e.stageElapsed / e.params.DecaySec
	if progress > 1 {
		progress = 1
	}
	return attenuationDB + progress*(e.params.SustainDB-attenuationDB)
}

// Advance steps the envelope forward by one sample period and returns
// the current smoothed linear gain. finished becomes true once release
// reaches perceived silence (96 dB); callers must stop pulling samples
// from a finished voice.
func (e *VolEnvelope) Advance() float64 {
	dt := 1.0 / e.sampleRate

	var idealDB float64
	if e.isInRelease {
		e.releaseElapsed += dt
		progress := 1.0
		if e.params.ReleaseSec > 0 {
			progress = e.releaseElapsed / e.params.ReleaseSec
			if progress > 1 {
				progress = 1
			}
		}
		idealDB = e.releaseFromDB + progress*(releaseFloorDB-e.releaseFromDB)
		if idealDB >= perceivedSilenceDB {
			e.finished = true
		}
	} else {
		e.advanceStage(dt)
		idealDB = e.dbAtCurrentStage()
	}

	alpha := smoothAlpha
	if e.isInRelease {
		alpha = smoothAlphaRelease
	}
	e.currentDB += (idealDB - e.currentDB) * alpha

	return sf2.DecibelsToGain(e.currentDB)
}

func (e *VolEnvelope) advanceStage(dt float64) {
	e.stageElapsed += dt
	switch e.stage {
	case stageDelay:
		if e.stageElapsed >= e.params.DelaySec {
			e.stage = stageAttack
			e.stageElapsed = 0
		}
	case stageAttack:
		if e.stageElapsed >= e.params.AttackSec {
			e.stage = stageHold
			e.stageElapsed = 0
		}
	case stageHold:
		if e.stageElapsed >= e.params.HoldSec {
			e.stage = stageDecay
			e.stageElapsed = 0
		}
	case stageDecay:
		if e.stageElapsed >= e.params.DecaySec {
			e.stage = stageSustain
			e.stageElapsed = 0
		}
	case stageSustain:
		// holds indefinitely until Release is called
	}
}

// Finished reports whether the envelope has reached perceived silence
// in release and the owning Voice should be reclaimed.
func (e *VolEnvelope) Finished() bool { return e.finished }

// InRelease reports whether Release has been called.
func (e *VolEnvelope) InRelease() bool { return e.isInRelease }

// ModEnvelope is the modulation envelope (spec.md §4.3): identical
// DAHDSR state machine to VolEnvelope, but its output is a plain 0..1
// value with no dB conversion, used to offset pitch and filter cutoff.
type ModEnvelope struct {
	params       EnvelopeParams
	sampleRate   float64
	stage        envelopeStage
	stageElapsed float64
	isInRelease  bool
	releaseFrom  float64
	releaseElapsed float64
	current      float64
}

func (e *ModEnvelope) Start(params EnvelopeParams, sampleRate float64) {
	e.params = params
	e.sampleRate = sampleRate
	e.stage = stageDelay
	e.stageElapsed = 0
	e.isInRelease = false
	e.current = 0
}

func (e *ModEnvelope) Release() {
	if e.isInRelease {
		return
	}
	e.releaseFrom = e.valueAtCurrentStage()
	e.isInRelease = true
	e.releaseElapsed = 0
}

func (e *ModEnvelope) valueAtCurrentStage() float64 {
	switch e.stage {
	case stageDelay:
		return 0
	case stageAttack:
		if e.params.AttackSec <= 0 {
			return 1
		}
		p := e.stageElapsed / e.params.AttackSec
		if p > 1 {
			p = 1
		}
		return p
	case stageHold:
		return 1
	case stageDecay:
		sustain := 1 - e.params.SustainDB/100.0
		if e.params.DecaySec <= 0 {
			return sustain
		}
		p := e.stageElapsed / e.params.DecaySec
		if p > 1 {
			p = 1
		}
		return 1 + p*(sustain-1)
	case stageSustain:
		return 1 - e.params.SustainDB/100.0
	default:
		return 0
	}
}

// Advance steps the modulation envelope and returns its current 0..1
// value (spec.md §4.3).
func (e *ModEnvelope) Advance() float64 {
	dt := 1.0 / e.sampleRate
	if e.isInRelease {
		e.releaseElapsed += dt
		progress := 1.0
		if e.params.ReleaseSec > 0 {
			progress = e.releaseElapsed / e.params.ReleaseSec
			if progress > 1 {
				progress = 1
			}
		}
		e.current = e.releaseFrom * (1 - progress)
		return e.current
	}

	e.stageElapsed += dt
	switch e.stage {
	case stageDelay:
		if e.stageElapsed >= e.params.DelaySec {
			e.stage = stageAttack
			e.stageElapsed = 0
		}
	case stageAttack:
		if e.stageElapsed >= e.params.AttackSec {
			e.stage = stageHold
			e.stageElapsed = 0
		}
	case stageHold:
		if e.stageElapsed >= e.params.HoldSec {
			e.stage = stageDecay
			e.stageElapsed = 0
		}
	case stageDecay:
		if e.stageElapsed >= e.params.DecaySec {
			e.stage = stageSustain
			e.stageElapsed = 0
		}
	}
	e.current = e.valueAtCurrentStage()
	return e.current
}
