package sf2

import (
	"io"
	"math"
)

// Loader is the collaborator contract for turning a .sf2 container into
// a Bank. Parsing RIFF chunks and decoding PCM is explicitly out of
// scope for this module (spec.md §1, §6) — no implementation of this
// interface lives here. Callers plug in whatever binary parser owns
// that responsibility.
type Loader interface {
	Load(r io.ReaderAt, size int64) (*Bank, error)
}

// SyntheticSampleSpec describes a single-cycle or short PCM waveform to
// synthesize in-memory for tests and for running the engine without a
// real .sf2 asset.
type SyntheticSampleSpec struct {
	Name          string
	FrequencyHz   float64
	SampleRate    int
	DurationCycles int // number of waveform cycles to render; loop covers the whole buffer
	OriginalPitch uint8
}

// NewSyntheticBank builds a minimal one-preset, one-instrument, one-zone,
// one-sample Bank directly in memory (no binary parsing), covering the
// full MIDI key/velocity range. It exists so the core engine can be
// exercised in tests and demos without depending on the out-of-scope
// SF2 file parser — see spec.md §8 scenario 1.
func NewSyntheticBank(spec SyntheticSampleSpec) *Bank {
	pcm := renderSineCycle(spec.FrequencyHz, spec.SampleRate, spec.DurationCycles)

	gens := DefaultGenerators()
	gens[GenSampleModes] = SampleModeLoop
	gens[GenKeyRange] = 0x7F00
	gens[GenVelRange] = 0x7F00
	gens[GenSampleID] = 0
	gens[GenPan] = 0
	gens[GenInitialAttenuation] = 0
	gens[GenDelayVolEnv] = int16(SecondsToTimecents(0))
	gens[GenAttackVolEnv] = int16(SecondsToTimecents(0.01))
	gens[GenHoldVolEnv] = int16(SecondsToTimecents(0))
	gens[GenDecayVolEnv] = int16(SecondsToTimecents(0.1))
	gens[GenSustainVolEnv] = 0
	gens[GenReleaseVolEnv] = int16(SecondsToTimecents(0.3))

	instrumentZone := Zone{
		KeyLo: -1, KeyHi: -1,
		VelLo: -1, VelHi: -1,
		Generators: gens,
		SampleIdx:  0,
	}

	presetZone := Zone{
		KeyLo: -1, KeyHi: -1,
		VelLo: -1, VelHi: -1,
		InstrumentIdx: 0,
	}

	return &Bank{
		Name: "synthetic",
		Samples: []Sample{{
			Name:            spec.Name,
			PCM:             pcm,
			SampleRate:      spec.SampleRate,
			LoopStart:       0,
			LoopEnd:         uint32(len(pcm)),
			OriginalPitch:   spec.OriginalPitch,
			PitchCorrection: 0,
			LinkedSampleIdx: -1,
			SampleType:      SampleMono,
		}},
		Instruments: []Instrument{{
			Name:  spec.Name + "-instrument",
			Zones: []Zone{instrumentZone},
		}},
		Presets: []Preset{{
			Name:    spec.Name + "-preset",
			Program: 0,
			Bank:    0,
			Zones:   []Zone{presetZone},
		}},
	}
}

func renderSineCycle(freq float64, sampleRate, cycles int) []int16 {
	if cycles <= 0 {
		cycles = 1
	}
	periodSamples := int(float64(sampleRate) / freq)
	if periodSamples < 2 {
		periodSamples = 2
	}
	n := periodSamples * cycles
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * freq * float64(i) / float64(sampleRate)
		out[i] = int16(32000 * math.Sin(theta))
	}
	return out
}
