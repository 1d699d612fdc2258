package sf2

// Generator identifies one of the 60 SoundFont 2.04 generator slots
// (SF2.04 §8.1.3). Values follow the spec's numeric assignment exactly
// so a collaborator's binary parser can write straight into a
// GeneratorVector by index.
type Generator uint8

const (
	GenStartAddrsOffset          Generator = 0
	GenEndAddrsOffset            Generator = 1
	GenStartloopAddrsOffset      Generator = 2
	GenEndloopAddrsOffset        Generator = 3
	GenStartAddrsCoarseOffset    Generator = 4
	GenModLfoToPitch             Generator = 5
	GenVibLfoToPitch             Generator = 6
	GenModEnvToPitch             Generator = 7
	GenInitialFilterFc           Generator = 8
	GenInitialFilterQ            Generator = 9
	GenModLfoToFilterFc          Generator = 10
	GenModEnvToFilterFc          Generator = 11
	GenEndAddrsCoarseOffset      Generator = 12
	GenModLfoToVolume            Generator = 13
	Gen14Unused                  Generator = 14
	GenChorusEffectsSend         Generator = 15
	GenReverbEffectsSend         Generator = 16
	GenPan                       Generator = 17
	Gen18Unused                  Generator = 18
	Gen19Unused                  Generator = 19
	Gen20Unused                  Generator = 20
	GenDelayModLFO               Generator = 21
	GenFreqModLFO                Generator = 22
	GenDelayVibLFO                Generator = 23
	GenFreqVibLFO                 Generator = 24
	GenDelayModEnv                Generator = 25
	GenAttackModEnv               Generator = 26
	GenHoldModEnv                 Generator = 27
	GenDecayModEnv                Generator = 28
	GenSustainModEnv              Generator = 29
	GenReleaseModEnv              Generator = 30
	GenKeynumToModEnvHold         Generator = 31
	GenKeynumToModEnvDecay        Generator = 32
	GenDelayVolEnv                Generator = 33
	GenAttackVolEnv               Generator = 34
	GenHoldVolEnv                 Generator = 35
	GenDecayVolEnv                Generator = 36
	GenSustainVolEnv              Generator = 37
	GenReleaseVolEnv              Generator = 38
	GenKeynumToVolEnvHold         Generator = 39
	GenKeynumToVolEnvDecay        Generator = 40
	GenInstrument                 Generator = 41
	Gen42Reserved                 Generator = 42
	GenKeyRange                   Generator = 43
	GenVelRange                   Generator = 44
	GenStartloopAddrsCoarseOffset Generator = 45
	GenKeynum                     Generator = 46
	GenVelocity                   Generator = 47
	GenInitialAttenuation         Generator = 48
	Gen49Reserved                 Generator = 49
	GenEndloopAddrsCoarseOffset   Generator = 50
	GenCoarseTune                 Generator = 51
	GenFineTune                   Generator = 52
	GenSampleID                   Generator = 53
	GenSampleModes                Generator = 54
	Gen55Reserved                 Generator = 55
	GenScaleTuning                Generator = 56
	GenExclusiveClass             Generator = 57
	GenOverridingRootKey          Generator = 58
	GenUnused5                    Generator = 59

	NumGenerators = 60
)

// SampleMode bits for GenSampleModes.
const (
	SampleModeNoLoop      = 0
	SampleModeLoop        = 1
	SampleModeLoopAndTail = 3
)

// GeneratorVector is a fixed-length mapping from generator-id to signed
// integer (spec.md §3). It is used three times per voice: baseGenerators,
// modulatedGenerators, and (indirectly) the converted-to-physical-units
// cache built by ConvertedValues.
type GeneratorVector [NumGenerators]int16

// defaultGenerators holds the SF2.04 §8.1.3 default value for every
// generator. It is an immutable, compile-time table shared by reference
// (spec.md §9 design note on global mutable state) — copy it by value,
// never mutate the package-level var.
var defaultGenerators = GeneratorVector{
	GenInitialFilterFc:   13500,
	GenDelayModLFO:       -12000,
	GenDelayVibLFO:       -12000,
	GenDelayModEnv:       -12000,
	GenAttackModEnv:      -12000,
	GenHoldModEnv:        -12000,
	GenDecayModEnv:       -12000,
	GenReleaseModEnv:     -12000,
	GenDelayVolEnv:       -12000,
	GenAttackVolEnv:      -12000,
	GenHoldVolEnv:        -12000,
	GenDecayVolEnv:       -12000,
	GenReleaseVolEnv:     -12000,
	GenKeyRange:          0x7F00, // 0..127
	GenVelRange:          0x7F00,
	GenKeynum:            -1,
	GenVelocity:          -1,
	GenScaleTuning:       100,
	GenOverridingRootKey: -1,
}

// DefaultGenerators returns a fresh copy of the SF2.04 default generator
// vector, safe for the caller to mutate.
func DefaultGenerators() GeneratorVector {
	return defaultGenerators
}

// Add returns the elementwise sum of two generator vectors, as used when
// summing preset-zone, instrument-zone and modulator contributions.
func (g GeneratorVector) Add(other GeneratorVector) GeneratorVector {
	var out GeneratorVector
	for i := range out {
		out[i] = g[i] + other[i]
	}
	return out
}

// ClampSustain clamps the volume- and modulation-envelope sustain
// generators to the SF2 spec's valid range of 0..1000 centibels, per
// spec.md §9's Open Question resolution: implementers must clamp at
// ingest rather than guess at negative decay durations.
func (g *GeneratorVector) ClampSustain() {
	if g[GenSustainVolEnv] < 0 {
		g[GenSustainVolEnv] = 0
	}
	if g[GenSustainVolEnv] > 1000 {
		g[GenSustainVolEnv] = 1000
	}
	if g[GenSustainModEnv] < 0 {
		g[GenSustainModEnv] = 0
	}
	if g[GenSustainModEnv] > 1000 {
		g[GenSustainModEnv] = 1000
	}
}
