package sf2

import "math"

// SourceKind identifies which voice/channel signal a ModSource reads
// from (spec.md §3: "MIDI controllers, note-on velocity/key, pitch-
// wheel, channel pressure, or constant 1").
type SourceKind uint8

const (
	SourceController SourceKind = iota
	SourceNoteOnVelocity
	SourceNoteOnKey
	SourcePitchWheel
	SourcePitchWheelSensitivity
	SourceChannelPressure
	SourcePolyPressure
	SourceConstantOne
)

// Continuity is the SF2.04 §8.2.1 source-curve shape.
type Continuity uint8

const (
	ContinuityLinear Continuity = iota
	ContinuityConcave
	ContinuityConvex
	ContinuitySwitch
)

// ModSource fully describes one modulator input: which signal (Kind,
// and for SourceController which CC number), how it's shaped
// (Continuity), whether it's unipolar/bipolar (Bipolar) and whether it
// runs forward or reversed (Negative).
type ModSource struct {
	Kind       SourceKind
	CC         uint8 // valid only when Kind == SourceController
	Continuity Continuity
	Bipolar    bool
	Negative   bool
}

// Transform is SF2.04 §8.2.3's post-sum transform; only Linear and
// AbsoluteValue are defined by the spec.
type Transform uint8

const (
	TransformLinear Transform = iota
	TransformAbsoluteValue
)

// Modulator is a pure function of up to two inputs that composes
// additively on its destination generator (spec.md §3).
type Modulator struct {
	Source          ModSource
	Amount          int16
	Destination     Generator
	SecondarySource ModSource
	Transform       Transform
}

// ModInputs carries the live per-voice/per-channel values a Modulator
// may read from. Values are pre-normalized to 0..1 (unipolar) or -1..1
// (bipolar) by shapeSource; callers pass raw MIDI-range values here.
type ModInputs struct {
	Controllers            [128]uint8 // raw 0..127 CC values
	NoteOnVelocity          uint8
	NoteOnKey               uint8
	PitchWheel              int16 // raw 14-bit, centered at 0
	PitchWheelSensitivity   uint8 // semitones
	ChannelPressure         uint8
	PolyPressure            uint8
}

func rawValue(s ModSource, in ModInputs) float64 {
	switch s.Kind {
	case SourceController:
		return float64(in.Controllers[s.CC&0x7F]) / 127.0
	case SourceNoteOnVelocity:
		return float64(in.NoteOnVelocity) / 127.0
	case SourceNoteOnKey:
		return float64(in.NoteOnKey) / 127.0
	case SourcePitchWheel:
		return float64(in.PitchWheel) / 8192.0 // already bipolar -1..1
	case SourcePitchWheelSensitivity:
		return float64(in.PitchWheelSensitivity) / 127.0
	case SourceChannelPressure:
		return float64(in.ChannelPressure) / 127.0
	case SourcePolyPressure:
		return float64(in.PolyPressure) / 127.0
	case SourceConstantOne:
		return 1.0
	default:
		return 0
	}
}

// shapeSource normalizes a raw 0..1 (or -1..1 for PitchWheel, already
// bipolar) value through the source's continuity, polarity and
// direction, per SF2.04 §8.2.
func shapeSource(s ModSource, in ModInputs) float64 {
	v := rawValue(s, in)
	if s.Kind != SourcePitchWheel {
		if s.Negative {
			v = 1 - v
		}
		if s.Bipolar {
			v = 2*v - 1
		}
	} else if s.Negative {
		v = -v
	}

	switch s.Continuity {
	case ContinuityConcave:
		v = concaveCurve(v)
	case ContinuityConvex:
		v = -concaveCurve(-v)
	case ContinuitySwitch:
		if v >= 0.5 {
			v = 1
		} else {
			v = 0
		}
	}
	return v
}

// concaveCurve implements the SF2.04 concave source-curve approximation
// on the unipolar 0..1 domain, extended symmetrically for bipolar input.
func concaveCurve(v float64) float64 {
	sign := 1.0
	if v < 0 {
		sign = -1.0
		v = -v
	}
	if v <= 0 {
		return 0
	}
	out := 1 + math.Log10(v)/2
	if out < 0 {
		out = 0
	}
	return sign * out
}

// Evaluate computes this modulator's contribution to its destination
// generator: primary source shaped, times secondary source shaped (or 1
// if the secondary source is the constant-one "no controller" source),
// times Amount, with Transform applied to the product. A zero-value
// SecondarySource is a real SourceController/CC0 reading, not "none" —
// every modulator with only one source must set SecondarySource to
// ModSource{Kind: SourceConstantOne} explicitly, as defaultModulators
// does.
func (m Modulator) Evaluate(in ModInputs) float64 {
	primary := shapeSource(m.Source, in)
	secondary := 1.0
	if m.SecondarySource.Kind != SourceConstantOne {
		secondary = shapeSource(m.SecondarySource, in)
	}
	out := primary * secondary * float64(m.Amount)
	if m.Transform == TransformAbsoluteValue {
		out = math.Abs(out)
	}
	return out
}

// defaultModulators is the ten modulators the SF2.04 spec (§8.4.2)
// requires every synthesizer to apply even when the file defines none:
// velocity->attenuation, velocity->filter cutoff, channel pressure and
// mod wheel -> vibrato depth, main volume and expression -> attenuation,
// pan, reverb and chorus send, and pitch wheel x sensitivity -> fine
// tune. Built
// once since every entry is a value type with no shared mutable state,
// and DefaultModulators is called on every note-on.
var defaultModulators = []Modulator{
	{ // MIDI Note-On Velocity to Initial Attenuation
		Source:          ModSource{Kind: SourceNoteOnVelocity, Continuity: ContinuityConcave, Negative: true},
		SecondarySource: ModSource{Kind: SourceConstantOne},
		Amount:          960,
		Destination:     GenInitialAttenuation,
	},
	{ // MIDI Note-On Velocity to Filter Cutoff
		Source:          ModSource{Kind: SourceNoteOnVelocity, Continuity: ContinuityLinear, Negative: true},
		SecondarySource: ModSource{Kind: SourceConstantOne},
		Amount:          -2400,
		Destination:     GenInitialFilterFc,
	},
	{ // MIDI Channel Pressure to Vibrato LFO Pitch Depth
		Source:          ModSource{Kind: SourceChannelPressure, Continuity: ContinuityLinear, Bipolar: true},
		SecondarySource: ModSource{Kind: SourceConstantOne},
		Amount:          50,
		Destination:     GenVibLfoToPitch,
	},
	{ // MIDI Continuous Controller 1 (mod wheel) to Vibrato LFO Pitch Depth
		Source:          ModSource{Kind: SourceController, CC: 1, Continuity: ContinuityLinear, Bipolar: true},
		SecondarySource: ModSource{Kind: SourceConstantOne},
		Amount:          50,
		Destination:     GenVibLfoToPitch,
	},
	{ // MIDI Continuous Controller 7 (main volume) to Initial Attenuation
		Source:          ModSource{Kind: SourceController, CC: 7, Continuity: ContinuityConcave, Negative: true},
		SecondarySource: ModSource{Kind: SourceConstantOne},
		Amount:          960,
		Destination:     GenInitialAttenuation,
	},
	{ // MIDI Continuous Controller 10 (pan) to Pan
		Source:          ModSource{Kind: SourceController, CC: 10, Continuity: ContinuityLinear, Bipolar: true},
		SecondarySource: ModSource{Kind: SourceConstantOne},
		Amount:          1000,
		Destination:     GenPan,
	},
	{ // MIDI Continuous Controller 11 (expression) to Initial Attenuation
		Source:          ModSource{Kind: SourceController, CC: 11, Continuity: ContinuityConcave, Negative: true},
		SecondarySource: ModSource{Kind: SourceConstantOne},
		Amount:          960,
		Destination:     GenInitialAttenuation,
	},
	{ // MIDI Continuous Controller 91 (reverb send) to Reverb Effects Send
		Source:          ModSource{Kind: SourceController, CC: 91, Continuity: ContinuityLinear},
		SecondarySource: ModSource{Kind: SourceConstantOne},
		Amount:          200,
		Destination:     GenReverbEffectsSend,
	},
	{ // MIDI Continuous Controller 93 (chorus send) to Chorus Effects Send
		Source:          ModSource{Kind: SourceController, CC: 93, Continuity: ContinuityLinear},
		SecondarySource: ModSource{Kind: SourceConstantOne},
		Amount:          200,
		Destination:     GenChorusEffectsSend,
	},
	{ // Pitch Wheel to Initial Pitch, scaled by Pitch Wheel Sensitivity
		Source:          ModSource{Kind: SourcePitchWheel, Continuity: ContinuityLinear, Bipolar: true},
		SecondarySource: ModSource{Kind: SourcePitchWheelSensitivity, Continuity: ContinuityLinear},
		Amount:          12700,
		Destination:     GenFineTune,
	},
}

// DefaultModulators returns the package's shared default-modulator
// slice. Its backing array is always exactly full (cap == len), so
// append(DefaultModulators(), ...) never writes through it — callers
// get copy-on-grow for free and this never allocates on its own.
func DefaultModulators() []Modulator {
	return defaultModulators
}

// ApplyModulators sums every modulator's contribution into a fresh
// generator offset vector, de-duplicating so a later modulator with the
// identical (source, destination, secondary source) identity replaces
// rather than adds to an earlier one, per SF2.04 §9.5.
func ApplyModulators(mods []Modulator, in ModInputs) GeneratorVector {
	type identity struct {
		kind, cc, secKind, secCC uint8
		dest                     Generator
	}
	winners := make(map[identity]float64)
	order := make([]identity, 0, len(mods))
	for _, m := range mods {
		id := identity{
			kind: uint8(m.Source.Kind), cc: m.Source.CC,
			secKind: uint8(m.SecondarySource.Kind), secCC: m.SecondarySource.CC,
			dest: m.Destination,
		}
		if _, seen := winners[id]; !seen {
			order = append(order, id)
		}
		winners[id] = m.Evaluate(in)
	}
	var out GeneratorVector
	for _, id := range order {
		out[id.dest] += int16(clampInt32(int32(winners[id])))
	}
	return out
}

func clampInt32(v int32) int32 {
	const maxI16 = int32(1<<15 - 1)
	const minI16 = -int32(1 << 15)
	if v > maxI16 {
		return maxI16
	}
	if v < minI16 {
		return minI16
	}
	return v
}
