package sf2

// SampleType identifies the stereo role of a Sample, per SF2.04 §7.10
// sfSampleType.
type SampleType uint8

const (
	SampleMono SampleType = iota
	SampleLeft
	SampleRight
	SampleLinked
)

// Sample is one PCM waveform owned by the Bank. The PCM slice is
// immutable after load and safely shared read-only across every Voice
// that references it (spec.md §3 ownership rules).
type Sample struct {
	Name             string
	PCM              []int16 // immutable signed-16 sequence
	SampleRate       int
	LoopStart        uint32
	LoopEnd          uint32
	OriginalPitch    uint8 // MIDI key number the sample was recorded at
	PitchCorrection  int8  // cents
	LinkedSampleIdx  int   // -1 if none
	SampleType       SampleType
}

// Zone is a key/velocity-ranged container of generator overrides and
// modulators. Preset zones add their generators on top of the
// instrument's; instrument zones override/establish the base (spec.md
// §3, GLOSSARY "Preset zone / instrument zone").
type Zone struct {
	KeyLo, KeyHi   int // inclusive MIDI key range, -1/-1 means "global"/unset
	VelLo, VelHi   int // inclusive velocity range
	Generators     GeneratorVector
	Modulators     []Modulator
	InstrumentIdx  int // for preset zones: index into Bank.Instruments, -1 for the global zone
	SampleIdx      int // for instrument zones: index into Bank.Samples, -1 for the global zone
}

// InRange reports whether the zone covers the given key/velocity pair.
func (z Zone) InRange(key, velocity int) bool {
	keyOK := z.KeyLo < 0 || (key >= z.KeyLo && key <= z.KeyHi)
	velOK := z.VelLo < 0 || (velocity >= z.VelLo && velocity <= z.VelHi)
	return keyOK && velOK
}

// Instrument is an ordered list of zones, each referencing one Sample.
type Instrument struct {
	Name  string
	Zones []Zone
}

// Preset is an ordered list of zones, each referencing one Instrument.
// Preset zone generators add to instrument zone generators (SF2.04
// §9.1) rather than override them.
type Preset struct {
	Name    string
	Program uint8
	Bank    uint16 // SF2 bank number; bank 128 is conventionally percussion
	Zones   []Zone
}

// Bank is the complete, immutable-after-load SoundFont object model
// (spec.md §6): { presets[], instruments[], samples[], modulators }.
// Preset/instrument zones live inside Preset.Zones / Instrument.Zones;
// modulators live inside each Zone, plus the bank-wide default set
// returned by DefaultModulators for zones that don't override them.
type Bank struct {
	Name        string
	Presets     []Preset
	Instruments []Instrument
	Samples     []Sample
}

// FindPreset looks up a preset by (bank, program) per GM convention.
func (b *Bank) FindPreset(bankNum uint16, program uint8) (*Preset, bool) {
	for i := range b.Presets {
		if b.Presets[i].Bank == bankNum && b.Presets[i].Program == program {
			return &b.Presets[i], true
		}
	}
	return nil, false
}

// ZonesForNote returns every preset zone (and the instrument zone each
// selects) whose key/velocity range covers (key, velocity), implementing
// the zone-matching half of spec.md §4.5's note-on rule: "look up preset
// zone(s) matching (key, vel)".
type MatchedZone struct {
	PresetZone     Zone
	InstrumentZone Zone
	Sample         *Sample
}

func (b *Bank) ZonesForNote(p *Preset, key, velocity int) []MatchedZone {
	var out []MatchedZone
	for _, pz := range p.Zones {
		if pz.InstrumentIdx < 0 || pz.InstrumentIdx >= len(b.Instruments) {
			continue
		}
		if !pz.InRange(key, velocity) {
			continue
		}
		inst := &b.Instruments[pz.InstrumentIdx]
		for _, iz := range inst.Zones {
			if iz.SampleIdx < 0 || iz.SampleIdx >= len(b.Samples) {
				continue
			}
			if !iz.InRange(key, velocity) {
				continue
			}
			out = append(out, MatchedZone{
				PresetZone:     pz,
				InstrumentZone: iz,
				Sample:         &b.Samples[iz.SampleIdx],
			})
		}
	}
	return out
}

// MergedGenerators combines a matched zone's generators the SF2 way:
// start from the instrument zone's generators (the base), then add the
// preset zone's generators on top (spec.md §4.5, GLOSSARY).
func (m MatchedZone) MergedGenerators() GeneratorVector {
	g := m.InstrumentZone.Generators
	g = g.Add(m.PresetZone.Generators)
	g.ClampSustain()
	return g
}

// MergedModulators concatenates instrument- and preset-zone modulators;
// later entries (preset zone) are allowed to replace an earlier one with
// the same (source, destination, secondary source) identity per SF2.04
// §9.5, handled by ApplyModulators in modulator.go.
func (m MatchedZone) MergedModulators() []Modulator {
	out := make([]Modulator, 0, len(m.InstrumentZone.Modulators)+len(m.PresetZone.Modulators))
	out = append(out, m.InstrumentZone.Modulators...)
	out = append(out, m.PresetZone.Modulators...)
	return out
}
