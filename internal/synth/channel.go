package synth

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/icco/genisynth/internal/midiutil"
	"github.com/icco/genisynth/internal/sf2"
)

// Channel holds all MIDI controller state, the current preset, voice
// arena and sustain bookkeeping for one MIDI channel (spec.md §3, §4.5).
// A Voice is exclusively owned by the Channel that spawned it — voices
// live in Channel.voices, a preallocated arena, never a separate
// pointer-linked set, so there is no Voice<->Channel reference cycle
// (spec.md §9 design note).
type Channel struct {
	Number int

	bank    *sf2.Bank
	preset  *sf2.Preset
	program uint8
	bankNum uint16

	percussion bool

	controllers [midiutil.NumControllers]uint8
	locked      midiutil.LockedControllerBitset
	rpn         midiutil.RPNState

	pitchWheel          int16 // centered at 0, +/-8192
	pitchBendRangeSemis float64
	channelPressure     uint8
	polyPressure        [128]uint8

	transpose int
	tuning    float64 // master fine+coarse tuning, in cents

	holdPedal bool

	voices         []Voice
	sustainedFlags []bool

	sampleRate float64
	events     *EventBus
}

// NewChannel builds a Channel with power-on defaults (spec.md §3).
func NewChannel(number int, bank *sf2.Bank, sampleRate float64, events *EventBus) *Channel {
	c := &Channel{
		Number:              number,
		bank:                bank,
		controllers:         midiutil.DefaultControllers(),
		locked:              midiutil.DefaultLocked(),
		pitchBendRangeSemis: 2,
		sampleRate:          sampleRate,
		events:              events,
		percussion:          number == 9, // GM channel 10 (index 9) is the percussion channel
	}
	if c.percussion {
		c.bankNum = 128
	}
	if bank != nil {
		if p, ok := bank.FindPreset(c.bankNum, 0); ok {
			c.preset = p
		}
	}
	return c
}

// ActiveVoiceCount returns the number of voices currently sounding
// (active or sustained), used by the Synth-wide voice cap.
func (c *Channel) ActiveVoiceCount() int {
	n := 0
	for i := range c.voices {
		if c.voices[i].Active() {
			n++
		}
	}
	return n
}

// Voices exposes the channel's voice arena for the Synth's mixing and
// eviction passes.
func (c *Channel) Voices() []Voice { return c.voices }

func (c *Channel) modInputs() sf2.ModInputs {
	return sf2.ModInputs{
		Controllers:           c.controllers,
		PitchWheel:            c.pitchWheel,
		PitchWheelSensitivity: uint8(c.pitchBendRangeSemis),
		ChannelPressure:       c.channelPressure,
	}
}

func (c *Channel) pitchState() ChannelPitchState {
	return ChannelPitchState{
		PitchWheel:          c.pitchWheel,
		PitchBendRangeSemis: c.pitchBendRangeSemis,
		Tuning:              c.tuning,
		Transpose:           c.transpose,
	}
}

// Dispatch handles one MIDI channel-voice or channel-mode message
// addressed to this channel, implementing spec.md §4.5's state machine.
// startSample is the audio sample clock at which any spawned voice
// should consider itself started (for voice-age based eviction).
// Messages for another channel are ignored.
func (c *Channel) Dispatch(msg midi.Message, startSample int64) {
	var ch, key, velocity, controller, value, program uint8
	var pressure uint8
	var relPitch, absPitch int16

	switch {
	case msg.GetNoteOn(&ch, &key, &velocity):
		if int(ch) == c.Number {
			c.noteOn(int(key), int(velocity), startSample)
		}
	case msg.GetNoteOff(&ch, &key, &velocity):
		if int(ch) == c.Number {
			c.noteOff(int(key))
		}
	case msg.GetControlChange(&ch, &controller, &value):
		if int(ch) == c.Number {
			c.controlChange(controller, value)
		}
	case msg.GetProgramChange(&ch, &program):
		if int(ch) == c.Number {
			c.programChange(program)
		}
	case msg.GetPitchBend(&ch, &relPitch, &absPitch):
		if int(ch) == c.Number {
			c.setPitchWheel(relPitch)
		}
	case msg.GetAfterTouch(&ch, &pressure):
		if int(ch) == c.Number {
			c.setChannelPressure(pressure)
		}
	case msg.GetPolyAfterTouch(&ch, &key, &pressure):
		if int(ch) == c.Number {
			c.setPolyPressure(key, pressure)
		}
	}
}

// noteOn implements spec.md §4.5's note-on rule, including velocity-0
// ≡ note-off and exclusive-class silencing.
func (c *Channel) noteOn(key, velocity int, startSample int64) {
	if velocity == 0 {
		c.noteOff(key)
		return
	}
	if c.preset == nil || c.bank == nil {
		return
	}

	matches := c.bank.ZonesForNote(c.preset, key, velocity)
	if len(matches) == 0 {
		return
	}

	in := c.modInputs()
	in.NoteOnKey = uint8(key)
	in.NoteOnVelocity = uint8(velocity)

	for _, m := range matches {
		gens := m.MergedGenerators()
		exclusive := gens[sf2.GenExclusiveClass]
		if exclusive != 0 {
			c.releaseExclusiveClass(exclusive)
		}

		idx := c.freeVoiceSlot()
		c.voices[idx].Start(voiceStartParams{
			Sample:        m.Sample,
			Generators:    gens,
			Modulators:    append(sf2.DefaultModulators(), m.MergedModulators()...),
			Key:           key,
			Velocity:      velocity,
			ChannelNumber: c.Number,
			SampleRate:    c.sampleRate,
			StartSample:   startSample,
			ModInputs:     in,
		})
		c.sustainedFlags[idx] = false
	}

	if c.events != nil {
		c.events.Publish(Event{Kind: EventNoteOn, Channel: c.Number, Key: uint8(key), Velocity: uint8(velocity)})
	}
}

func (c *Channel) releaseExclusiveClass(class int16) {
	for i := range c.voices {
		v := &c.voices[i]
		if v.Active() && v.ExclusiveClass() == class {
			v.Release()
		}
	}
}

// freeVoiceSlot finds an inactive arena slot, growing the arena if none
// is free — the same "find inactive or append" pattern as the teacher's
// internal/audio/synth.go NoteOn.
func (c *Channel) freeVoiceSlot() int {
	for i := range c.voices {
		if !c.voices[i].Active() {
			return i
		}
	}
	c.voices = append(c.voices, Voice{})
	c.sustainedFlags = append(c.sustainedFlags, false)
	return len(c.voices) - 1
}

// noteOff implements spec.md §4.5's note-off rule: sustain pedal moves
// the voice to "sustained" instead of releasing it.
func (c *Channel) noteOff(key int) {
	for i := range c.voices {
		v := &c.voices[i]
		if !v.Active() || v.InRelease() || v.Key() != key {
			continue
		}
		if c.holdPedal {
			c.sustainedFlags[i] = true
		} else {
			v.Release()
		}
	}
	if c.events != nil {
		c.events.Publish(Event{Kind: EventNoteOff, Channel: c.Number, Key: uint8(key)})
	}
}

// controlChange implements spec.md §4.5's controller-change rule.
func (c *Channel) controlChange(controller, value uint8) {
	c.controllers[controller] = value

	switch controller {
	case midiutil.CCSustainPedal:
		c.holdPedal = value >= 64
		if !c.holdPedal {
			c.releaseSustained()
		}
	case midiutil.CCAllNotesOff:
		c.allNotesOff()
	case midiutil.CCAllSoundOff:
		c.allSoundOff()
	case midiutil.CCResetAllControllers:
		c.resetAllControllers()
	case midiutil.CCBankSelectMSB:
		c.bankNum = uint16(value)<<7 | (c.bankNum & 0x7F)
	case midiutil.CCBankSelectLSB:
		c.bankNum = (c.bankNum &^ 0x7F) | uint16(value)
	case midiutil.CCRPNMSB:
		c.rpn.SelectRPNMSB(value)
	case midiutil.CCRPNLSB:
		c.rpn.SelectRPNLSB(value)
	case midiutil.CCNRPNMSB:
		c.rpn.SelectNRPNMSB(value)
	case midiutil.CCNRPNLSB:
		c.rpn.SelectNRPNLSB(value)
	case midiutil.CCDataEntryMSB:
		c.applyDataEntry(c.rpn.DataEntryMSB(value))
	case midiutil.CCDataEntryLSB:
		c.applyDataEntry(c.rpn.DataEntryLSB(value))
	}

	c.recomputeAllVoiceModulators()

	if c.events != nil {
		c.events.Publish(Event{Kind: EventControllerChange, Channel: c.Number, Control: controller, Value: int(value)})
	}
}

func (c *Channel) applyDataEntry(kind midiutil.ParamKind, value int) {
	switch kind {
	case midiutil.ParamPitchBendRangeCents:
		c.pitchBendRangeSemis = float64(value>>7) + float64(value&0x7F)/100.0
	case midiutil.ParamMasterFineTuningCents:
		c.tuning = float64(value) / 8192.0 * 100.0
	case midiutil.ParamMasterCoarseTuningSemis:
		c.transpose = value
	}
}

func (c *Channel) releaseSustained() {
	for i := range c.voices {
		if c.sustainedFlags[i] && c.voices[i].Active() {
			c.voices[i].Release()
		}
		c.sustainedFlags[i] = false
	}
}

func (c *Channel) allNotesOff() {
	for i := range c.voices {
		if c.voices[i].Active() {
			c.voices[i].Release()
		}
		c.sustainedFlags[i] = false
	}
	if c.events != nil {
		c.events.Publish(Event{Kind: EventStopAll, Channel: c.Number})
	}
}

func (c *Channel) allSoundOff() {
	for i := range c.voices {
		c.voices[i].Kill()
		c.sustainedFlags[i] = false
	}
}

func (c *Channel) resetAllControllers() {
	defaults := midiutil.DefaultControllers()
	for i := 0; i < midiutil.NumControllers; i++ {
		if !c.locked[i] {
			c.controllers[i] = defaults[i]
		}
	}
	c.pitchWheel = 0
	c.channelPressure = 0
	c.holdPedal = false
	c.rpn.Reset()
}

func (c *Channel) programChange(program uint8) {
	c.program = program
	if c.bank == nil {
		return
	}
	if p, ok := c.bank.FindPreset(c.bankNum, program); ok {
		c.preset = p
	}
	if c.events != nil {
		c.events.Publish(Event{Kind: EventProgramChange, Channel: c.Number, Program: program, Bank: c.bankNum})
	}
}

func (c *Channel) setPitchWheel(relative int16) {
	c.pitchWheel = relative
	c.recomputeAllVoiceModulators()
	if c.events != nil {
		c.events.Publish(Event{Kind: EventPitchWheel, Channel: c.Number, Value: int(relative)})
	}
}

func (c *Channel) setChannelPressure(pressure uint8) {
	c.channelPressure = pressure
	c.recomputeAllVoiceModulators()
}

func (c *Channel) setPolyPressure(key, pressure uint8) {
	c.polyPressure[key&0x7F] = pressure
}

// recomputeAllVoiceModulators re-evaluates every active voice's
// modulator graph against current channel state (spec.md §4.5:
// "re-evaluate modulators on all voices whose modulator graph depends
// on the source"). Conservatively recomputes all active voices rather
// than tracking per-modulator dependency graphs.
func (c *Channel) recomputeAllVoiceModulators() {
	in := c.modInputs()
	for i := range c.voices {
		if c.voices[i].Active() {
			c.voices[i].RecomputeModulators(in)
		}
	}
}

// Reset restores power-on defaults for a MIDI System Reset message
// (spec.md §4.5 "System messages: reset restores power-on defaults").
func (c *Channel) Reset() {
	c.allSoundOff()
	c.controllers = midiutil.DefaultControllers()
	c.rpn.Reset()
	c.pitchWheel = 0
	c.channelPressure = 0
	c.pitchBendRangeSemis = 2
	c.transpose = 0
	c.tuning = 0
	c.holdPedal = false
	c.program = 0
	c.bankNum = 0
	if c.percussion {
		c.bankNum = 128
	}
	c.preset = nil
	if c.bank != nil {
		if p, ok := c.bank.FindPreset(c.bankNum, 0); ok {
			c.preset = p
		}
	}
}
