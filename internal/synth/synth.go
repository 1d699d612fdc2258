package synth

import (
	"sort"

	"gitlab.com/gomidi/midi/v2"

	"github.com/icco/genisynth/internal/sf2"
)

// Options configures a Synth at construction time, matching spec.md
// §6's enumerated configuration. Kept as a plain struct rather than
// importing internal/config, so internal/synth has no dependency on the
// CLI/config layer.
type Options struct {
	SampleRate           float64
	VoiceCap             int
	ChannelCount         int
	ReverbEnabled        bool
	ReverbImpulseL       []float32
	ReverbImpulseR       []float32
	ChorusEnabled        bool
	ChorusConfig         ChorusConfig
	EventQueueCapacity   int
	ControlQueueCapacity int
}

// controlKind distinguishes the handful of non-MIDI control actions the
// Sequencer needs to request of the audio thread (spec.md §5: channel
// state is "mutated only by the audio thread"; these requests travel
// the same inbound ring as ordinary MIDI messages rather than mutating
// Channel/Voice state directly from the control thread).
type controlKind int

const (
	controlMIDI controlKind = iota
	controlReset
	controlReleaseAll
	controlKillAll
)

// ControlMessage is one entry on the control->audio ring (spec.md §5):
// a MIDI channel-voice/mode message, a system reset, or a sequencer
// stop/seek request to silence every voice.
type ControlMessage struct {
	MIDI midi.Message
	kind controlKind
}

// Synth is the real-time synthesis core (spec.md §4.6): owns every
// Channel, drains queued control messages at each block boundary, and
// mixes all voices through the reverb/chorus sends into stereo output.
type Synth struct {
	bank     *sf2.Bank
	channels []*Channel

	sampleRate float64
	voiceCap   int

	reverb *ReverbEffect
	chorus *ChorusEffect

	inbound *Ring[ControlMessage]
	events  *EventBus

	blockClock int64

	droppedVoices uint64

	busScratch voiceBuses
}

// voiceBuses holds the six preallocated float32 mix buses, resized (not
// reallocated once grown) to the host's block length.
type voiceBuses struct {
	dryL, dryR       []float32
	reverbL, reverbR []float32
	chorusL, chorusR []float32
}

func (b *voiceBuses) ensure(n int) {
	if cap(b.dryL) < n {
		b.dryL = make([]float32, n)
		b.dryR = make([]float32, n)
		b.reverbL = make([]float32, n)
		b.reverbR = make([]float32, n)
		b.chorusL = make([]float32, n)
		b.chorusR = make([]float32, n)
		return
	}
	b.dryL = b.dryL[:n]
	b.dryR = b.dryR[:n]
	b.reverbL = b.reverbL[:n]
	b.reverbR = b.reverbR[:n]
	b.chorusL = b.chorusL[:n]
	b.chorusR = b.chorusR[:n]
}

func (b *voiceBuses) zero() {
	for i := range b.dryL {
		b.dryL[i] = 0
		b.dryR[i] = 0
		b.reverbL[i] = 0
		b.reverbR[i] = 0
		b.chorusL[i] = 0
		b.chorusR[i] = 0
	}
}

func (b *voiceBuses) forVoice() VoiceBuses {
	return VoiceBuses{
		DryL: b.dryL, DryR: b.dryR,
		ReverbL: b.reverbL, ReverbR: b.reverbR,
		ChorusL: b.chorusL, ChorusR: b.chorusR,
	}
}

// NewSynth builds a Synth with opts.ChannelCount channels (minimum 16,
// per spec.md §4.6's "owns 16 or more channels"), wired to bank.
func NewSynth(bank *sf2.Bank, opts Options) *Synth {
	channelCount := opts.ChannelCount
	if channelCount < 16 {
		channelCount = 16
	}
	voiceCap := opts.VoiceCap
	if voiceCap <= 0 {
		voiceCap = 250
	}
	eventCap := opts.EventQueueCapacity
	if eventCap <= 0 {
		eventCap = 1024
	}
	controlCap := opts.ControlQueueCapacity
	if controlCap <= 0 {
		controlCap = 1024
	}

	events := NewEventBus(eventCap)

	s := &Synth{
		bank:       bank,
		sampleRate: opts.SampleRate,
		voiceCap:   voiceCap,
		inbound:    NewRing[ControlMessage](controlCap),
		events:     events,
	}

	s.channels = make([]*Channel, channelCount)
	for i := range s.channels {
		s.channels[i] = NewChannel(i, bank, opts.SampleRate, events)
	}

	if opts.ReverbEnabled {
		s.reverb = NewReverbEffect(opts.ReverbImpulseL, opts.ReverbImpulseR)
	}
	if opts.ChorusEnabled {
		s.chorus = NewChorusEffect(opts.ChorusConfig, opts.SampleRate)
	}

	return s
}

// Events returns the synth's outbound event bus, for a control-thread
// subscriber to drain.
func (s *Synth) Events() *EventBus { return s.events }

// Channel returns channel n, or nil if out of range. Exposed read-only
// for callers that need to inspect state (e.g. a TUI meter); mutation
// must go through Enqueue, never direct calls from another goroutine.
func (s *Synth) Channel(n int) *Channel {
	if n < 0 || n >= len(s.channels) {
		return nil
	}
	return s.channels[n]
}

// AddChannel appends a new channel, up to spec.md §4.6's cap of 32 (for
// multi-port MIDI).
func (s *Synth) AddChannel() int {
	const maxChannels = 32
	if len(s.channels) >= maxChannels {
		return -1
	}
	n := len(s.channels)
	s.channels = append(s.channels, NewChannel(n, s.bank, s.sampleRate, s.events))
	s.events.Publish(Event{Kind: EventNewChannel, Channel: n})
	return n
}

// Enqueue is called from the control thread to submit a MIDI message
// for application at the next block boundary (spec.md §5). Never
// blocks; returns false (and counts ErrQueueOverflow) if the inbound
// ring is full.
func (s *Synth) Enqueue(msg midi.Message) bool {
	return s.inbound.TryPush(ControlMessage{MIDI: msg, kind: controlMIDI})
}

// EnqueueReset submits a MIDI System Reset request.
func (s *Synth) EnqueueReset() bool {
	return s.inbound.TryPush(ControlMessage{kind: controlReset})
}

// EnqueueReleaseAll submits a request to move every active voice into
// release, for the sequencer's stop (spec.md §5 "stop releases all
// active voices").
func (s *Synth) EnqueueReleaseAll() bool {
	return s.inbound.TryPush(ControlMessage{kind: controlReleaseAll})
}

// EnqueueKillAll submits a request to silence every voice immediately,
// for the sequencer's seek (spec.md §4.7 "stops all voices" before
// silently replaying controller state).
func (s *Synth) EnqueueKillAll() bool {
	return s.inbound.TryPush(ControlMessage{kind: controlKillAll})
}

// RenderBlock renders L samples of stereo output into outL/outR,
// implementing spec.md §4.6's five-step block algorithm. Must run on
// the dedicated audio thread; allocation-free once the bus scratch
// space has grown to the host's block length.
func (s *Synth) RenderBlock(outL, outR []float32) {
	n := len(outL)
	s.drainInbound()

	s.busScratch.ensure(n)
	s.busScratch.zero()
	buses := s.busScratch.forVoice()

	for _, ch := range s.channels {
		pitch := ch.pitchState()
		voices := ch.Voices()
		for i := range voices {
			v := &voices[i]
			if !v.Active() {
				continue
			}
			v.RenderBlock(buses, s.sampleRate, pitch)
		}
	}

	s.evictOverCap()

	for i := 0; i < n; i++ {
		outL[i] = buses.dryL[i]
		outR[i] = buses.dryR[i]
	}
	if s.reverb != nil {
		s.reverb.Process(buses.reverbL, buses.reverbR, outL, outR)
	}
	if s.chorus != nil {
		s.chorus.Process(buses.chorusL, buses.chorusR, outL, outR)
	}

	s.blockClock += int64(n)
}

// drainInbound applies every queued control message, implementing
// spec.md §5's "a controller change takes effect on the next block".
func (s *Synth) drainInbound() {
	startSample := s.blockClock
	s.inbound.DrainInto(func(cm ControlMessage) {
		switch cm.kind {
		case controlReset:
			for _, ch := range s.channels {
				ch.Reset()
			}
		case controlReleaseAll:
			for _, ch := range s.channels {
				ch.allNotesOff()
			}
		case controlKillAll:
			for _, ch := range s.channels {
				ch.allSoundOff()
			}
		default:
			// Channel.Dispatch decodes the message's own channel field via the
			// same per-type Get* calls used here and no-ops if the message
			// isn't addressed to that channel, so it is simply offered to
			// every channel rather than extracted and routed up front.
			for _, ch := range s.channels {
				ch.Dispatch(cm.MIDI, startSample)
			}
		}
	})
}

// evictOverCap enforces spec.md §4.5's "configurable global cap
// (default 250). When exceeded, kill the oldest voices with highest
// current attenuation."
func (s *Synth) evictOverCap() {
	type ref struct {
		ch, idx int
	}
	var active []ref
	for ci, ch := range s.channels {
		for vi := range ch.voices {
			if ch.voices[vi].Active() {
				active = append(active, ref{ci, vi})
			}
		}
	}
	over := len(active) - s.voiceCap
	if over <= 0 {
		return
	}

	sort.Slice(active, func(i, j int) bool {
		vi := &s.channels[active[i].ch].voices[active[i].idx]
		vj := &s.channels[active[j].ch].voices[active[j].idx]
		if vi.startTimeSamples != vj.startTimeSamples {
			return vi.startTimeSamples < vj.startTimeSamples
		}
		return attenuationDB(vi.modulatedGenerators) > attenuationDB(vj.modulatedGenerators)
	})

	for i := 0; i < over; i++ {
		r := active[i]
		s.channels[r.ch].voices[r.idx].Kill()
		s.droppedVoices++
	}
}

// DroppedVoices returns the count of voices killed by voice-cap
// eviction since the synth was created (spec.md §7: VoiceLimitExceeded
// is informational/counted, never returned as an error).
func (s *Synth) DroppedVoices() uint64 { return s.droppedVoices }
