package sequencer

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/icco/genisynth/internal/midiutil"
	"github.com/icco/genisynth/internal/synth"
)

// Mode selects where a Sequencer's messages go (spec.md §4.7).
type Mode int

const (
	// ModeDirect drives an in-process *synth.Synth.
	ModeDirect Mode = iota
	// ModePassthrough emits raw MIDI to an external Sink; the synth is
	// bypassed, though controller/pitch-bend state is still tracked so
	// seeking stays correct.
	ModePassthrough
)

// Sink is the passthrough-mode collaborator contract: anything that can
// accept outbound MIDI messages (a real MIDI-out port, a recording
// buffer, etc).
type Sink interface {
	Send(msg midi.Message) error
}

// channelTracker mirrors the subset of Channel state the sequencer must
// reconstruct on seek without actually sounding notes (spec.md §4.7).
type channelTracker struct {
	haveProgram bool
	program     uint8
	bank        uint16
	controllers [midiutil.NumControllers]uint8
	pitchWheel  int16
}

// Sequencer holds the tempo map and per-track cursors and drives either
// an in-process Synth or an external MIDI sink (spec.md §4.7).
type Sequencer struct {
	tracks  []SequencerTrack
	cursors []int
	tempo   *TempoMap

	mode  Mode
	synth *synth.Synth
	sink  Sink

	playing bool
	paused  bool
	ended   bool

	rate              float64
	absoluteStartTime float64
	playedTime        float64

	loopStartTick uint64
	loopEndTick   uint64
	loopCount     int

	channels [32]channelTracker

	// OnSongEnded, if set, is called once every track cursor has passed
	// its last event (spec.md §4.7 "Finish: ... emit songEnded").
	OnSongEnded func()
}

// NewSequencer builds a direct-to-synth Sequencer.
func NewSequencer(tracks []SequencerTrack, tempo *TempoMap, s *synth.Synth) *Sequencer {
	return newSequencer(tracks, tempo, ModeDirect, s, nil)
}

// NewPassthroughSequencer builds a Sequencer that emits raw MIDI to sink
// instead of driving an in-process synth.
func NewPassthroughSequencer(tracks []SequencerTrack, tempo *TempoMap, sink Sink) *Sequencer {
	return newSequencer(tracks, tempo, ModePassthrough, nil, sink)
}

func newSequencer(tracks []SequencerTrack, tempo *TempoMap, mode Mode, s *synth.Synth, sink Sink) *Sequencer {
	return &Sequencer{
		tracks:  tracks,
		cursors: make([]int, len(tracks)),
		tempo:   tempo,
		mode:    mode,
		synth:   s,
		sink:    sink,
		rate:    1.0,
	}
}

// SetLoop configures looping between [startTick, endTick), replayed
// count times once the playhead reaches endTick (spec.md §4.7 "Loop").
func (sq *Sequencer) SetLoop(startTick, endTick uint64, count int) {
	sq.loopStartTick = startTick
	sq.loopEndTick = endTick
	sq.loopCount = count
}

// SetRate changes the playback-rate scaling factor, recalculating
// absoluteStartTime so playedTime stays continuous at nowSeconds (spec.md
// §4.7 "Changing rate mid-playback recalculates absoluteStartTime").
func (sq *Sequencer) SetRate(rate float64, nowSeconds float64) {
	if rate <= 0 {
		return
	}
	sq.playedTime = sq.currentPlayedTime(nowSeconds)
	sq.rate = rate
	sq.absoluteStartTime = nowSeconds - sq.playedTime/sq.rate
}

func (sq *Sequencer) currentPlayedTime(nowSeconds float64) float64 {
	if sq.paused || !sq.playing {
		return sq.playedTime
	}
	return (nowSeconds - sq.absoluteStartTime) * sq.rate
}

// Play starts playback from the current position at the given
// wall-clock time.
func (sq *Sequencer) Play(nowSeconds float64) {
	sq.playing = true
	sq.paused = false
	sq.ended = false
	if sq.rate <= 0 {
		sq.rate = 1.0
	}
	sq.absoluteStartTime = nowSeconds - sq.playedTime/sq.rate
}

// Pause captures playedTime and ceases time advancement without
// releasing voices (spec.md §5 "Cancellation").
func (sq *Sequencer) Pause(nowSeconds float64) {
	if !sq.playing || sq.paused {
		return
	}
	sq.playedTime = sq.currentPlayedTime(nowSeconds)
	sq.paused = true
}

// Resume re-bases absoluteStartTime and continues (spec.md §5).
func (sq *Sequencer) Resume(nowSeconds float64) {
	if !sq.paused {
		return
	}
	sq.paused = false
	sq.absoluteStartTime = nowSeconds - sq.playedTime/sq.rate
}

// Stop releases all active voices and halts playback (spec.md §5
// "stop releases all active voices (moves them to release)").
func (sq *Sequencer) Stop() {
	sq.playing = false
	sq.paused = false
	sq.playedTime = 0
	for i := range sq.cursors {
		sq.cursors[i] = 0
	}
	sq.channels = [32]channelTracker{}

	if sq.mode == ModeDirect && sq.synth != nil {
		sq.synth.EnqueueReleaseAll()
		return
	}
	if sq.sink != nil {
		for ch := uint8(0); ch < 16; ch++ {
			_ = sq.sink.Send(midi.ControlChange(ch, midiutil.CCAllNotesOff, 0))
		}
	}
}

// Advance is called once per audio callback/tick with the current
// wall-clock time in seconds (spec.md §4.7 "each audio callback it is
// notified of current wall-clock seconds"). It converts elapsed time to
// ticks via the tempo map, dispatches every due event, and handles
// looping and song-end.
func (sq *Sequencer) Advance(nowSeconds float64) {
	if !sq.playing || sq.paused || sq.ended {
		return
	}

	sq.playedTime = sq.currentPlayedTime(nowSeconds)
	currentTick := sq.tempo.TickAtSeconds(sq.playedTime)

	if sq.loopCount > 0 && sq.loopEndTick > sq.loopStartTick && currentTick >= sq.loopEndTick {
		sq.loopCount--
		sq.Seek(sq.loopStartTick, nowSeconds)
		return
	}

	sq.dispatchDue(currentTick)

	if sq.allTracksExhausted() {
		sq.playing = false
		sq.ended = true
		if sq.OnSongEnded != nil {
			sq.OnSongEnded()
		}
	}
}

func (sq *Sequencer) allTracksExhausted() bool {
	for ti, tr := range sq.tracks {
		if sq.cursors[ti] < len(tr.Events) {
			return false
		}
	}
	return true
}

// dispatchDue sends every event at or before currentTick, across every
// track, in tick order.
func (sq *Sequencer) dispatchDue(currentTick uint64) {
	for {
		ti, ok := sq.nextDueTrack(currentTick)
		if !ok {
			return
		}
		ev := sq.tracks[ti].Events[sq.cursors[ti]]
		sq.cursors[ti]++
		sq.dispatch(ev.Message)
	}
}

// nextDueTrack finds the track whose next un-dispatched event has the
// smallest tick not exceeding currentTick, merging across tracks in
// tick order.
func (sq *Sequencer) nextDueTrack(currentTick uint64) (int, bool) {
	best := -1
	var bestTick uint64
	for ti, tr := range sq.tracks {
		if sq.cursors[ti] >= len(tr.Events) {
			continue
		}
		tick := tr.Events[sq.cursors[ti]].Tick
		if tick > currentTick {
			continue
		}
		if best == -1 || tick < bestTick {
			best = ti
			bestTick = tick
		}
	}
	return best, best != -1
}

func (sq *Sequencer) dispatch(msg midi.Message) {
	sq.trackChannelState(msg)
	if sq.mode == ModeDirect && sq.synth != nil {
		sq.synth.Enqueue(msg)
		return
	}
	if sq.sink != nil {
		_ = sq.sink.Send(msg)
	}
}

// trackChannelState updates channels[ch] from msg; notes carry no
// persistent channel state so they're a no-op here whether dispatched
// live or muted during a seek's silent replay.
func (sq *Sequencer) trackChannelState(msg midi.Message) {
	var ch, controller, value, program uint8
	var relPitch, absPitch int16

	switch {
	case msg.GetControlChange(&ch, &controller, &value):
		if int(ch) < len(sq.channels) {
			sq.channels[ch].controllers[controller] = value
		}
	case msg.GetProgramChange(&ch, &program):
		if int(ch) < len(sq.channels) {
			sq.channels[ch].program = program
			sq.channels[ch].haveProgram = true
		}
	case msg.GetPitchBend(&ch, &relPitch, &absPitch):
		if int(ch) < len(sq.channels) {
			sq.channels[ch].pitchWheel = relPitch
		}
	}
}

// Seek implements spec.md §4.7's seek procedure: stop all voices,
// rewind cursors, silently replay every non-note message up to tick
// (dispatching data-entry/bank-select in-order since they have
// semantic side effects, batching everything else), then issue the
// resulting per-channel state and resume playback from tick.
func (sq *Sequencer) Seek(tick uint64, nowSeconds float64) {
	wasPlaying := sq.playing && !sq.paused

	if sq.mode == ModeDirect && sq.synth != nil {
		sq.synth.EnqueueKillAll()
	} else if sq.sink != nil {
		for ch := uint8(0); ch < 16; ch++ {
			_ = sq.sink.Send(midi.ControlChange(ch, midiutil.CCAllSoundOff, 0))
		}
	}

	for i := range sq.cursors {
		sq.cursors[i] = 0
	}
	sq.channels = [32]channelTracker{}

	sq.silentReplay(tick)
	sq.issueTrackerState()

	sq.playedTime = sq.tempo.SecondsAtTick(tick)
	if wasPlaying {
		sq.rate = max(sq.rate, 0.0001)
		sq.absoluteStartTime = nowSeconds - sq.playedTime/sq.rate
		sq.playing = true
		sq.paused = false
		sq.ended = false
	}
}

// silentReplay walks every track's events up to tick, muting notes but
// applying (and, for data-entry/bank-select, immediately dispatching)
// every controller/program/pitch-bend message into sq.channels.
func (sq *Sequencer) silentReplay(tick uint64) {
	for {
		ti, ok := sq.nextDueTrack(tick)
		if !ok {
			return
		}
		ev := sq.tracks[ti].Events[sq.cursors[ti]]
		sq.cursors[ti]++

		var ch, controller, value uint8
		if ev.Message.GetControlChange(&ch, &controller, &value) {
			sq.trackChannelState(ev.Message)
			if isSideEffecting(controller) {
				if sq.mode == ModeDirect && sq.synth != nil {
					sq.synth.Enqueue(ev.Message)
				} else if sq.sink != nil {
					_ = sq.sink.Send(ev.Message)
				}
			}
			continue
		}
		sq.trackChannelState(ev.Message)
	}
}

func isSideEffecting(controller uint8) bool {
	switch controller {
	case midiutil.CCDataEntryMSB, midiutil.CCDataEntryLSB,
		midiutil.CCBankSelectMSB, midiutil.CCBankSelectLSB,
		midiutil.CCRPNMSB, midiutil.CCRPNLSB, midiutil.CCNRPNMSB, midiutil.CCNRPNLSB:
		return true
	default:
		return false
	}
}

// issueTrackerState sends the final, batched controller/program/pitch-
// wheel state for every channel touched during a silent replay, per
// spec.md §4.7 "issues the resulting controller/pitch-bend state ...
// in one batch".
func (sq *Sequencer) issueTrackerState() {
	for ch := 0; ch < len(sq.channels); ch++ {
		t := sq.channels[ch]
		touched := t.haveProgram || t.pitchWheel != 0
		for _, v := range t.controllers {
			if v != 0 {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}

		for cc, v := range t.controllers {
			if v == 0 {
				continue
			}
			sq.send(midi.ControlChange(uint8(ch), uint8(cc), v))
		}
		if t.haveProgram {
			sq.send(midi.ProgramChange(uint8(ch), t.program))
		}
		if t.pitchWheel != 0 {
			sq.send(midi.Pitchbend(uint8(ch), t.pitchWheel))
		}
	}
}

func (sq *Sequencer) send(msg midi.Message) {
	if sq.mode == ModeDirect && sq.synth != nil {
		sq.synth.Enqueue(msg)
		return
	}
	if sq.sink != nil {
		_ = sq.sink.Send(msg)
	}
}
