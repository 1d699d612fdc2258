package sequencer

import (
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// TrackEvent is one message at an absolute tick position, the adapted
// shape of smf.Track's delta-tick events (spec.md §6's SMF contract:
// "an ordered list of tracks, each an ordered list of {deltaTicks,
// status, data}").
type TrackEvent struct {
	Tick    uint64
	Message midi.Message
}

// SequencerTrack is one track's absolute-tick event list, ready for a
// Sequencer's cursor to walk (spec.md §3 "SequencerTrack").
type SequencerTrack struct {
	Events []TrackEvent
}

// LoadSMF reads a Standard MIDI File from disk and adapts it into
// SequencerTracks plus the TempoMap extracted from its tempo
// meta-events, grounded on the teacher's internal/tui/sequencer.go
// loadMIDI (smf.ReadFile, delta-tick accumulation, GetNoteOn
// track-walk), generalized to every message type and every tempo
// change rather than only note-on steps.
func LoadSMF(path string) ([]SequencerTrack, *TempoMap, error) {
	rd, err := smf.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return FromSMF(rd)
}

// FromSMF adapts an already-parsed *smf.SMF, letting tests build a file
// in memory with smf.New()+Track.Add (the teacher's saveMIDI pattern)
// without touching the filesystem.
func FromSMF(rd *smf.SMF) ([]SequencerTrack, *TempoMap, error) {
	ppq := uint16(960)
	if mt, ok := rd.TimeFormat.(smf.MetricTicks); ok {
		ppq = uint16(mt)
	}
	tempo := NewTempoMap(ppq)

	tracks := make([]SequencerTrack, 0, len(rd.Tracks))
	for _, track := range rd.Tracks {
		var t SequencerTrack
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)

			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				tempo.AddTempoChange(tick, uint32(60000000.0/bpm))
			}

			t.Events = append(t.Events, TrackEvent{Tick: tick, Message: ev.Message})
		}
		tracks = append(tracks, t)
	}

	return tracks, tempo, nil
}
