// Package sequencer implements the tempo-mapped MIDI sequencer (spec.md
// §4.7): a tempo map, per-track cursors, and direct-to-synth or
// passthrough playback, running on the control thread.
package sequencer

import "sort"

// defaultMicrosecondsPerQuarter is 120 BPM, the MIDI spec's default
// tempo for a file with no tempo meta-event.
const defaultMicrosecondsPerQuarter = 500000

// tempoPoint is one tempo meta-event: from Tick onward, the file plays
// at MicrosecondsPerQuarter until the next point.
type tempoPoint struct {
	Tick                   uint64
	MicrosecondsPerQuarter uint32
}

// TempoMap converts between MIDI ticks and elapsed seconds, honoring
// every tempo change in the file (spec.md §4.7: "when crossing a tempo
// meta-event, the seconds-per-tick is recomputed"). PPQ (time division,
// ticks per quarter note) is fixed at construction.
type TempoMap struct {
	ppq    uint16
	points []tempoPoint
}

// NewTempoMap creates a tempo map defaulting to 120 BPM for the whole
// file until AddTempoChange overrides it.
func NewTempoMap(ppq uint16) *TempoMap {
	return &TempoMap{
		ppq:    ppq,
		points: []tempoPoint{{Tick: 0, MicrosecondsPerQuarter: defaultMicrosecondsPerQuarter}},
	}
}

// AddTempoChange records a tempo meta-event at the given absolute tick.
// A change at tick 0 replaces the file's default tempo rather than
// adding a second point there.
func (t *TempoMap) AddTempoChange(tick uint64, microsecondsPerQuarter uint32) {
	if tick == 0 {
		t.points[0].MicrosecondsPerQuarter = microsecondsPerQuarter
		return
	}
	t.points = append(t.points, tempoPoint{Tick: tick, MicrosecondsPerQuarter: microsecondsPerQuarter})
	sort.Slice(t.points, func(i, j int) bool { return t.points[i].Tick < t.points[j].Tick })
}

func (t *TempoMap) secondsPerTick(microsecondsPerQuarter uint32) float64 {
	return float64(microsecondsPerQuarter) / 1e6 / float64(t.ppq)
}

// SecondsAtTick returns the elapsed wall-clock/music seconds from tick 0
// to the given tick, integrating every tempo segment crossed.
func (t *TempoMap) SecondsAtTick(tick uint64) float64 {
	var seconds float64
	for i, p := range t.points {
		if tick <= p.Tick {
			break
		}
		segEnd := tick
		if i+1 < len(t.points) && t.points[i+1].Tick < segEnd {
			segEnd = t.points[i+1].Tick
		}
		seconds += float64(segEnd-p.Tick) * t.secondsPerTick(p.MicrosecondsPerQuarter)
	}
	return seconds
}

// BPM returns the tempo in effect at tick 0, for UIs that display a
// single tempo value rather than walking the full tempo map.
func (t *TempoMap) BPM() float64 {
	return 60000000.0 / float64(t.points[0].MicrosecondsPerQuarter)
}

// TickAtSeconds is SecondsAtTick's inverse: the tick reached after the
// given number of elapsed seconds from tick 0.
func (t *TempoMap) TickAtSeconds(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	var elapsed float64
	for i, p := range t.points {
		segStartSeconds := elapsed
		var segTicks uint64
		if i+1 < len(t.points) {
			segTicks = t.points[i+1].Tick - p.Tick
		} else {
			segTicks = ^uint64(0) // last segment runs forever
		}
		segSeconds := float64(segTicks) * t.secondsPerTick(p.MicrosecondsPerQuarter)
		if i+1 >= len(t.points) || seconds <= segStartSeconds+segSeconds {
			remaining := seconds - segStartSeconds
			ticks := uint64(remaining / t.secondsPerTick(p.MicrosecondsPerQuarter))
			return p.Tick + ticks
		}
		elapsed += segSeconds
	}
	return 0
}
