// Package audioio plays a *synth.Synth's rendered blocks through the
// system audio output, adapted from the teacher's internal/audio/synth.go
// oto player: the same oto.Context/oto.Player wiring and int16 stream
// conversion, but pulling real stereo float32 blocks from
// synth.Synth.RenderBlock instead of generating toy oscillator waveforms.
package audioio

import (
	"github.com/ebitengine/oto/v3"

	"github.com/icco/genisynth/internal/synth"
)

const (
	bytesPerSample = 2 // 16-bit
	channelCount   = 2 // stereo
)

// Sink drives a *synth.Synth through an oto player, converting its
// float32 stereo blocks to the signed-16 little-endian stream oto wants.
type Sink struct {
	synth      *synth.Synth
	ctx        *oto.Context
	player     *oto.Player
	sampleRate int

	blockL, blockR []float32
}

// NewSink opens the system audio output at sampleRate and starts pulling
// blocks from s.
func NewSink(s *synth.Synth, sampleRate int) (*Sink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	snk := &Sink{
		synth:      s,
		ctx:        ctx,
		sampleRate: sampleRate,
	}

	snk.player = ctx.NewPlayer(&blockReader{sink: snk})
	snk.player.Play()

	return snk, nil
}

// Close stops playback. As with oto v3.4, the player is reclaimed by the
// garbage collector; there is no explicit close call.
func (s *Sink) Close() error {
	if s.player != nil {
		s.player.Pause()
	}
	return nil
}

// blockReader implements io.Reader, rendering one host-sized block of
// audio from the synth per Read call.
type blockReader struct {
	sink *Sink
}

func (r *blockReader) Read(buf []byte) (int, error) {
	s := r.sink
	numSamples := len(buf) / (channelCount * bytesPerSample)

	if cap(s.blockL) < numSamples {
		s.blockL = make([]float32, numSamples)
		s.blockR = make([]float32, numSamples)
	}
	s.blockL = s.blockL[:numSamples]
	s.blockR = s.blockR[:numSamples]

	s.synth.RenderBlock(s.blockL, s.blockR)

	for i := 0; i < numSamples; i++ {
		l := clampSample(s.blockL[i])
		r := clampSample(s.blockR[i])

		idx := i * channelCount * bytesPerSample
		buf[idx] = byte(l)
		buf[idx+1] = byte(l >> 8)
		buf[idx+2] = byte(r)
		buf[idx+3] = byte(r >> 8)
	}

	return len(buf), nil
}

func clampSample(v float32) int16 {
	if v > 1.0 {
		v = 1.0
	} else if v < -1.0 {
		v = -1.0
	}
	return int16(v * 32767)
}
