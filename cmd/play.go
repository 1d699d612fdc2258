package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/icco/genisynth/internal/audioio"
	"github.com/icco/genisynth/internal/sequencer"
	"github.com/icco/genisynth/internal/sf2"
	"github.com/icco/genisynth/internal/synth"
)

var (
	playSMFPath   string
	playRate      float64
	playVoiceCap  int
	playLoopStart uint64
	playLoopEnd   uint64
	playLoopCount int
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a Standard MIDI File through the synthesis engine",
	Long: `Load a Standard MIDI File and render it through the genisynth synthesis
engine to the system audio output, with a live meter showing playback position.

The binary SoundFont parser is an external collaborator not implemented by
this module (spec.md §6); play renders through a small synthetic sine-wave
bank (sf2.NewSyntheticBank) so the engine can be exercised without a real
.sf2 asset.`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVarP(&playSMFPath, "smf", "f", "", "path to a Standard MIDI File (required)")
	playCmd.Flags().Float64Var(&playRate, "rate", 1.0, "playback rate multiplier")
	playCmd.Flags().IntVar(&playVoiceCap, "voice-cap", 250, "maximum simultaneous voices")
	playCmd.Flags().Uint64Var(&playLoopStart, "loop-start", 0, "loop start tick")
	playCmd.Flags().Uint64Var(&playLoopEnd, "loop-end", 0, "loop end tick (looping is off unless it is greater than loop-start)")
	playCmd.Flags().IntVar(&playLoopCount, "loop-count", 0, "number of times to jump back to loop-start (0 disables looping)")
	_ = playCmd.MarkFlagRequired("smf")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	tracks, tempo, err := sequencer.LoadSMF(playSMFPath)
	if err != nil {
		return fmt.Errorf("loading %s: %w", playSMFPath, err)
	}

	bank := sf2.NewSyntheticBank(sf2.SyntheticSampleSpec{
		Name:          "sine",
		FrequencyHz:   440,
		SampleRate:    int(cfg.SampleRate),
		DurationCycles: 64,
		OriginalPitch: 69,
	})

	s := synth.NewSynth(bank, synth.Options{
		SampleRate:          cfg.SampleRate,
		VoiceCap:            playVoiceCap,
		ChannelCount:        cfg.InitialChannelCount,
		ReverbEnabled:       false,
		ChorusEnabled:       cfg.ChorusEnabled,
		ChorusConfig: synth.ChorusConfig{
			DelayMS:  cfg.Chorus.DelayMS,
			DepthMS:  cfg.Chorus.DepthMS,
			RateHz:   cfg.Chorus.RateHz,
			Feedback: cfg.Chorus.Feedback,
		},
	})

	sink, err := audioio.NewSink(s, int(cfg.SampleRate))
	if err != nil {
		return fmt.Errorf("opening audio output: %w", err)
	}
	defer sink.Close()

	seq := sequencer.NewSequencer(tracks, tempo, s)
	if playLoopEnd > playLoopStart {
		seq.SetLoop(playLoopStart, playLoopEnd, playLoopCount)
	}

	now := 0.0
	seq.SetRate(playRate, now)
	seq.Play(now)

	done := make(chan struct{})
	seq.OnSongEnded = func() { close(done) }

	m := newPlayModel(seq, done)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running player: %w", err)
	}

	return nil
}

type playTickMsg time.Time

type playSongEndedMsg struct{}

type playModel struct {
	seq       *sequencer.Sequencer
	done      chan struct{}
	elapsed   time.Duration
	startWall time.Time
	finished  bool
}

func newPlayModel(seq *sequencer.Sequencer, done chan struct{}) *playModel {
	return &playModel{seq: seq, done: done, startWall: time.Now()}
}

func (m *playModel) Init() tea.Cmd {
	return tea.Batch(playTick(), m.waitForSongEnd())
}

func (m *playModel) waitForSongEnd() tea.Cmd {
	return func() tea.Msg {
		<-m.done
		return playSongEndedMsg{}
	}
}

func playTick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return playTickMsg(t)
	})
}

func (m *playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case playTickMsg:
		if m.finished {
			return m, nil
		}
		now := time.Since(m.startWall).Seconds()
		m.seq.Advance(now)
		m.elapsed = time.Since(m.startWall)
		return m, playTick()
	case playSongEndedMsg:
		m.finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.seq.Stop()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *playModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	status := "Playing"
	if m.finished {
		status = "Finished"
	}
	return fmt.Sprintf("%s\n\n%s  %s\n\n%s\n",
		titleStyle.Render("genisynth play"),
		status, m.elapsed.Round(time.Millisecond),
		"q: stop and quit")
}
