package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/icco/genisynth/internal/audioio"
	"github.com/icco/genisynth/internal/sf2"
	"github.com/icco/genisynth/internal/synth"
)

var deviceName string

var virtualCmd = &cobra.Command{
	Use:   "virtual",
	Short: "Create a virtual MIDI device with audio output",
	Long: `Create a virtual MIDI input device that can receive MIDI commands from other
applications.

The virtual device shows up as a MIDI output destination in other music
software. Any MIDI received is played through the synthesis engine and the
system audio output.

Example:
  genisynth virtual --name "My Synth"
`,
	Run: runVirtual,
}

func init() {
	virtualCmd.Flags().StringVarP(&deviceName, "name", "n", "Genisynth Virtual Synth", "Name for the virtual MIDI device")
	rootCmd.AddCommand(virtualCmd)
}

func runVirtual(cmd *cobra.Command, args []string) {
	m := newVirtualModel(deviceName)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.program = p

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}

const maxMessageHistory = 20

// virtualModel is the TUI state for the virtual MIDI device.
type virtualModel struct {
	deviceName     string
	synth          *synth.Synth
	sink           *audioio.Sink
	driver         *rtmididrv.Driver
	inPort         drivers.In
	stopFunc       func()
	activeNotes    map[string]noteDisplay
	lastMessage    string
	messageHistory []string
	messageCount   int
	err            error
	width          int
	height         int
	program        *tea.Program
}

type noteDisplay struct {
	channel  uint8
	note     uint8
	velocity uint8
	name     string
}

// midiEventMsg is sent for every received MIDI message, to drive the log
// view; dispatch to the engine itself happens directly from the rtmididrv
// callback, since it must never block on the TUI.
type midiEventMsg struct {
	msgType    string
	channel    uint8
	note       uint8
	velocity   uint8
	controller uint8
	value      uint8
}

func newVirtualModel(name string) *virtualModel {
	return &virtualModel{
		deviceName:     name,
		activeNotes:    make(map[string]noteDisplay),
		messageHistory: make([]string, 0, maxMessageHistory),
	}
}

func (m *virtualModel) Init() tea.Cmd {
	return m.initMIDI
}

func (m *virtualModel) initMIDI() tea.Msg {
	bank := sf2.NewSyntheticBank(sf2.SyntheticSampleSpec{
		Name:          "sine",
		FrequencyHz:   440,
		SampleRate:    int(cfg.SampleRate),
		DurationCycles: 64,
		OriginalPitch: 69,
	})

	s := synth.NewSynth(bank, synth.Options{
		SampleRate:          cfg.SampleRate,
		VoiceCap:            cfg.VoiceCap,
		ChannelCount:        cfg.InitialChannelCount,
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
		return initResultMsg{err: fmt.Errorf("failed to initialize audio: %w", err)}
	}

	driver, err := rtmididrv.New()
	if err != nil {
		sink.Close()
		return initResultMsg{err: fmt.Errorf("failed to initialize MIDI driver: %w", err)}
	}

	port, err := driver.OpenVirtualIn(m.deviceName)
	if err != nil {
		driver.Close()
		sink.Close()
		return initResultMsg{err: fmt.Errorf("failed to create virtual MIDI port: %w", err)}
	}

	return initResultMsg{
		synth:  s,
		sink:   sink,
		driver: driver,
		inPort: port,
	}
}

type initResultMsg struct {
	synth  *synth.Synth
	sink   *audioio.Sink
	driver *rtmididrv.Driver
	inPort drivers.In
	err    error
}

func (m *virtualModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case initResultMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.synth = msg.synth
		m.sink = msg.sink
		m.driver = msg.driver
		m.inPort = msg.inPort
		return m, m.listenMIDI

	case midiEventMsg:
		m.handleMIDIEvent(msg)
		m.messageCount++
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, m.cleanup
		}
	}

	return m, nil
}

func (m *virtualModel) listenMIDI() tea.Msg {
	if m.inPort == nil {
		return nil
	}

	stop, err := m.inPort.Listen(func(data []byte, timestamp int32) {
		msg := midi.Message(data)
		if m.synth != nil {
			m.synth.Enqueue(msg)
		}

		var ch, key, velocity, controller, value uint8
		switch {
		case msg.GetNoteOn(&ch, &key, &velocity):
			if m.program != nil {
				m.program.Send(midiEventMsg{msgType: "noteOn", channel: ch, note: key, velocity: velocity})
			}
		case msg.GetNoteOff(&ch, &key, &velocity):
			if m.program != nil {
				m.program.Send(midiEventMsg{msgType: "noteOff", channel: ch, note: key})
			}
		case msg.GetControlChange(&ch, &controller, &value):
			if m.program != nil {
				m.program.Send(midiEventMsg{msgType: "cc", channel: ch, controller: controller, value: value})
			}
		}
	}, drivers.ListenConfig{})

	if err != nil {
		m.err = fmt.Errorf("failed to listen to MIDI port: %w", err)
		return nil
	}

	m.stopFunc = stop
	m.lastMessage = fmt.Sprintf("Listening on: %s", m.inPort.String())
	return nil
}

func (m *virtualModel) handleMIDIEvent(msg midiEventMsg) {
	key := fmt.Sprintf("%d:%d", msg.channel, msg.note)
	var message string

	switch msg.msgType {
	case "noteOn":
		if msg.velocity > 0 {
			m.activeNotes[key] = noteDisplay{
				channel:  msg.channel,
				note:     msg.note,
				velocity: msg.velocity,
				name:     midiNoteName(msg.note),
			}
			message = fmt.Sprintf("Note On:  Ch%d %-4s vel:%d",
				msg.channel+1, midiNoteName(msg.note), msg.velocity)
		} else {
			delete(m.activeNotes, key)
			message = fmt.Sprintf("Note Off: Ch%d %-4s",
				msg.channel+1, midiNoteName(msg.note))
		}
	case "noteOff":
		delete(m.activeNotes, key)
		message = fmt.Sprintf("Note Off: Ch%d %-4s",
			msg.channel+1, midiNoteName(msg.note))
	case "cc":
		message = fmt.Sprintf("CC:       Ch%d ctrl:%d val:%d",
			msg.channel+1, msg.controller, msg.value)
		if msg.controller == 123 {
			m.activeNotes = make(map[string]noteDisplay)
		}
	}

	m.lastMessage = message

	if message != "" {
		m.messageHistory = append([]string{message}, m.messageHistory...)
		if len(m.messageHistory) > maxMessageHistory {
			m.messageHistory = m.messageHistory[:maxMessageHistory]
		}
	}
}

func (m *virtualModel) cleanup() tea.Msg {
	if m.stopFunc != nil {
		m.stopFunc()
	}
	if m.inPort != nil {
		m.inPort.Close()
	}
	if m.driver != nil {
		m.driver.Close()
	}
	if m.synth != nil {
		m.synth.EnqueueReleaseAll()
	}
	if m.sink != nil {
		m.sink.Close()
	}
	return tea.Quit()
}

func (m *virtualModel) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	subtitleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888"))

	statusStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00FF00")).
		Bold(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF0000")).
		Bold(true)

	noteStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFD700"))

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262"))

	b.WriteString(titleStyle.Render("genisynth virtual MIDI synth") + "\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
		b.WriteString(helpStyle.Render("Press Ctrl+C to quit"))
		return b.String()
	}

	b.WriteString(subtitleStyle.Render("Device Name: ") + m.deviceName + "\n")

	if m.inPort != nil {
		b.WriteString(subtitleStyle.Render("MIDI Port: ") + statusStyle.Render(m.inPort.String()) + "\n")
		b.WriteString(subtitleStyle.Render("Channels: ") + "1-16 (reads channel from MIDI messages)\n\n")
	} else {
		b.WriteString(subtitleStyle.Render("MIDI Port: ") + "Initializing...\n\n")
	}

	b.WriteString(statusStyle.Render("● Listening for MIDI") + "\n\n")

	b.WriteString(subtitleStyle.Render("Active Notes:") + "\n")
	if len(m.activeNotes) == 0 {
		b.WriteString("  (no notes playing)\n")
	} else {
		notesList := make([]string, 0, len(m.activeNotes))
		for _, nd := range m.activeNotes {
			notesList = append(notesList, fmt.Sprintf("Ch%d:%s", nd.channel+1, nd.name))
		}
		b.WriteString("  " + noteStyle.Render(strings.Join(notesList, " ")) + "\n")
	}

	b.WriteString("\n" + subtitleStyle.Render(fmt.Sprintf("Message Log: [%d total]", m.messageCount)) + "\n")

	logStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	logHighlightStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))

	if len(m.messageHistory) == 0 {
		b.WriteString("  " + logStyle.Render("(waiting for input)") + "\n")
	} else {
		displayCount := len(m.messageHistory)
		if displayCount > 10 {
			displayCount = 10
		}
		for i := 0; i < displayCount; i++ {
			msg := m.messageHistory[i]
			if i == 0 {
				b.WriteString("  " + logHighlightStyle.Render("▶ "+msg) + "\n")
			} else {
				b.WriteString("  " + logStyle.Render("  "+msg) + "\n")
			}
		}
	}

	b.WriteString("\n" + helpStyle.Render("Ctrl+C: quit"))

	return b.String()
}

func midiNoteName(note uint8) string {
	notes := []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	octave := int(note/12) - 1
	noteName := notes[note%12]
	return fmt.Sprintf("%s%d", noteName, octave)
}
