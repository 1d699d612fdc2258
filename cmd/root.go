package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/icco/genisynth/internal/config"
	"github.com/icco/genisynth/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "genisynth",
	Short: "A SoundFont MIDI synthesizer and sequencer",
	Long: `genisynth plays MIDI and Standard MIDI Files through a SoundFont-based
synthesis engine, and provides a TUI for building and editing step sequences.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger = logging.New(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./genisynth.yaml)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
