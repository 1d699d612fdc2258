package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available MIDI input and output ports",
	Long:  `List the MIDI input and output ports rtmididrv can see on this machine.`,
	Run: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) {
	fmt.Println("MIDI inputs:")
	for _, in := range midi.GetInPorts() {
		fmt.Printf("  %s\n", in.String())
	}

	fmt.Println("MIDI outputs:")
	for _, out := range midi.GetOutPorts() {
		fmt.Printf("  %s\n", out.String())
	}
}
