package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chaossim/internal/logging"
	"chaossim/internal/sim"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a node state log file",
	Long:  "replay feeds state rows recorded with run --log-file back into GreptimeDB or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		writer, err := newReplayWriter(replayPrintOnly)
		if err != nil {
			return err
		}
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		ctx := logging.NewContext(cmd.Context(), logging.NewWithLevel(nil, level))
		logging.FromContext(ctx).Info("replaying state log", "input", replayInput, "speed", replaySpeed)
		return sim.ReplayLogFile(ctx, replayInput, writer, replaySpeed)
	},
}

// newReplayWriter writes to GreptimeDB when configured and not print-only.
func newReplayWriter(printOnly bool) (sim.StateWriter, error) {
	if printOnly {
		return sim.NewJSONStdoutWriter(), nil
	}
	gw, err := greptimeWriter()
	if err != nil {
		return nil, err
	}
	if gw == nil {
		return sim.NewJSONStdoutWriter(), nil
	}
	return gw, nil
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to state log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print state rows to STDOUT instead of writing to DB")
	replayCmd.MarkFlagRequired("input")
}
