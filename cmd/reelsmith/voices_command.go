package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "Show the configured voice pool",
		Long:  "Print the voices speakers are drawn from, in assignment order. Cast assignment cycles through this pool when a script has more speakers than voices.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(cfg.TTS.Voices))
			for i, voice := range cfg.TTS.Voices {
				rows = append(rows, []string{strconv.Itoa(i + 1), voice})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider: %s\n", cfg.TTS.Provider)
			fmt.Fprintln(out, renderTable(
				[]column{{header: "#", numeric: true}, {header: "Voice"}},
				rows,
			))
			return nil
		},
	}
}
