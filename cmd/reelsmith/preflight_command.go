package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"reelsmith/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check external dependencies",
		Long:  "Run the same dependency checks the daemon performs on startup: directories, binaries, disk space, and LLM connectivity.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			colorize := stdoutIsTerminal()
			out := cmd.OutOrStdout()
			for _, result := range results {
				kind := statusOK
				message := "ok"
				switch {
				case !result.Passed && result.Optional:
					kind = statusWarn
					message = result.Detail
				case !result.Passed:
					kind = statusError
					message = result.Detail
				case result.Detail != "":
					message = result.Detail
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, message, colorize))
			}

			if !preflight.Passed(results) {
				return errors.New("preflight checks failed")
			}
			fmt.Fprintln(out, "\nAll required checks passed.")
			return nil
		},
	}
}
