package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/project"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			var statuses []project.Status
			if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
				status, ok := project.ParseStatus(trimmed)
				if !ok {
					return fmt.Errorf("unknown status %q", trimmed)
				}
				statuses = append(statuses, status)
			}

			items, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, runRow(item))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(runColumns, rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Only show runs in this status")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id | run-id>",
		Short: "Show the latest run for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			var item *project.Item
			if id, parseErr := strconv.ParseInt(args[0], 10, 64); parseErr == nil {
				item, err = store.GetByID(cmd.Context(), id)
			} else {
				item, err = store.LatestForProject(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("no run found for %q", args[0])
			}

			printRunDetail(cmd, item)
			return nil
		},
	}
}

func printRunDetail(cmd *cobra.Command, item *project.Item) {
	out := cmd.OutOrStdout()
	colorize := stdoutIsTerminal()

	fmt.Fprintf(out, "Run #%d (project %s)\n", item.ID, item.ProjectID)

	kind := statusInfo
	switch item.Status {
	case project.StatusCompleted:
		kind = statusOK
	case project.StatusFailed:
		kind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Status", kind, statusLabel(item.Status), colorize))
	fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, formatProgress(item.Progress), colorize))
	if item.Title != "" {
		fmt.Fprintln(out, renderStatusLine("Title", statusInfo, item.Title, colorize))
	}
	if item.VideoPath != "" {
		fmt.Fprintln(out, renderStatusLine("Video", statusOK, item.VideoPath, colorize))
	}
	if item.UploadVideoID != "" {
		fmt.Fprintln(out, renderStatusLine("Upload", statusOK, "https://www.youtube.com/watch?v="+item.UploadVideoID, colorize))
	}
	if item.FatalError != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, item.FatalError, colorize))
	}

	history, err := item.Errors()
	if err == nil && len(history) > 0 {
		fmt.Fprintf(out, "\nRecoverable errors (%d):\n", len(history))
		for _, entry := range history {
			fmt.Fprintf(out, "%s%s  %-10s %s\n", statusIndent,
				entry.OccurredAt.Local().Format("2006-01-02 15:04:05"), entry.Stage, entry.Message)
		}
	}
}
