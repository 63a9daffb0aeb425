package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"reelsmith/internal/pipeline"
	"reelsmith/internal/project"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		projectID       string
		title           string
		autoUpload      bool
		images          []string
		imageScenes     []int
		backgroundVideo string
		music           string
		musicVolume     float64
	)

	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Queue a new narrated-video run",
		Long: `Queue a new run for the daemon to process. The prompt is sent to the
configured language model to generate the script; background assets are
referenced relative to the static directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.manager()
			if err != nil {
				return err
			}

			if strings.TrimSpace(projectID) == "" {
				projectID = uuid.NewString()
			}

			assets := project.Assets{
				Images:            images,
				ImageSceneIndices: imageScenes,
				BackgroundVideo:   backgroundVideo,
				Music:             music,
			}
			if cmd.Flags().Changed("music-volume") {
				assets.MusicVolume = &musicVolume
			}

			item, err := mgr.StartRun(cmd.Context(), pipeline.RunRequest{
				ProjectID:  projectID,
				Title:      title,
				Prompt:     strings.Join(args, " "),
				AutoUpload: autoUpload,
				Assets:     assets,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queued run #%d for project %s\n", item.ID, item.ProjectID)
			fmt.Fprintln(out, "The daemon will pick it up; follow progress with 'reelsmith show'.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project identifier (generated when omitted)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Video title (generated from the script when omitted)")
	cmd.Flags().BoolVar(&autoUpload, "upload", false, "Upload the finished video to YouTube")
	cmd.Flags().StringSliceVar(&images, "image", nil, "Background image path, repeatable (relative to the static directory)")
	cmd.Flags().IntSliceVar(&imageScenes, "image-scene", nil, "Scene index each --image applies to, repeatable")
	cmd.Flags().StringVar(&backgroundVideo, "background-video", "", "Looping background video path")
	cmd.Flags().StringVar(&music, "music", "", "Background music path")
	cmd.Flags().Float64Var(&musicVolume, "music-volume", 0, "Background music volume (0.0-1.0)")
	return cmd
}

func newRegenerateCommand(ctx *commandContext) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "regenerate <project-id>",
		Short: "Re-run part of a finished run",
		Long: `Re-enter the pipeline for the project's latest run, keeping the outputs
upstream of the entry point. Use --from audio to re-synthesize narration
and re-render, or --from video to only re-render the video.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, ok := pipeline.ParseRegenerateEntry(from)
			if !ok {
				return fmt.Errorf("unknown entry point %q (expected audio or video)", from)
			}

			mgr, err := ctx.manager()
			if err != nil {
				return err
			}
			item, err := mgr.RegenerateFrom(cmd.Context(), args[0], entry)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Run #%d re-entered the pipeline at %s\n", item.ID, statusLabel(item.Status))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "video", "Entry point: audio or video")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [run-id...]",
		Short: "Retry failed runs",
		Long:  "Move failed runs back into the pipeline at the furthest stage their surviving outputs allow. With no arguments every failed run is retried.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			ids, err := parseRunIDs(args)
			if err != nil {
				return err
			}
			count, err := store.RetryFailed(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			if count == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No failed runs to retry.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d run(s).\n", count)
			return nil
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var completedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove runs from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			var (
				count int64
				what  string
			)
			if completedOnly {
				count, err = store.ClearCompleted(cmd.Context())
				what = "completed run(s)"
			} else {
				count, err = store.Clear(cmd.Context())
				what = "run(s)"
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s.\n", count, what)
			return nil
		},
	}

	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Only remove completed runs")
	return cmd
}
