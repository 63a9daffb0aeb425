package compose

import (
	"fmt"
	"strconv"
	"strings"

	"reelsmith/internal/captions"
	"reelsmith/internal/config"
	"reelsmith/internal/timeline"
)

type segmentSpec struct {
	Segment    timeline.Segment
	Words      []captions.Word
	Style      captions.Style
	Render     config.Render
	AudioPath  string
	ImagePath  string
	VideoPath  string
	OutputPath string
}

// buildSegmentArgs assembles the full ffmpeg invocation for one segment:
// background source, caption overlays, and the scene audio, encoded at the
// configured geometry and codecs.
func buildSegmentArgs(spec segmentSpec) []string {
	seg := spec.Segment
	render := spec.Render
	duration := formatDuration(seg.Duration)

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}

	var videoFilter []string
	switch seg.Background.Kind {
	case timeline.BackgroundStaticImage:
		args = append(args, "-loop", "1", "-framerate", strconv.Itoa(render.FPS), "-i", spec.ImagePath)
		videoFilter = append(videoFilter, coverFilter(render))
	case timeline.BackgroundPannedImage:
		args = append(args, "-loop", "1", "-framerate", strconv.Itoa(render.FPS), "-i", spec.ImagePath)
		videoFilter = append(videoFilter,
			fmt.Sprintf("scale=%d:-2", render.Width*2),
			zoompanFilter(seg, render),
		)
	case timeline.BackgroundLoopedVideo:
		args = append(args,
			"-stream_loop", "-1",
			"-ss", formatDuration(seg.Background.SourceOffset),
			"-i", spec.VideoPath,
		)
		videoFilter = append(videoFilter, coverFilter(render))
	default:
		color := seg.Background.Color
		if color == "" {
			color = "black"
		}
		args = append(args, "-f", "lavfi",
			"-i", fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", color, render.Width, render.Height, render.FPS))
	}

	args = append(args, "-i", spec.AudioPath)

	videoFilter = append(videoFilter, captions.DrawtextFilters(spec.Words, spec.Style)...)
	if len(videoFilter) > 0 {
		args = append(args, "-vf", strings.Join(videoFilter, ","))
	}

	args = append(args,
		"-map", "0:v", "-map", "1:a",
		"-t", duration,
		"-r", strconv.Itoa(render.FPS),
		"-c:v", render.VideoCodec,
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", render.AudioCodec,
		"-ar", "44100",
	)
	if render.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(render.Threads))
	}
	return append(args, spec.OutputPath)
}

// coverFilter scales to fill the output frame and crops the overflow.
func coverFilter(render config.Render) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
		render.Width, render.Height, render.Width, render.Height)
}

// zoompanFilter builds the Ken-Burns pan for an image segment. The zoom
// direction alternates per scene so back-to-back images move differently.
func zoompanFilter(seg timeline.Segment, render config.Render) string {
	frames := int(seg.Duration*float64(render.FPS)) + 1
	zoom := "min(zoom+0.0015,1.2)"
	if !seg.Background.ZoomIn {
		zoom = "if(eq(on,1),1.2,max(zoom-0.0015,1.0))"
	}
	return fmt.Sprintf(
		"zoompan=z='%s':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:s=%dx%d:fps=%d",
		zoom, frames, render.Width, render.Height, render.FPS,
	)
}

func formatDuration(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
