// Package audiomix plans how background music is fitted under narration: loop
// the source out to at least the video length, trim to the exact length, clamp
// the volume, and mix additively so narration is never replaced.
package audiomix

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Plan describes the music treatment for one render.
type Plan struct {
	// LoopCount is how many copies of the source are laid end to end before
	// trimming. 1 means the source already covers the video.
	LoopCount int
	// TrimTo is the exact output duration in seconds.
	TrimTo float64
	// Volume is the music gain, clamped to [0, 1].
	Volume float64
}

// BuildPlan computes the loop/trim/volume plan for a music source against the
// final video duration.
func BuildPlan(sourceDuration, videoDuration, volume float64) (Plan, error) {
	if sourceDuration <= 0 {
		return Plan{}, errors.New("audiomix: music source has no duration")
	}
	if videoDuration <= 0 {
		return Plan{}, errors.New("audiomix: video has no duration")
	}

	loops := int(math.Ceil(videoDuration / sourceDuration))
	if loops < 1 {
		loops = 1
	}

	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}

	return Plan{LoopCount: loops, TrimTo: videoDuration, Volume: volume}, nil
}

// FilterComplex renders the ffmpeg filtergraph that applies the plan. Input 0
// is the narrated video, input 1 the music source. amix with duration=first
// keeps narration authoritative over the output length; normalize=0 sums the
// tracks as-is so the volume clamp is the only attenuation on either input.
func (p Plan) FilterComplex() string {
	var b strings.Builder
	b.WriteString("[1:a]")
	if p.LoopCount > 1 {
		b.WriteString("aloop=loop=")
		b.WriteString(strconv.Itoa(p.LoopCount - 1))
		b.WriteString(":size=2147483647,")
	}
	b.WriteString("atrim=0:")
	b.WriteString(strconv.FormatFloat(p.TrimTo, 'f', 3, 64))
	b.WriteString(",volume=")
	b.WriteString(strconv.FormatFloat(p.Volume, 'f', 2, 64))
	b.WriteString("[music];[0:a][music]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]")
	return b.String()
}
