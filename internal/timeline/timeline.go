// Package timeline turns per-scene narration clips into a render plan: segment
// durations, background selection, and loop offsets. Everything here is pure
// math so the arithmetic the final video depends on can be tested exactly.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"reelsmith/internal/project"
)

// BackgroundKind discriminates the background variants a segment can render.
type BackgroundKind string

const (
	BackgroundSolid       BackgroundKind = "solid"
	BackgroundStaticImage BackgroundKind = "static_image"
	BackgroundPannedImage BackgroundKind = "panned_image"
	BackgroundLoopedVideo BackgroundKind = "looped_video"
)

// Background describes how one segment's backdrop is produced. Exactly the
// fields relevant to Kind are set.
type Background struct {
	Kind         BackgroundKind
	ImagePath    string
	ZoomIn       bool
	VideoPath    string
	SourceOffset float64
	Color        string
}

// Segment is one scene's slot on the output timeline.
type Segment struct {
	SceneIndex int
	AudioPath  string
	Line       string
	Duration   float64
	Background Background
}

// Input carries everything Build needs. Asset existence checks happen before
// Build; paths handed in are assumed usable.
type Input struct {
	Clips             []project.AudioClipRef
	Scenes            []project.Scene
	Images            []string
	ImageSceneIndices []int
	BackgroundVideo   string
	// BackgroundVideoDuration is the probed duration of the source video,
	// required when BackgroundVideo is set.
	BackgroundVideoDuration float64
	PaddingSeconds          float64
	SolidColor              string
}

// Build computes the segment timeline. Each segment lasts the clip duration
// plus the configured padding. A looped background video advances by the
// cumulative elapsed output time modulo the source duration, so playback is
// seamless across segment boundaries.
func Build(in Input) ([]Segment, float64, error) {
	if len(in.Clips) == 0 {
		return nil, 0, errors.New("timeline: no narration clips")
	}
	if in.BackgroundVideo != "" && in.BackgroundVideoDuration <= 0 {
		return nil, 0, errors.New("timeline: background video duration unknown")
	}

	clips := make([]project.AudioClipRef, len(in.Clips))
	copy(clips, in.Clips)
	sort.Slice(clips, func(i, j int) bool { return clips[i].SceneIndex < clips[j].SceneIndex })

	useStatic := distinctImages(in.Images) <= 1

	segments := make([]Segment, 0, len(clips))
	elapsed := 0.0
	for _, clip := range clips {
		if clip.DurationSeconds <= 0 {
			return nil, 0, fmt.Errorf("timeline: clip for scene %d has no duration", clip.SceneIndex)
		}
		seg := Segment{
			SceneIndex: clip.SceneIndex,
			AudioPath:  clip.FilePath,
			Duration:   clip.DurationSeconds + in.PaddingSeconds,
		}
		if clip.SceneIndex >= 0 && clip.SceneIndex < len(in.Scenes) {
			seg.Line = in.Scenes[clip.SceneIndex].Line
		}
		seg.Background = resolveBackground(in, clip.SceneIndex, elapsed, useStatic)
		segments = append(segments, seg)
		elapsed += seg.Duration
	}
	return segments, elapsed, nil
}

func resolveBackground(in Input, sceneIndex int, elapsed float64, useStatic bool) Background {
	if in.BackgroundVideo != "" {
		return Background{
			Kind:         BackgroundLoopedVideo,
			VideoPath:    in.BackgroundVideo,
			SourceOffset: math.Mod(elapsed, in.BackgroundVideoDuration),
		}
	}
	if len(in.Images) > 0 && sceneIndex >= 0 && sceneIndex < len(in.ImageSceneIndices) {
		imgIdx := in.ImageSceneIndices[sceneIndex]
		if imgIdx >= 0 && imgIdx < len(in.Images) && in.Images[imgIdx] != "" {
			if useStatic {
				return Background{Kind: BackgroundStaticImage, ImagePath: in.Images[imgIdx]}
			}
			// Alternating zoom direction keeps renders reproducible.
			return Background{Kind: BackgroundPannedImage, ImagePath: in.Images[imgIdx], ZoomIn: sceneIndex%2 == 0}
		}
	}
	return Background{Kind: BackgroundSolid, Color: in.SolidColor}
}

func distinctImages(images []string) int {
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		if img == "" {
			continue
		}
		seen[img] = struct{}{}
	}
	return len(seen)
}
