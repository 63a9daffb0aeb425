package compose

import (
	"strings"
	"testing"

	"reelsmith/internal/captions"
	"reelsmith/internal/config"
	"reelsmith/internal/timeline"
)

func renderSettings() config.Render {
	return config.Render{
		Width:           1080,
		Height:          1920,
		FPS:             30,
		VideoCodec:      "libx264",
		AudioCodec:      "aac",
		BackgroundColor: "0x0F0F19",
	}
}

func TestBuildSegmentArgsSolid(t *testing.T) {
	args := buildSegmentArgs(segmentSpec{
		Segment: timeline.Segment{
			Duration:   2.3,
			Background: timeline.Background{Kind: timeline.BackgroundSolid, Color: "0x0F0F19"},
		},
		Render:     renderSettings(),
		AudioPath:  "/static/audio/scene_000.mp3",
		OutputPath: "/tmp/segment_000.mp4",
	})
	joined := strings.Join(args, " ")
	for _, fragment := range []string{
		"color=c=0x0F0F19:s=1080x1920:r=30",
		"-t 2.300",
		"-c:v libx264",
		"-c:a aac",
		"-map 0:v",
		"-map 1:a",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in %q", fragment, joined)
		}
	}
}

func TestBuildSegmentArgsLoopedVideoOffset(t *testing.T) {
	args := buildSegmentArgs(segmentSpec{
		Segment: timeline.Segment{
			Duration: 4,
			Background: timeline.Background{
				Kind:         timeline.BackgroundLoopedVideo,
				SourceOffset: 5.5,
			},
		},
		Render:     renderSettings(),
		VideoPath:  "/static/bg/loop.mp4",
		AudioPath:  "/static/audio/scene_001.mp3",
		OutputPath: "/tmp/segment_001.mp4",
	})
	joined := strings.Join(args, " ")
	for _, fragment := range []string{
		"-stream_loop -1",
		"-ss 5.500",
		"scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in %q", fragment, joined)
		}
	}
}

func TestBuildSegmentArgsPannedImageZoomDirection(t *testing.T) {
	spec := segmentSpec{
		Segment: timeline.Segment{
			Duration: 3,
			Background: timeline.Background{
				Kind:      timeline.BackgroundPannedImage,
				ImagePath: "images/one.jpg",
				ZoomIn:    true,
			},
		},
		Render:     renderSettings(),
		ImagePath:  "/static/images/one.jpg",
		AudioPath:  "/static/audio/scene_002.mp3",
		OutputPath: "/tmp/segment_002.mp4",
	}
	zoomIn := strings.Join(buildSegmentArgs(spec), " ")
	if !strings.Contains(zoomIn, "zoompan=z='min(zoom+") {
		t.Fatalf("expected zoom-in expression in %q", zoomIn)
	}

	spec.Segment.Background.ZoomIn = false
	zoomOut := strings.Join(buildSegmentArgs(spec), " ")
	if !strings.Contains(zoomOut, "max(zoom-") {
		t.Fatalf("expected zoom-out expression in %q", zoomOut)
	}
}

func TestBuildSegmentArgsIncludesCaptions(t *testing.T) {
	args := buildSegmentArgs(segmentSpec{
		Segment: timeline.Segment{
			Duration:   2,
			Background: timeline.Background{Kind: timeline.BackgroundSolid, Color: "black"},
		},
		Words:      []captions.Word{{Text: "hello", Start: 0, End: 1}},
		Style:      captions.Style{FontSize: 96},
		Render:     renderSettings(),
		AudioPath:  "/static/audio/scene_003.mp3",
		OutputPath: "/tmp/segment_003.mp4",
	})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "drawtext=text='HELLO'") {
		t.Fatalf("expected drawtext filter in %q", joined)
	}
}
