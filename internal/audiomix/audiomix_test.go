package audiomix

import (
	"strings"
	"testing"
)

func TestBuildPlanLoopCounts(t *testing.T) {
	cases := []struct {
		name   string
		source float64
		video  float64
		loops  int
	}{
		{"source covers video", 60, 45, 1},
		{"exact fit", 30, 30, 1},
		{"double", 30, 31, 2},
		{"many", 10, 95, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := BuildPlan(tc.source, tc.video, 0.3)
			if err != nil {
				t.Fatalf("build plan: %v", err)
			}
			if plan.LoopCount != tc.loops {
				t.Fatalf("loops = %d, want %d", plan.LoopCount, tc.loops)
			}
			if plan.TrimTo != tc.video {
				t.Fatalf("trim = %v, want %v", plan.TrimTo, tc.video)
			}
		})
	}
}

func TestBuildPlanClampsVolume(t *testing.T) {
	plan, err := BuildPlan(10, 10, 1.8)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Volume != 1 {
		t.Fatalf("volume = %v, want 1", plan.Volume)
	}
	plan, err = BuildPlan(10, 10, -0.2)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if plan.Volume != 0 {
		t.Fatalf("volume = %v, want 0", plan.Volume)
	}
}

func TestBuildPlanRejectsBadDurations(t *testing.T) {
	if _, err := BuildPlan(0, 10, 0.3); err == nil {
		t.Fatal("expected error for zero source duration")
	}
	if _, err := BuildPlan(10, 0, 0.3); err == nil {
		t.Fatal("expected error for zero video duration")
	}
}

func TestFilterComplexShape(t *testing.T) {
	plan := Plan{LoopCount: 3, TrimTo: 42.5, Volume: 0.3}
	graph := plan.FilterComplex()
	for _, fragment := range []string{
		"aloop=loop=2",
		"atrim=0:42.500",
		"volume=0.30",
		"amix=inputs=2:duration=first",
	} {
		if !strings.Contains(graph, fragment) {
			t.Fatalf("expected %q in %q", fragment, graph)
		}
	}
}

func TestFilterComplexKeepsNarrationLevel(t *testing.T) {
	plan := Plan{LoopCount: 1, TrimTo: 10, Volume: 0.3}
	graph := plan.FilterComplex()
	if !strings.Contains(graph, "normalize=0") {
		t.Fatalf("expected unnormalized mix so narration keeps full level, got %q", graph)
	}
}

func TestFilterComplexSkipsLoopWhenCovered(t *testing.T) {
	plan := Plan{LoopCount: 1, TrimTo: 10, Volume: 0.5}
	if strings.Contains(plan.FilterComplex(), "aloop") {
		t.Fatalf("unexpected aloop in %q", plan.FilterComplex())
	}
}
