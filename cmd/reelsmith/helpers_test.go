package main

import (
	"testing"
	"time"

	"reelsmith/internal/project"
)

func TestStatusLabel(t *testing.T) {
	cases := []struct {
		status project.Status
		want   string
	}{
		{project.StatusPending, "Pending"},
		{project.StatusComposingVideo, "Composing Video"},
		{project.StatusSynthesizingAudio, "Synthesizing Audio"},
		{project.Status(""), ""},
	}
	for _, tc := range cases {
		if got := statusLabel(tc.status); got != tc.want {
			t.Fatalf("statusLabel(%q) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	cases := []struct {
		progress float64
		want     string
	}{
		{0, "0%"},
		{0.5, "50%"},
		{1, "100%"},
		{-0.2, "0%"},
		{1.7, "100%"},
	}
	for _, tc := range cases {
		if got := formatProgress(tc.progress); got != tc.want {
			t.Fatalf("formatProgress(%v) = %q, want %q", tc.progress, got, tc.want)
		}
	}
}

func TestFormatAge(t *testing.T) {
	if got := formatAge(time.Time{}); got != "-" {
		t.Fatalf("expected zero time to render as -, got %q", got)
	}
	if got := formatAge(time.Now().Add(-5 * time.Minute)); got != "5m" {
		t.Fatalf("expected 5m, got %q", got)
	}
	if got := formatAge(time.Now().Add(-49 * time.Hour)); got != "2d" {
		t.Fatalf("expected 2d, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected untouched value, got %q", got)
	}
	if got := truncate("a very long title indeed", 10); got != "a very ..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncate("abc", 3); got != "abc" {
		t.Fatalf("expected tiny limits to pass through, got %q", got)
	}
}

func TestParseRunIDs(t *testing.T) {
	ids, err := parseRunIDs([]string{"1", " 42 "})
	if err != nil {
		t.Fatalf("parseRunIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 42 {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if _, err := parseRunIDs([]string{"seven"}); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}
