package services_test

import (
	"errors"
	"strings"
	"testing"

	"reelsmith/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrRender, "composing_video", "concat", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"composing_video", "concat", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "synthesizing_audio", "edge-tts", "exit status 1", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestRecoverableClassification(t *testing.T) {
	cases := []struct {
		name   string
		marker error
		want   bool
	}{
		{"transient", services.ErrTransient, true},
		{"timeout", services.ErrTimeout, true},
		{"validation", services.ErrValidation, false},
		{"configuration", services.ErrConfiguration, false},
		{"precondition", services.ErrPrecondition, false},
		{"render", services.ErrRender, false},
		{"quota", services.ErrQuota, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := services.Wrap(tc.marker, "stage", "op", "msg", nil)
			if got := services.Recoverable(err); got != tc.want {
				t.Fatalf("Recoverable(%s) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
	if services.Recoverable(nil) {
		t.Fatal("nil error should not be recoverable")
	}
}

func TestDetailsStripsMarkerPrefix(t *testing.T) {
	err := services.Wrap(services.ErrQuota, "uploading", "insert", "daily quota exceeded", nil)
	details := services.Details(err)
	if details.Kind != "quota" {
		t.Fatalf("expected quota kind, got %q", details.Kind)
	}
	if strings.HasPrefix(details.Message, "quota exhausted") {
		t.Fatalf("expected marker prefix stripped, got %q", details.Message)
	}
	if !strings.Contains(details.Message, "daily quota exceeded") {
		t.Fatalf("expected message retained, got %q", details.Message)
	}
}

func TestDetailsUnknownError(t *testing.T) {
	details := services.Details(errors.New("plain failure"))
	if details.Kind != "unknown" {
		t.Fatalf("expected unknown kind, got %q", details.Kind)
	}
	if details.Message != "plain failure" {
		t.Fatalf("unexpected message %q", details.Message)
	}
}
