package preflight

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestCheckDirectoryAccessCreatesMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static")
	result := CheckDirectoryAccess("Static root", path)
	if !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
}

func TestCheckDirectoryAccessRejectsEmptyPath(t *testing.T) {
	if result := CheckDirectoryAccess("Static root", "  "); result.Passed {
		t.Fatalf("expected failure, got %+v", result)
	}
}

func TestCheckBinaryMissing(t *testing.T) {
	result := CheckBinary("FFmpeg", "definitely-not-a-real-binary", false)
	if result.Passed {
		t.Fatalf("expected failure, got %+v", result)
	}
}

func TestCheckFreeSpace(t *testing.T) {
	restore := statfsFree
	defer func() { statfsFree = restore }()

	statfsFree = func(path string) (uint64, error) { return 10 << 30, nil }
	if result := CheckFreeSpace("Disk", "/static", 5); !result.Passed {
		t.Fatalf("expected pass with 10 GiB free, got %+v", result)
	}
	if result := CheckFreeSpace("Disk", "/static", 20); result.Passed {
		t.Fatalf("expected failure with 10 GiB free, got %+v", result)
	}

	statfsFree = func(path string) (uint64, error) { return 0, errors.New("no such device") }
	if result := CheckFreeSpace("Disk", "/static", 1); result.Passed {
		t.Fatalf("expected failure on statfs error, got %+v", result)
	}
}

func TestPassedIgnoresOptionalFailures(t *testing.T) {
	results := []Result{
		{Name: "FFmpeg", Passed: true},
		{Name: "Whisper", Passed: false, Optional: true},
	}
	if !Passed(results) {
		t.Fatal("optional failure should not block")
	}
	results = append(results, Result{Name: "FFprobe", Passed: false})
	if Passed(results) {
		t.Fatal("required failure must block")
	}
}
