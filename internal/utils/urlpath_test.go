package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain name", input: "firmware.zip", expected: "firmware.zip"},
		{name: "strips directories", input: "a/b/c/rom.img", expected: "rom.img"},
		{name: "strips windows directories", input: `C:\Users\x\boot.img`, expected: "boot.img"},
		{name: "replaces reserved characters", input: `what?*.bin`, expected: "what__.bin"},
		{name: "trims whitespace", input: "  spaced.txt  ", expected: "spaced.txt"},
		{name: "dot only", input: "..", expected: ""},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestUniqueFilePath(t *testing.T) {
	tmpDir := t.TempDir()

	createFile := func(name string) {
		path := filepath.Join(tmpDir, name)
		_ = os.MkdirAll(filepath.Dir(path), 0o755)
		if err := os.WriteFile(path, []byte("test"), 0o644); err != nil {
			t.Fatalf("Failed to create file %s: %v", path, err)
		}
	}

	tests := []struct {
		name     string
		existing []string
		input    string
		want     string
	}{
		{name: "No conflict", input: "file.txt", want: "file.txt"},
		{name: "One conflict", existing: []string{"file.txt"}, input: "file.txt", want: "file(1).txt"},
		{name: "Two conflicts", existing: []string{"file.txt", "file(1).txt"}, input: "file.txt", want: "file(2).txt"},
		{name: "Numbered input", existing: []string{"image(2).png"}, input: "image(2).png", want: "image(3).png"},
		{name: "Nested directory", existing: []string{"sub/notes.txt"}, input: "sub/notes.txt", want: "sub/notes(1).txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, f := range tt.existing {
				createFile(f)
			}
			got := UniqueFilePath(filepath.Join(tmpDir, tt.input))
			want := filepath.Join(tmpDir, tt.want)
			if got != want {
				t.Errorf("UniqueFilePath() = %q, want %q", got, want)
			}
		})
	}
}

func TestUniqueFilePathFunc(t *testing.T) {
	taken := map[string]bool{"/dl/same.bin": true, "/dl/same(1).bin": true}
	got := UniqueFilePathFunc("/dl/same.bin", func(p string) bool { return taken[p] })
	if got != "/dl/same(2).bin" {
		t.Errorf("UniqueFilePathFunc() = %q, want %q", got, "/dl/same(2).bin")
	}
	if got := UniqueFilePathFunc("/dl/other.bin", func(string) bool { return false }); got != "/dl/other.bin" {
		t.Errorf("UniqueFilePathFunc() = %q, want unchanged", got)
	}
}

func TestEnsureAbsPath(t *testing.T) {
	if got := EnsureAbsPath(""); got != "" {
		t.Errorf("EnsureAbsPath(\"\") = %q, want empty", got)
	}
	if got := EnsureAbsPath("relative/dir"); !filepath.IsAbs(got) {
		t.Errorf("EnsureAbsPath should return an absolute path, got %q", got)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := ConvertBytesToHumanReadable(1024); got != "1.0 KiB" {
		t.Errorf("ConvertBytesToHumanReadable(1024) = %q", got)
	}
	if got := FormatSpeed(0); got != "-" {
		t.Errorf("FormatSpeed(0) = %q, want -", got)
	}
	if got := FormatSpeed(2048); got != "2.0 KiB/s" {
		t.Errorf("FormatSpeed(2048) = %q", got)
	}
	if got := FormatDuration(75 * time.Second); got != "01:15" {
		t.Errorf("FormatDuration(75s) = %q", got)
	}
	if got := FormatDuration(3*time.Hour + 5*time.Second); got != "03:00:05" {
		t.Errorf("FormatDuration(3h5s) = %q", got)
	}
}

func TestCleanupLogs_KeepsNewest(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"debug-20240101-000000.log",
		"debug-20240102-000000.log",
		"debug-20240103-000000.log",
		"other.txt",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cleanupLogsIn(dir, 2)

	if _, err := os.Stat(filepath.Join(dir, names[0])); !os.IsNotExist(err) {
		t.Error("oldest log should be removed")
	}
	for _, n := range names[1:] {
		if _, err := os.Stat(filepath.Join(dir, n)); err != nil {
			t.Errorf("%s should be kept: %v", n, err)
		}
	}
}
