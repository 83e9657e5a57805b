package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// EnsureAbsPath returns an absolute version of path, or path itself if that fails.
func EnsureAbsPath(path string) string {
	if path == "" {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

var unsafeNameChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", "\x00", "",
)

// SanitizeFilename strips directory components and characters that are not
// valid in file names on common filesystems.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeNameChars.Replace(name)
	if name == "" || name == "." || name == ".." {
		return ""
	}
	return name
}

var numberedName = regexp.MustCompile(`^(.*)\((\d+)\)$`)

// UniqueFilePath returns path, or the first "name(N).ext" sibling that does not
// exist yet.
func UniqueFilePath(path string) string {
	return UniqueFilePathFunc(path, fileExists)
}

// UniqueFilePathFunc is UniqueFilePath with a caller-supplied notion of a
// taken path.
func UniqueFilePathFunc(path string, taken func(string) bool) string {
	if !taken(path) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)

	n := 1
	if m := numberedName.FindStringSubmatch(base); m != nil {
		base = m[1]
		if v, err := strconv.Atoi(m[2]); err == nil {
			n = v + 1
		}
	}

	for ; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s(%d)%s", base, n, ext))
		if !taken(candidate) {
			return candidate
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
