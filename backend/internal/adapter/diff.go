package adapter

import (
	"bytes"
	"path"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// DiffStats summarizes what FilterDiff kept
type DiffStats struct {
	Files        int      `json:"files"`
	SkippedFiles []string `json:"skipped_files,omitempty"`
	LinesAdded   int      `json:"lines_added"`
	LinesRemoved int      `json:"lines_removed"`
	Truncated    bool     `json:"truncated"`
	// Unparsed is set when the input was not a unified diff and was passed through as text
	Unparsed bool `json:"unparsed,omitempty"`
}

var ignoredDirs = []string{
	"node_modules/", "vendor/", "dist/", "build/", ".git/",
	"__pycache__/", "venv/", ".venv/", ".next/", "coverage/",
}

var lockfiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"go.sum":            true,
	"cargo.lock":        true,
	"poetry.lock":       true,
	"gemfile.lock":      true,
	"composer.lock":     true,
	"pipfile.lock":      true,
}

var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true, ".webp": true,
	".pdf": true, ".zip": true, ".gz": true, ".tar": true, ".jar": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".exe": true, ".dll": true, ".so": true,
}

// FilterDiff drops files that teach nothing (dependencies, lockfiles,
// generated and binary files) and cuts the remainder to maxBytes at a line
// boundary. Input that is not a unified diff is only truncated.
func FilterDiff(raw string, maxBytes int) (string, DiffStats) {
	var stats DiffStats

	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(raw)).ReadAllFiles()
	if err != nil || !parsed(fileDiffs) {
		stats.Unparsed = true
		out, truncated := truncate(raw, maxBytes)
		stats.Truncated = truncated
		return out, stats
	}

	kept := make([]*diff.FileDiff, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		name := fileName(fd)
		if ignoredFile(name) || isBinary(fd) {
			stats.SkippedFiles = append(stats.SkippedFiles, name)
			continue
		}
		kept = append(kept, fd)
		added, removed := countLines(fd)
		stats.LinesAdded += added
		stats.LinesRemoved += removed
	}
	stats.Files = len(kept)
	if len(kept) == 0 {
		return "", stats
	}

	printed, err := diff.PrintMultiFileDiff(kept)
	if err != nil {
		printed = []byte(raw)
	}
	out, truncated := truncate(string(printed), maxBytes)
	stats.Truncated = truncated
	return out, stats
}

// parsed reports whether the reader found at least one real file section
func parsed(fileDiffs []*diff.FileDiff) bool {
	for _, fd := range fileDiffs {
		if len(fd.Hunks) > 0 || fileName(fd) != "" {
			return true
		}
	}
	return false
}

func fileName(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	name = strings.TrimPrefix(name, "a/")
	return strings.TrimPrefix(name, "b/")
}

func ignoredFile(name string) bool {
	lower := strings.ToLower(name)
	for _, dir := range ignoredDirs {
		if strings.HasPrefix(lower, dir) || strings.Contains(lower, "/"+dir) {
			return true
		}
	}
	base := path.Base(lower)
	if lockfiles[base] || strings.HasSuffix(base, ".lock") {
		return true
	}
	if strings.HasSuffix(base, ".min.js") || strings.HasSuffix(base, ".min.css") || strings.HasSuffix(base, ".map") {
		return true
	}
	return binaryExts[path.Ext(base)]
}

func isBinary(fd *diff.FileDiff) bool {
	for _, line := range fd.Extended {
		if strings.HasPrefix(line, "Binary files") || line == "GIT binary patch" {
			return true
		}
	}
	return false
}

func countLines(fd *diff.FileDiff) (added, removed int) {
	for _, hunk := range fd.Hunks {
		for _, line := range bytes.Split(hunk.Body, []byte("\n")) {
			switch {
			case bytes.HasPrefix(line, []byte("+")):
				added++
			case bytes.HasPrefix(line, []byte("-")):
				removed++
			}
		}
	}
	return added, removed
}

// truncate cuts s to at most max bytes, backing up to the last newline when there is one
func truncate(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	cut := s[:max]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i+1]
	}
	return cut, true
}
