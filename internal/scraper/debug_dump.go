package scraper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const MaxDebugChars = 200000

// DebugDumper writes extracted text next to the run for diagnosis. Write
// failures are swallowed; an empty Dir disables dumping.
type DebugDumper struct {
	Dir string
	now func() time.Time
}

func NewDebugDumper(dir string) *DebugDumper {
	return &DebugDumper{Dir: strings.TrimSpace(dir), now: time.Now}
}

// Dump returns the written path, or "" when nothing was written.
func (d *DebugDumper) Dump(name, text string) string {
	if d == nil || d.Dir == "" {
		return ""
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return ""
	}

	if r := []rune(text); len(r) > MaxDebugChars {
		text = string(r[:MaxDebugChars])
	}

	now := time.Now
	if d.now != nil {
		now = d.now
	}
	file := fmt.Sprintf("%s-%s.txt", sanitizeFileName(name), now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(d.Dir, file)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return ""
	}
	return path
}

func sanitizeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "dump"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
