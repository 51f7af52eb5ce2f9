// Package filter parses hashback's line-oriented inclusion/exclusion
// pattern files (spec.md §6) and matches paths against them using
// moby/patternmatcher's glob matcher -- a dependency already present in
// the teacher's go.mod (originally pulled in for the container-sandbox
// code under server/, now rewired here for its glob-matching utility).
package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/moby/patternmatcher"
)

// commentMarkers are the trailing-comment introducers spec.md §6 names.
var commentMarkers = []string{"#", "::", "//"}

// ParseFile reads a line-oriented pattern file: trailing comments
// introduced by #, ::, or // are stripped, leading/trailing whitespace is
// removed after that, empty lines are ignored, and a line starting with *
// is rejected as ambiguous.
func ParseFile(path string) (patterns []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("filter: opening pattern file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "*") {
			return nil, fmt.Errorf("filter: %s:%d: pattern %q starting with * is ambiguous", path, lineNum, line)
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("filter: reading pattern file %s: %w", path, err)
	}
	return patterns, nil
}

func stripComment(line string) string {
	cut := len(line)
	for _, marker := range commentMarkers {
		if i := strings.Index(line, marker); i >= 0 && i < cut {
			cut = i
		}
	}
	return line[:cut]
}

// Matcher wraps moby/patternmatcher's PatternMatcher to answer whether a
// given path matches a set of glob-style (*, ?) patterns.
type Matcher struct {
	pm *patternmatcher.PatternMatcher
}

// NewMatcher compiles patterns into a Matcher.
func NewMatcher(patterns []string) (*Matcher, error) {
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("filter: compiling patterns: %w", err)
	}
	return &Matcher{pm: pm}, nil
}

// Match reports whether relPath (slash- or OS-separated, relative to the
// root being filtered) matches any pattern, including via a matching
// parent directory.
func (m *Matcher) Match(relPath string) (bool, error) {
	if m == nil || m.pm == nil {
		return false, nil
	}
	return m.pm.MatchesOrParentMatches(relPath)
}
