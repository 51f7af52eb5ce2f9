// Package respath gives the engine a typed path abstraction instead of the
// implicit string-splicing the source tool relied on (spec.md §9). It is
// grounded on the teacher's own Path type (path.go), which carried the same
// three-way Abs/Rel/Canon split for hash-addressed object paths; here the
// same split addresses plain files relative to a sidecar's directory
// instead of relative to a content-hash tree.
package respath

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Absolute is a path known to be rooted (cleaned, OS-native separators).
type Absolute string

// Relative is a path known to be relative to some base directory -- the
// directory containing the StoredIndex sidecar that named it.
type Relative string

// NewAbsolute cleans and validates p as an absolute path.
func NewAbsolute(p string) (Absolute, error) {
	if !filepath.IsAbs(p) {
		return "", fmt.Errorf("respath: not an absolute path: %s", p)
	}
	return Absolute(filepath.Clean(p)), nil
}

// MustAbsolute is like NewAbsolute but panics on error; used for
// compile-time-known or already-validated paths.
func MustAbsolute(p string) Absolute {
	a, err := NewAbsolute(p)
	if err != nil {
		panic(err)
	}
	return a
}

// RelativeTo computes the Relative form of a against base, matching the
// invariant spec.md §3 requires: "RelativePath is relative to the
// directory that contains the stored index file."
func (a Absolute) RelativeTo(base Absolute) (Relative, error) {
	rel, err := filepath.Rel(string(base), string(a))
	if err != nil {
		return "", fmt.Errorf("respath: %s is not reachable from %s: %w", a, base, err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("respath: %s lies outside %s", a, base)
	}
	return Relative(rel), nil
}

// Resolve turns a Relative path back into an Absolute one by prepending
// base, the directory that contains the sidecar the Relative path was read
// from.
func (r Relative) Resolve(base Absolute) Absolute {
	return Absolute(filepath.Clean(filepath.Join(string(base), string(r))))
}

// Join appends elems to a using OS-native joining rules.
func (a Absolute) Join(elems ...string) Absolute {
	parts := append([]string{string(a)}, elems...)
	return Absolute(filepath.Join(parts...))
}

// Dir returns the Absolute directory containing a.
func (a Absolute) Dir() Absolute {
	return Absolute(filepath.Dir(string(a)))
}

// Base returns the final path element of a.
func (a Absolute) Base() string {
	return filepath.Base(string(a))
}

func (a Absolute) String() string { return string(a) }
func (r Relative) String() string { return string(r) }

// WithSeparatorLeading renders r using the host separator with a leading
// separator, the wire form spec.md §6 mandates for sidecar values.
func (r Relative) WithSeparatorLeading() string {
	native := filepath.FromSlash(string(r))
	if !strings.HasPrefix(native, string(filepath.Separator)) {
		native = string(filepath.Separator) + native
	}
	return native
}

// RelativeFromSeparatorLeading parses the wire form produced by
// WithSeparatorLeading back into a Relative path.
func RelativeFromSeparatorLeading(s string) Relative {
	trimmed := strings.TrimPrefix(s, string(filepath.Separator))
	return Relative(filepath.Clean(trimmed))
}
