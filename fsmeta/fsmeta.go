// Package fsmeta exposes the metadata view the fingerprint scheme needs
// (UTC last-write time, UTC creation time, Hidden attribute) without
// forcing callers to know which platform they are running on.
package fsmeta

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stevegt/hashback/fingerprint"
)

// View adapts a stat result (and, where the platform requires it, the
// original path) into the Meta shape fingerprint.Compute consumes.
type View interface {
	LastWriteUTC() time.Time
	CreatedUTC() time.Time
	AccessedUTC() time.Time
	Hidden() bool
	ReadOnly() bool
	IsDir() bool
	Size() int64
}

// ToFingerprintMeta adapts a View to fingerprint.Meta.
func ToFingerprintMeta(v View) fingerprint.Meta {
	return fingerprint.Meta{
		LastWriteUTC: v.LastWriteUTC(),
		CreatedUTC:   v.CreatedUTC(),
		Hidden:       v.Hidden(),
	}
}

// Stat stats path and returns its metadata view. On platforms without a
// native creation time (most POSIX filesystems), CreatedUTC falls back to
// the last-write time, which keeps the
// fingerprint stable across runs even though it cannot distinguish a
// genuine creation-time change on such filesystems.
func Stat(path string) (View, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	return newView(path, info), nil
}

// hiddenByConvention implements the POSIX resolution of the Open Question
// in spec.md §9: a file is Hidden iff its base name starts with a dot.
// Recorded in DESIGN.md / SPEC_FULL.md §6.
func hiddenByConvention(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func readOnlyByMode(mode os.FileMode) bool {
	return mode&0200 == 0
}
