//go:build !windows

package fsops

import (
	"time"

	"github.com/stevegt/hashback/respath"
)

// setCreationTime is a no-op on platforms without a settable birth time.
func setCreationTime(dst respath.Absolute, created time.Time) error {
	return nil
}

// setHidden is a no-op on POSIX: Hidden is a naming convention (leading
// dot), not an attribute bit, and CopyPreservingMetadata already copies
// the destination's name verbatim from the source.
func setHidden(dst respath.Absolute, hidden bool) error {
	return nil
}
