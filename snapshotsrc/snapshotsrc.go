// Package snapshotsrc defines the interface hashback's core consumes for
// reading source files, either through a host-OS point-in-time snapshot
// view or directly off the live filesystem (spec.md §4.3). The VSS-backed
// provider is out of this repository's scope by spec.md §1; only the
// interface and a trivial direct implementation live here.
package snapshotsrc

import (
	"io"

	"github.com/stevegt/hashback/fsmeta"
	"github.com/stevegt/hashback/respath"
)

// Handle is everything the engine needs from one opened source file: a
// byte stream, its metadata view, and the user-facing path to log and
// compose destinations from.
type Handle struct {
	Reader      io.ReadCloser
	Meta        fsmeta.View
	DisplayPath respath.Absolute
}

// Provider yields read-only handles onto source files, and translates a
// physical (possibly snapshot-internal) path back to its user-facing
// original.
type Provider interface {
	// Open returns a Handle for sourcePath. The caller must close
	// Handle.Reader when done.
	Open(sourcePath respath.Absolute) (Handle, error)
	// Translate maps a physical path (as seen while iterating a snapshot
	// view) back to the display path a user would recognize.
	Translate(physicalPath respath.Absolute) respath.Absolute
	// Release frees any resources the provider holds (e.g. the snapshot
	// view itself). Must be called exactly once at orchestrator shutdown.
	Release() error
}
