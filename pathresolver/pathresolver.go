// Package pathresolver defines the interface hashback's core consumes for
// platform path-length workarounds (spec.md §4.2). The core never
// implements path shortening itself; it is a collaborator, the same way
// the teacher treats privileged operations and the host snapshot facility
// as black boxes it only calls through an interface.
package pathresolver

import "github.com/stevegt/hashback/respath"

// Resolver shortens paths that would otherwise exceed a platform's
// per-API length limit, and releases whatever indirection it created for
// that purpose at the end of a run.
type Resolver interface {
	// Shorten returns a path referring to the same filesystem object as p,
	// guaranteed to be within the platform's length limit. Calling Shorten
	// twice with the same input during one run must return the same
	// output (determinism, spec.md §4.2).
	Shorten(p respath.Absolute) (respath.Absolute, error)
	// ReleaseAll releases every indirection created by Shorten during this
	// run. Must be safe to call exactly once at orchestrator shutdown.
	ReleaseAll() error
}

// Identity is a Resolver for platforms without a path-length limit: every
// call to Shorten returns its input unchanged and ReleaseAll is a no-op.
type Identity struct{}

// New returns the identity resolver.
func New() Resolver { return Identity{} }

func (Identity) Shorten(p respath.Absolute) (respath.Absolute, error) { return p, nil }
func (Identity) ReleaseAll() error                                    { return nil }
