package orchestrator

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stevegt/hashback/pathresolver"
	"github.com/stevegt/hashback/runctx"
	"github.com/stevegt/hashback/snapshotsrc"
)

// DefaultSidecarName is the well-known sidecar filename spec.md §6 names
// as its example constant.
const DefaultSidecarName = "ps-backup-hashtable.xml"

// DefaultRehardlinkRetryAttempts and DefaultRehardlinkRetryDelay are the default bounded
// retry budget for the Rehardlink delete+link race (spec.md §4.5), matched
// to the upper bound observed in the source tool (100 retries x 60s);
// implementations may expose lower defaults, which callers do via the
// Orchestrator's own fields.
const (
	DefaultRehardlinkRetryAttempts = 100
	DefaultRehardlinkRetryDelay    = 60 * time.Second
)

// Orchestrator drives one Mode end-to-end: enumerating the source stream,
// invoking the Decision Engine, applying its outcome to the filesystem,
// and performing the bookkeeping spec.md §4.6 and §5 describe.
type Orchestrator struct {
	Resolver    pathresolver.Resolver
	Provider    snapshotsrc.Provider
	SidecarName string

	RehardlinkRetryAttempts int
	RehardlinkRetryDelay    time.Duration

	Now func() time.Time

	// LastVerifyReport holds the detailed per-entry result of the most
	// recent Verify run, since RunContext's counters alone can't carry
	// per-file divergent/missing detail back to the caller.
	LastVerifyReport *VerifyReport
}

// New returns an Orchestrator wired with sensible defaults: the identity
// path resolver and the direct (live-filesystem) snapshot source, matching
// spec.md §4.2/§4.3's "trivial provider must be interchangeable" contract.
func New() *Orchestrator {
	return &Orchestrator{
		Resolver:                pathresolver.New(),
		Provider:                snapshotsrc.New(),
		SidecarName:             DefaultSidecarName,
		RehardlinkRetryAttempts: DefaultRehardlinkRetryAttempts,
		RehardlinkRetryDelay:    DefaultRehardlinkRetryDelay,
		Now:                     time.Now,
	}
}

// Run dispatches to the mode-specific driver and guarantees resource
// release at shutdown regardless of how the mode driver returns (spec.md
// §5: snapshot-provider resources and path-shortening indirections must be
// released exactly once at orchestrator shutdown).
func (o *Orchestrator) Run(mode Mode) (rc *runctx.RunContext, err error) {
	defer func() {
		if relErr := o.Provider.Release(); relErr != nil {
			log.WithError(relErr).Warn("orchestrator: releasing snapshot provider")
		}
		if relErr := o.Resolver.ReleaseAll(); relErr != nil {
			log.WithError(relErr).Warn("orchestrator: releasing path-shortening indirections")
		}
	}()

	switch m := mode.(type) {
	case Backup:
		return o.runBackup(m)
	case MakeIndex:
		idx, runCtx, mkErr := o.runMakeIndex(m.Directory, m.NotShadowed)
		_ = idx
		return runCtx, mkErr
	case Rehardlink:
		return o.runRehardlink(m)
	case Verify:
		report, runCtx, vErr := o.runVerify(m)
		o.LastVerifyReport = report
		return runCtx, vErr
	default:
		return nil, fmt.Errorf("orchestrator: unsupported mode %T", mode)
	}
}

func (o *Orchestrator) sidecarName() string {
	if o.SidecarName == "" {
		return DefaultSidecarName
	}
	return o.SidecarName
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}
