package orchestrator

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/stevegt/hashback/decision"
	"github.com/stevegt/hashback/fsmeta"
	"github.com/stevegt/hashback/fsops"
	"github.com/stevegt/hashback/index"
	"github.com/stevegt/hashback/respath"
	"github.com/stevegt/hashback/runctx"
)

// openFile is the plain-filesystem fallback used by modes (Rehardlink,
// in-place re-fingerprinting) that have no snapshot-provider indirection
// of their own, since source and destination are the same path there.
func openFile(p respath.Absolute) (io.ReadCloser, error) {
	return os.Open(string(p))
}

// runMakeIndex fingerprints every regular, non-read-only file under
// directory and inserts it into a fresh Index's this-run map, then exports
// that Index to directory's root (spec.md §4.6 MakeIndex). It returns the
// populated Index so Backup's LinkToDirectory sub-run (SPEC_FULL.md §5)
// can merge its results without a second filesystem walk.
func (o *Orchestrator) runMakeIndex(directory string, notShadowed bool) (*index.Index, *runctx.RunContext, error) {
	root, err := respath.NewAbsolute(directory)
	if err != nil {
		return nil, nil, err
	}

	idx := index.New()
	rc := runctx.New()

	paths, err := fsops.ListRecursive(root)
	if err != nil {
		return nil, nil, err
	}

	for _, p := range paths {
		meta, err := fsmeta.Stat(string(p))
		if err != nil {
			log.WithField("path", p).WithError(err).Error("makeindex: stat failed, skipping")
			rc.RecordFailed()
			continue
		}
		if meta.IsDir() {
			continue
		}
		if meta.ReadOnly() {
			rc.RecordCopied(0, true)
			continue
		}

		outcome := decision.Decide(idx, decision.Input{
			Source:      p,
			Destination: p,
			Meta:        meta,
			Open: func() (io.ReadCloser, error) {
				h, err := o.Provider.Open(p)
				if err != nil {
					return nil, err
				}
				return h.Reader, nil
			},
		})
		if outcome.Kind == decision.Failed {
			log.WithField("path", p).WithError(outcome.Err).Error("makeindex: fingerprinting failed")
			rc.RecordFailed()
			continue
		}
		rc.RecordCopied(meta.Size(), false)
	}

	if err := idx.Export(root, o.sidecarName()); err != nil {
		return idx, rc, err
	}
	return idx, rc, nil
}
