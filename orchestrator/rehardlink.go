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

// runRehardlink walks Directory in place and replaces every byte-identical
// duplicate it finds with a hard link to one canonical instance (spec.md
// §4.6 Rehardlink). Unlike Backup, source and destination are the same
// path: the Decision Engine still drives the choice, but a Linked outcome
// is applied with fsops.RetryRehardlink's delete+link swap instead of a
// fresh os.Link, since the destination already exists.
func (o *Orchestrator) runRehardlink(m Rehardlink) (*runctx.RunContext, error) {
	rc := runctx.New()

	root, err := respath.NewAbsolute(m.Directory)
	if err != nil {
		return nil, err
	}

	idx := index.New()
	if err := idx.MergeFrom(root, o.sidecarName(), true); err != nil {
		return nil, err
	}
	rc.RecordDroppedReferences(idx.DroppedReferences())

	for _, extra := range m.LinkToHashtables {
		extraRoot, err := respath.NewAbsolute(extra)
		if err != nil {
			return nil, err
		}
		if err := idx.MergeFrom(extraRoot, "*", false); err != nil {
			return nil, err
		}
	}

	paths, err := fsops.ListRecursive(root)
	if err != nil {
		return nil, err
	}

	for _, p := range paths {
		meta, err := fsmeta.Stat(string(p))
		if err != nil {
			log.WithField("path", p).WithError(err).Error("rehardlink: stat failed")
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
			Open:        func() (io.ReadCloser, error) { return openFile(p) },
		})

		switch outcome.Kind {
		case decision.Linked:
			pInfo, pErr := os.Stat(string(p))
			cInfo, cErr := os.Stat(string(outcome.LinkedFrom))
			if pErr == nil && cErr == nil && os.SameFile(pInfo, cInfo) {
				// already a link to the canonical instance: nothing to swap
				continue
			}
			if err := fsops.RetryRehardlink(p, outcome.LinkedFrom, o.RehardlinkRetryAttempts, o.RehardlinkRetryDelay); err != nil {
				log.WithField("path", p).WithError(err).Error("rehardlink: swap failed")
				rc.RecordFailed()
				continue
			}
			rc.RecordLinked(meta.Size())
		case decision.Copied:
			rc.RecordCopied(meta.Size(), outcome.Reason == "readonly")
		case decision.Failed:
			log.WithField("path", p).WithError(outcome.Err).Error("rehardlink: decision failed")
			rc.RecordFailed()
		}
	}

	if err := idx.Export(root, o.sidecarName()); err != nil {
		return rc, err
	}
	return rc, nil
}
