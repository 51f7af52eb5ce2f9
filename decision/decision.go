// Package decision implements the Decision Engine, the algorithmic heart
// of hashback (spec.md §4.5): for each source file it produces exactly one
// outcome -- Linked, Copied, Skipped, or Failed -- consulting and updating
// the Index along the way. Grounded on the teacher's db/tree.go AppendBlob
// (hash, then store-or-reuse) and the WORM promote-on-Close discipline,
// re-targeted from "store a content-addressed chunk" to "link or copy a
// whole file".
package decision

import (
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/stevegt/hashback/fingerprint"
	"github.com/stevegt/hashback/fsmeta"
	"github.com/stevegt/hashback/fsops"
	"github.com/stevegt/hashback/index"
	"github.com/stevegt/hashback/respath"
)

// Kind classifies an Outcome.
type Kind int

const (
	Linked Kind = iota
	Copied
	Skipped
	Failed
)

func (k Kind) String() string {
	switch k {
	case Linked:
		return "linked"
	case Copied:
		return "copied"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reason names why a Copied/Skipped/Failed outcome happened, per the
// reason strings spec.md §4.5 enumerates.
type Reason string

const (
	ReasonDirectory                  Reason = "directory"
	ReasonReadonly                   Reason = "readonly"
	ReasonNewHash                    Reason = "new-hash"
	ReasonHashRefersMissingFile      Reason = "new-hash" // spec.md §4.5 step 5: treated as (4)
	ReasonAttributeMismatch          Reason = "hash-equal-attribute-mismatch"
	ReasonBinaryMismatch             Reason = "hash-equal-binary-mismatch"
	ReasonPathTooLong                Reason = "path-too-long"
	ReasonIOError                    Reason = "io-error"
)

// Outcome is the result of deciding one source file.
type Outcome struct {
	Kind        Kind
	Reason      Reason
	Fingerprint fingerprint.Fingerprint
	Source      respath.Absolute
	Destination respath.Absolute
	LinkedFrom  respath.Absolute
	BytesMoved  int64
	Err         error
}

// Input bundles what Decide needs about one source file. Open is called at
// most once, lazily, so directories and read-only files never pay for an
// open+hash they don't need.
type Input struct {
	Source      respath.Absolute
	Destination respath.Absolute
	Meta        fsmeta.View
	Open        func() (io.ReadCloser, error)
}

// Decide runs the procedure of spec.md §4.5 steps 1-8 against idx and
// returns exactly one Outcome. It does not itself perform the filesystem
// mutation (create directory, copy, or link) -- that is the
// Orchestrator's job, applying the Outcome it receives back.
func Decide(idx *index.Index, in Input) Outcome {
	base := Outcome{Source: in.Source, Destination: in.Destination}

	if in.Meta.IsDir() {
		base.Kind = Copied
		base.Reason = ReasonDirectory
		return base
	}
	if in.Meta.ReadOnly() {
		base.Kind = Copied
		base.Reason = ReasonReadonly
		return base
	}

	rc, err := in.Open()
	if err != nil {
		base.Kind = Failed
		base.Reason = ReasonIOError
		base.Err = err
		return base
	}
	defer rc.Close()

	fp, err := fingerprint.Compute(rc, fsmeta.ToFingerprintMeta(in.Meta))
	if err != nil {
		base.Kind = Failed
		base.Reason = ReasonIOError
		base.Err = err
		return base
	}
	base.Fingerprint = fp

	candidate, found := idx.Lookup(fp)
	if !found || idx.Empty() {
		idx.InsertCurrent(fp, in.Destination)
		base.Kind = Copied
		base.Reason = ReasonNewHash
		return base
	}

	candidateMeta, err := fsmeta.Stat(string(candidate))
	if err != nil {
		log.WithFields(log.Fields{
			"fingerprint": fp.String(),
			"path":        candidate,
		}).Warn("decision: hash refers to nonexisting file")
		idx.InsertCurrent(fp, in.Destination)
		base.Kind = Copied
		base.Reason = ReasonHashRefersMissingFile
		return base
	}

	if attributesDiffer(in.Meta, candidateMeta) {
		log.WithFields(log.Fields{
			"fingerprint": fp.String(),
			"path":        candidate,
		}).Warn("decision: hash-equal file has mismatched attributes, copying instead of linking")
		base.Kind = Copied
		base.Reason = ReasonAttributeMismatch
		return base
	}

	equal, err := fsops.ByteEqual(candidate, in.Source)
	if err != nil {
		base.Kind = Failed
		base.Reason = ReasonIOError
		base.Err = err
		return base
	}
	if !equal {
		log.WithFields(log.Fields{
			"fingerprint": fp.String(),
			"path":        candidate,
		}).Warn("decision: hash-equal files differ byte-for-byte, copying instead of linking")
		base.Kind = Copied
		base.Reason = ReasonBinaryMismatch
		return base
	}

	base.Kind = Linked
	base.LinkedFrom = candidate
	return base
}

func attributesDiffer(source, candidate fsmeta.View) bool {
	if !source.LastWriteUTC().Equal(candidate.LastWriteUTC()) {
		return true
	}
	if !source.CreatedUTC().Equal(candidate.CreatedUTC()) {
		return true
	}
	if source.Hidden() != candidate.Hidden() {
		return true
	}
	return false
}
