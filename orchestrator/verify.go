package orchestrator

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/stevegt/hashback/fingerprint"
	"github.com/stevegt/hashback/fsmeta"
	"github.com/stevegt/hashback/index"
	"github.com/stevegt/hashback/respath"
	"github.com/stevegt/hashback/runctx"
)

// EntryStatus classifies one sidecar entry's verification result.
type EntryStatus int

const (
	Correct EntryStatus = iota
	Divergent
	Missing
)

func (s EntryStatus) String() string {
	switch s {
	case Correct:
		return "correct"
	case Divergent:
		return "divergent"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// EntryReport is the verification result for one Fingerprint -> path entry
// of one sidecar.
type EntryReport struct {
	Sidecar    respath.Absolute
	Path       respath.Absolute
	Stored     fingerprint.Fingerprint
	Recomputed fingerprint.Fingerprint
	Status     EntryStatus
}

// VerifyReport is the full result of a Verify run: one EntryReport per
// sidecar entry examined across every sidecar found under Directory
// (spec.md §4.6 Verify).
type VerifyReport struct {
	Entries []EntryReport
}

// Divergent returns every entry whose recomputed fingerprint did not match
// the value stored in its sidecar.
func (r *VerifyReport) Divergent() []EntryReport {
	var out []EntryReport
	for _, e := range r.Entries {
		if e.Status == Divergent {
			out = append(out, e)
		}
	}
	return out
}

// Missing returns every entry whose referenced file could not be found.
func (r *VerifyReport) Missing() []EntryReport {
	var out []EntryReport
	for _, e := range r.Entries {
		if e.Status == Missing {
			out = append(out, e)
		}
	}
	return out
}

// runVerify recomputes the fingerprint of every file named by every sidecar
// found under Directory and reports where the stored hashtable and the
// live filesystem have diverged (spec.md §4.6 Verify, §8 scenario 6).
func (o *Orchestrator) runVerify(m Verify) (*VerifyReport, *runctx.RunContext, error) {
	rc := runctx.New()

	root, err := respath.NewAbsolute(m.Directory)
	if err != nil {
		return nil, nil, err
	}

	sidecars, err := index.FindSidecars(root, o.sidecarName())
	if err != nil {
		return nil, nil, err
	}

	report := &VerifyReport{}
	for _, sidecarPath := range sidecars {
		stored, err := index.Load(sidecarPath)
		if err != nil {
			log.WithField("sidecar", sidecarPath).WithError(err).Error("verify: could not load sidecar")
			rc.RecordFailed()
			continue
		}
		dir := sidecarPath.Dir()

		for fp, rel := range stored.Entries {
			abs := rel.Resolve(dir)
			entry, err := verifyEntry(sidecarPath, abs, fp)
			if err != nil {
				log.WithField("path", abs).WithError(err).Error("verify: recomputing fingerprint failed")
				rc.RecordFailed()
				continue
			}
			report.Entries = append(report.Entries, entry)
			switch entry.Status {
			case Correct:
				// no counter bump: RunContext's Linked/Copied counters
				// describe filesystem mutations, and Verify makes none.
			case Divergent:
				log.WithFields(log.Fields{
					"path":   abs,
					"stored": fp.String(),
					"actual": entry.Recomputed.String(),
				}).Warn("verify: fingerprint mismatch")
				rc.RecordFailed()
			case Missing:
				log.WithField("path", abs).Warn("verify: referenced file is missing")
				rc.RecordFailed()
			}
		}
	}

	return report, rc, nil
}

func verifyEntry(sidecarPath, path respath.Absolute, stored fingerprint.Fingerprint) (EntryReport, error) {
	base := EntryReport{Sidecar: sidecarPath, Path: path, Stored: stored}

	if _, err := os.Stat(string(path)); err != nil {
		if os.IsNotExist(err) {
			base.Status = Missing
			return base, nil
		}
		return base, fmt.Errorf("verify: stat %s: %w", path, err)
	}

	meta, err := fsmeta.Stat(string(path))
	if err != nil {
		return base, err
	}

	f, err := os.Open(string(path))
	if err != nil {
		return base, err
	}
	defer f.Close()

	recomputed, err := fingerprint.Compute(f, fsmeta.ToFingerprintMeta(meta))
	if err != nil {
		return base, err
	}
	base.Recomputed = recomputed

	if recomputed == stored {
		base.Status = Correct
	} else {
		base.Status = Divergent
	}
	return base, nil
}
