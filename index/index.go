// Package index implements the in-memory Fingerprint -> AbsolutePath map
// (spec.md §4.4), its repository-wide merge from per-snapshot sidecars, and
// its per-run export back to a sidecar. Grounded on the teacher's
// db/db.go Open/Create (read a small sidecar in a known location,
// deserialize, validate) and db/tree.go's loadEntries (line-oriented
// content naming child paths).
package index

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"

	"github.com/stevegt/hashback/fingerprint"
	"github.com/stevegt/hashback/fsops"
	"github.com/stevegt/hashback/respath"
)

// Index is the in-memory Fingerprint -> AbsolutePath map, plus a separate
// this-run-only map used for export (spec.md §4.4 insert_current).
type Index struct {
	all       map[fingerprint.Fingerprint]respath.Absolute
	thisRun   map[fingerprint.Fingerprint]respath.Absolute
	droppedRef int
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		all:     make(map[fingerprint.Fingerprint]respath.Absolute),
		thisRun: make(map[fingerprint.Fingerprint]respath.Absolute),
	}
}

// Len reports how many entries are currently resolvable (merged plus
// this-run).
func (idx *Index) Len() int {
	return len(idx.all)
}

// Empty reports whether the index has no entries at all, which spec.md
// §4.5 step 4 treats the same as "no entry for fp".
func (idx *Index) Empty() bool {
	return len(idx.all) == 0
}

// Lookup returns the AbsolutePath registered for fp, if any.
func (idx *Index) Lookup(fp fingerprint.Fingerprint) (respath.Absolute, bool) {
	p, ok := idx.all[fp]
	return p, ok
}

// InsertCurrent records fp -> abs in both the merged map (so later files in
// this run can link to it) and the this-run-only map (for export). It is a
// silent no-op if fp is already present in the this-run-only map, matching
// spec.md §4.4.
func (idx *Index) InsertCurrent(fp fingerprint.Fingerprint, abs respath.Absolute) {
	if _, exists := idx.thisRun[fp]; exists {
		return
	}
	idx.thisRun[fp] = abs
	idx.all[fp] = abs
}

// insertMerged records an entry read from a sidecar. First-write-wins:
// existing keys are never overwritten (spec.md §3, §8).
func (idx *Index) insertMerged(fp fingerprint.Fingerprint, abs respath.Absolute) {
	if _, exists := idx.all[fp]; exists {
		return
	}
	idx.all[fp] = abs
}

// MergeFrom recursively locates every file under root named sidecarName
// (or matching the glob when sidecarName == "*"), deserializes each, and
// inserts its entries, first-write-wins, in lexicographic depth-first walk
// order (spec.md §9's resolution of the merge-order Open Question).
//
// In rigorous mode every resolved path is stat-checked; references to
// missing files are logged, counted, and dropped without aborting the
// merge (spec.md §4.4, §7 taxonomy (c)).
func (idx *Index) MergeFrom(root respath.Absolute, sidecarName string, rigorous bool) (err error) {
	defer Return(&err)

	sidecars, err := findSidecars(root, sidecarName)
	Ck(err)

	for _, sidecarPath := range sidecars {
		stored, err := Load(sidecarPath)
		if err != nil {
			log.WithField("sidecar", sidecarPath).WithError(err).Warn("index: could not load sidecar, skipping")
			continue
		}
		dir := sidecarPath.Dir()
		dropped := 0
		for fp, rel := range stored.Entries {
			abs := rel.Resolve(dir)
			if rigorous {
				if !pathExists(abs) {
					dropped++
					log.WithFields(log.Fields{
						"fingerprint": fp.String(),
						"path":        abs,
						"sidecar":     sidecarPath,
					}).Warn("index: hash refers to nonexisting file, dropping reference")
					continue
				}
			}
			idx.insertMerged(fp, abs)
		}
		if dropped > 0 {
			idx.droppedRef += dropped
			log.WithFields(log.Fields{
				"sidecar": sidecarPath,
				"dropped": dropped,
			}).Warn("index: sidecar had dangling references")
		}
	}
	return nil
}

// DroppedReferences reports the total count of rigorous-mode dangling
// references dropped across all merges performed on this Index so far.
func (idx *Index) DroppedReferences() int {
	return idx.droppedRef
}

// MergeRunResults folds another Index's this-run entries into idx,
// first-write-wins. Used to compose a MakeIndex sub-run's results into a
// Backup run's Index (spec.md §6 LinkToDirectory).
func (idx *Index) MergeRunResults(other *Index) {
	for fp, abs := range other.thisRun {
		idx.insertMerged(fp, abs)
	}
}

// FindSidecars exposes the sidecar-discovery walk for callers (such as
// Verify mode) that need the list of sidecars themselves rather than a
// merged Index.
func FindSidecars(root respath.Absolute, sidecarName string) ([]respath.Absolute, error) {
	return findSidecars(root, sidecarName)
}

func findSidecars(root respath.Absolute, sidecarName string) ([]respath.Absolute, error) {
	entries, err := fsops.ListRecursive(root)
	if err != nil {
		return nil, errors.Wrapf(err, "index: walking %s", root)
	}
	var out []respath.Absolute
	for _, p := range entries {
		if matchesSidecarName(p.Base(), sidecarName) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matchesSidecarName(base, sidecarName string) bool {
	if sidecarName == "*" {
		return true
	}
	return base == sidecarName
}
