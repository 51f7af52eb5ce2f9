package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/stevegt/hashback/decision"
	"github.com/stevegt/hashback/filter"
	"github.com/stevegt/hashback/fsmeta"
	"github.com/stevegt/hashback/fsops"
	"github.com/stevegt/hashback/index"
	"github.com/stevegt/hashback/respath"
	"github.com/stevegt/hashback/runctx"
)

// dateDirFormat is the YYYY-MM-DD snapshot directory name spec.md §6
// mandates.
const dateDirFormat = "2006-01-02"

func (o *Orchestrator) runBackup(m Backup) (*runctx.RunContext, error) {
	rc := runctx.New()

	if m.BackupRoot == "" {
		return nil, fmt.Errorf("orchestrator: Backup requires a non-empty BackupRoot")
	}
	backupRoot, err := respath.NewAbsolute(m.BackupRoot)
	if err != nil {
		return nil, err
	}

	sourceInfo, err := os.Stat(m.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: Backup source %s: %w", m.SourcePath, err)
	}

	sourceRoots, err := resolveSourceRoots(m.SourcePath, sourceInfo)
	if err != nil {
		return nil, err
	}

	snapshotDir := backupRoot.Join(o.now().Format(dateDirFormat))
	if err := prepareSnapshotDir(snapshotDir, m.DeleteExistingBackup); err != nil {
		return nil, err
	}

	idx := index.New()
	if err := idx.MergeFrom(backupRoot, o.sidecarName(), true); err != nil {
		return nil, fmt.Errorf("orchestrator: merging repository index: %w", err)
	}
	rc.RecordDroppedReferences(idx.DroppedReferences())

	if m.LinkToDirectory != "" {
		subIdx, _, err := o.runMakeIndex(m.LinkToDirectory, m.NotShadowed)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: LinkToDirectory sub-run: %w", err)
		}
		idx.MergeRunResults(subIdx)
	}
	for _, extra := range m.LinkToHashtables {
		extraRoot, err := respath.NewAbsolute(extra)
		if err != nil {
			return nil, err
		}
		if err := idx.MergeFrom(extraRoot, "*", false); err != nil {
			return nil, fmt.Errorf("orchestrator: LinkToHashtables %s: %w", extra, err)
		}
	}

	var exclude *filter.Matcher
	if m.ExclusionFile != "" {
		patterns, err := filter.ParseFile(m.ExclusionFile)
		if err != nil {
			return nil, err
		}
		exclude, err = filter.NewMatcher(patterns)
		if err != nil {
			return nil, err
		}
	}

	for _, root := range sourceRoots {
		if err := o.backupTree(rc, idx, root, snapshotDir, exclude); err != nil {
			return rc, err
		}
	}

	if err := idx.Export(snapshotDir, o.sidecarName()); err != nil {
		return rc, fmt.Errorf("orchestrator: exporting snapshot index: %w", err)
	}
	return rc, nil
}

// resolveSourceRoots implements spec.md §4.6's mode constraint: the source
// is either a line-oriented inclusion pattern file, or a directory
// interpreted as dir/*. Each non-wildcard pattern-file line naming an
// existing path is treated as its own root; glob patterns are expanded
// with filepath.Glob.
func resolveSourceRoots(sourcePath string, info os.FileInfo) ([]respath.Absolute, error) {
	if info.IsDir() {
		root, err := respath.NewAbsolute(sourcePath)
		if err != nil {
			return nil, err
		}
		return []respath.Absolute{root}, nil
	}

	lines, err := filter.ParseFile(sourcePath)
	if err != nil {
		return nil, err
	}
	var roots []respath.Absolute
	for _, line := range lines {
		matches, err := filepath.Glob(line)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: bad inclusion pattern %q: %w", line, err)
		}
		if matches == nil {
			log.WithField("pattern", line).Warn("orchestrator: inclusion pattern matched nothing")
			continue
		}
		for _, match := range matches {
			abs, err := respath.NewAbsolute(match)
			if err != nil {
				// match came back relative; anchor it to the current
				// working directory before typing it as Absolute.
				anchored, absErr := filepath.Abs(match)
				if absErr != nil {
					return nil, fmt.Errorf("orchestrator: resolving inclusion match %q: %w", match, absErr)
				}
				abs = respath.MustAbsolute(anchored)
			}
			roots = append(roots, abs)
		}
	}
	return roots, nil
}

// prepareSnapshotDir creates the dated snapshot directory, failing if it
// already exists unless deleteExisting is set (spec.md §4.6, exit code 1
// in §6 when it exists and the flag is not set).
func prepareSnapshotDir(dir respath.Absolute, deleteExisting bool) error {
	if _, err := os.Stat(string(dir)); err == nil {
		if !deleteExisting {
			return &SnapshotExistsError{Dir: dir}
		}
		if err := os.RemoveAll(string(dir)); err != nil {
			return fmt.Errorf("orchestrator: removing existing snapshot %s: %w", dir, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(string(dir), 0755)
}

// SnapshotExistsError is the precondition failure spec.md §6 maps to exit
// code 1: a snapshot directory for today already exists and
// DeleteExistingBackup was not set.
type SnapshotExistsError struct {
	Dir respath.Absolute
}

func (e *SnapshotExistsError) Error() string {
	return fmt.Sprintf("snapshot directory already exists: %s", e.Dir)
}

// backupTree enumerates root's file tree (lexicographic depth-first,
// spec.md §9) and applies the Decision Engine to each entry, copying or
// linking it into snapshotDir. Enumeration walks the physical tree (which,
// under a shadow-copy Provider, lives under a snapshot-internal path), but
// spec.md §4.3 requires that only Provider.Translate's display path ever
// feeds destination-path composition, exclusion matching, or logging --
// the physical path is used solely for the actual stat/open/copy I/O.
func (o *Orchestrator) backupTree(rc *runctx.RunContext, idx *index.Index, root, snapshotDir respath.Absolute, exclude *filter.Matcher) error {
	paths, err := fsops.ListRecursive(root)
	if err != nil {
		return err
	}

	displayRoot := o.Provider.Translate(root)

	for _, src := range paths {
		display := o.Provider.Translate(src)

		rel, err := display.RelativeTo(displayRoot)
		if err != nil {
			return err
		}

		if exclude != nil {
			matched, err := exclude.Match(string(rel))
			if err != nil {
				return err
			}
			if matched {
				continue
			}
		}

		dest, err := o.Resolver.Shorten(snapshotDir.Join(displayRoot.Base(), string(rel)))
		if err != nil {
			log.WithField("path", display).WithError(err).Warn("orchestrator: path too long to shorten, skipping")
			rc.RecordSkippedPath()
			continue
		}

		meta, err := fsmeta.Stat(string(src))
		if err != nil {
			log.WithField("path", display).WithError(err).Error("orchestrator: stat failed")
			rc.RecordFailed()
			continue
		}

		open := func() (io.ReadCloser, error) {
			opened, err := o.Provider.Open(src)
			if err != nil {
				return nil, err
			}
			return opened.Reader, nil
		}

		outcome := decision.Decide(idx, decision.Input{
			Source:      src,
			Destination: dest,
			Meta:        meta,
			Open:        open,
		})

		if err := o.applyOutcome(rc, outcome); err != nil {
			log.WithField("path", display).WithError(err).Error("orchestrator: applying decision outcome failed")
			rc.RecordFailed()
		}
	}
	return nil
}

// applyOutcome performs the filesystem mutation a decision.Outcome calls
// for and updates rc's counters.
func (o *Orchestrator) applyOutcome(rc *runctx.RunContext, outcome decision.Outcome) error {
	switch outcome.Kind {
	case decision.Linked:
		if err := fsops.MakeHardlink(outcome.LinkedFrom, outcome.Destination); err != nil {
			return err
		}
		size, _ := fileSize(outcome.LinkedFrom)
		rc.RecordLinked(size)
		return nil

	case decision.Copied:
		if outcome.Reason == decision.ReasonDirectory {
			if err := os.MkdirAll(string(outcome.Destination), 0755); err != nil {
				return err
			}
			return nil
		}
		n, err := fsops.CopyPreservingMetadata(outcome.Source, outcome.Destination)
		if err != nil {
			return err
		}
		rc.RecordCopied(n, outcome.Reason == decision.ReasonReadonly)
		return nil

	case decision.Skipped:
		rc.RecordSkippedPath()
		return nil

	case decision.Failed:
		rc.RecordFailed()
		return outcome.Err
	}
	return fmt.Errorf("orchestrator: unhandled outcome kind %v", outcome.Kind)
}

func fileSize(p respath.Absolute) (int64, error) {
	info, err := os.Stat(string(p))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
