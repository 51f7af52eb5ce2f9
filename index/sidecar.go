package index

import (
	"fmt"
	"os"

	"github.com/beevik/etree"
	"github.com/google/renameio"
	"github.com/pkg/errors"

	"github.com/stevegt/hashback/fingerprint"
	"github.com/stevegt/hashback/respath"
)

// StoredIndex is the on-disk form of a run's contribution to the Index: a
// Fingerprint -> RelativePath mapping, relative to the directory
// containing the sidecar itself (spec.md §3).
type StoredIndex struct {
	Entries map[fingerprint.Fingerprint]respath.Relative
}

const (
	rootTag     = "hashtable"
	entryTag    = "entry"
	fpAttr      = "fingerprint"
	pathTag     = "path"
	formatAttr  = "format"
	formatValue = "1"
)

// Load parses the sidecar at path into a StoredIndex. The encoding is an
// etree-built XML document: <hashtable><entry fingerprint="..."><path>...
// </path></entry>...</hashtable>, the literal reading of spec.md §6's
// example sidecar name ps-backup-hashtable.xml.
func Load(path respath.Absolute) (*StoredIndex, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(string(path)); err != nil {
		return nil, errors.Wrapf(err, "index: reading sidecar %s", path)
	}
	root := doc.SelectElement(rootTag)
	if root == nil {
		return nil, fmt.Errorf("index: %s is not a hashtable sidecar", path)
	}

	stored := &StoredIndex{Entries: make(map[fingerprint.Fingerprint]respath.Relative)}
	for _, entry := range root.SelectElements(entryTag) {
		fpStr := entry.SelectAttrValue(fpAttr, "")
		fp, err := fingerprint.Parse(fpStr)
		if err != nil {
			return nil, errors.Wrapf(err, "index: malformed entry in %s", path)
		}
		pathElem := entry.SelectElement(pathTag)
		if pathElem == nil {
			return nil, fmt.Errorf("index: entry %s in %s has no path", fpStr, path)
		}
		stored.Entries[fp] = respath.RelativeFromSeparatorLeading(pathElem.Text())
	}
	return stored, nil
}

// Save writes stored to path as an XML sidecar, atomically (via
// renameio.WriteFile, the same atomic-durable-write idiom the teacher uses
// for its own symlink writes in db/tree.go). The write is flushed before
// Save returns, satisfying spec.md §5's "exported sidecar writes must be
// flushed before the orchestrator returns success".
func (s *StoredIndex) Save(path respath.Absolute) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(rootTag)
	root.CreateAttr(formatAttr, formatValue)

	for fp, rel := range s.Entries {
		entry := root.CreateElement(entryTag)
		entry.CreateAttr(fpAttr, fp.String())
		entry.CreateElement(pathTag).SetText(rel.WithSeparatorLeading())
	}
	doc.Indent(2)

	buf, err := doc.WriteToBytes()
	if err != nil {
		return errors.Wrapf(err, "index: encoding sidecar %s", path)
	}
	if err := renameio.WriteFile(string(path), buf, 0644); err != nil {
		return errors.Wrapf(err, "index: writing sidecar %s", path)
	}
	return nil
}

// Export writes the this-run-only entries of idx to
// {sidecarDir}/{sidecarName}, converting each AbsolutePath to a path
// relative to sidecarDir (spec.md §4.4).
func (idx *Index) Export(sidecarDir respath.Absolute, sidecarName string) error {
	stored := &StoredIndex{Entries: make(map[fingerprint.Fingerprint]respath.Relative, len(idx.thisRun))}
	for fp, abs := range idx.thisRun {
		rel, err := abs.RelativeTo(sidecarDir)
		if err != nil {
			return errors.Wrapf(err, "index: exporting entry %s", fp.String())
		}
		stored.Entries[fp] = rel
	}
	return stored.Save(sidecarDir.Join(sidecarName))
}

func pathExists(p respath.Absolute) bool {
	_, err := os.Stat(string(p))
	return err == nil
}
