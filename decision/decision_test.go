package decision

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stevegt/hashback/fingerprint"
	"github.com/stevegt/hashback/fsmeta"
	"github.com/stevegt/hashback/index"
	"github.com/stevegt/hashback/respath"
)

// fakeView is a deterministic fsmeta.View test double, so these tests don't
// depend on the filesystem's actual ctime granularity.
type fakeView struct {
	lastWrite time.Time
	created   time.Time
	accessed  time.Time
	hidden    bool
	readonly  bool
	isDir     bool
	size      int64
}

func (v fakeView) LastWriteUTC() time.Time { return v.lastWrite }
func (v fakeView) CreatedUTC() time.Time   { return v.created }
func (v fakeView) AccessedUTC() time.Time  { return v.accessed }
func (v fakeView) Hidden() bool            { return v.hidden }
func (v fakeView) ReadOnly() bool          { return v.readonly }
func (v fakeView) IsDir() bool             { return v.isDir }
func (v fakeView) Size() int64             { return v.size }

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func defaultMeta() fsmeta.View {
	return fakeView{lastWrite: baseTime, created: baseTime, size: 11}
}

func openString(s string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(s)), nil
	}
}

func writeTemp(t *testing.T, content string) respath.Absolute {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "decision-*.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	return respath.MustAbsolute(f.Name())
}

func TestDecideDirectory(t *testing.T) {
	idx := index.New()
	out := Decide(idx, Input{Meta: fakeView{isDir: true}})
	if out.Kind != Copied || out.Reason != ReasonDirectory {
		t.Fatalf("expected Copied/directory, got %v/%v", out.Kind, out.Reason)
	}
}

func TestDecideReadonly(t *testing.T) {
	idx := index.New()
	out := Decide(idx, Input{Meta: fakeView{readonly: true}})
	if out.Kind != Copied || out.Reason != ReasonReadonly {
		t.Fatalf("expected Copied/readonly, got %v/%v", out.Kind, out.Reason)
	}
}

func TestDecideNewHashInsertsIntoIndex(t *testing.T) {
	idx := index.New()
	dest := respath.MustAbsolute(filepath.Join(t.TempDir(), "dest.txt"))
	out := Decide(idx, Input{
		Destination: dest,
		Meta:        defaultMeta(),
		Open:        openString("some content"),
	})
	if out.Kind != Copied || out.Reason != ReasonNewHash {
		t.Fatalf("expected Copied/new-hash, got %v/%v", out.Kind, out.Reason)
	}
	if got, ok := idx.Lookup(out.Fingerprint); !ok || got != dest {
		t.Fatalf("expected index to hold %s for the new fingerprint, got %s (ok=%v)", dest, got, ok)
	}
}

func TestDecideLinksByteIdenticalCandidate(t *testing.T) {
	idx := index.New()
	candidate := writeTemp(t, "same bytes")
	source := writeTemp(t, "same bytes")
	// the source carries the candidate's own on-disk metadata, so the
	// attribute check sees identical attributes
	candMeta, err := fsmeta.Stat(string(candidate))
	if err != nil {
		t.Fatal(err)
	}

	first := Decide(idx, Input{
		Destination: candidate,
		Meta:        candMeta,
		Open:        openString("same bytes"),
	})
	if first.Kind != Copied {
		t.Fatalf("expected first occurrence to be Copied, got %v", first.Kind)
	}

	second := Decide(idx, Input{
		Source: source,
		Meta:   candMeta,
		Open:   openString("same bytes"),
	})
	if second.Kind != Linked {
		t.Fatalf("expected second occurrence to be Linked, got %v (%v)", second.Kind, second.Reason)
	}
	if second.LinkedFrom != candidate {
		t.Fatalf("expected LinkedFrom=%s, got %s", candidate, second.LinkedFrom)
	}
}

func TestDecideAttributeMismatchCopiesInsteadOfLinking(t *testing.T) {
	idx := index.New()
	candidate := writeTemp(t, "same bytes")
	source := writeTemp(t, "same bytes")

	first := Decide(idx, Input{
		Destination: candidate,
		Meta:        defaultMeta(),
		Open:        openString("same bytes"),
	})
	if first.Kind != Copied {
		t.Fatalf("expected first occurrence to be Copied, got %v", first.Kind)
	}

	// same fingerprint as the first call, but the candidate on disk now has
	// a different last-write time than the source's metadata
	later := baseTime.Add(time.Hour)
	if err := os.Chtimes(string(candidate), later, later); err != nil {
		t.Fatal(err)
	}
	second := Decide(idx, Input{
		Source: source,
		Meta:   defaultMeta(),
		Open:   openString("same bytes"),
	})
	if second.Kind != Copied || second.Reason != ReasonAttributeMismatch {
		t.Fatalf("expected Copied/attribute-mismatch, got %v/%v", second.Kind, second.Reason)
	}
}

func TestDecideBinaryMismatchOnFingerprintCollision(t *testing.T) {
	idx := index.New()
	candidate := writeTemp(t, "candidate content")
	source := writeTemp(t, "different content, same simulated fingerprint")
	candMeta, err := fsmeta.Stat(string(candidate))
	if err != nil {
		t.Fatal(err)
	}

	collidingFP := Decide(index.New(), Input{
		Destination: candidate,
		Meta:        candMeta,
		Open:        openString("candidate content"),
	}).Fingerprint
	idx.InsertCurrent(collidingFP, candidate)

	// force Decide to compute the same fingerprint value as the candidate's,
	// simulating an MD5 collision, by feeding it the candidate's exact
	// content and metadata while pointing Source at a file with different
	// on-disk bytes -- byte_equal is what must catch this, not the hash.
	out := Decide(idx, Input{
		Source: source,
		Meta:   candMeta,
		Open:   openString("candidate content"),
	})
	if out.Kind != Copied || out.Reason != ReasonBinaryMismatch {
		t.Fatalf("expected Copied/binary-mismatch, got %v/%v", out.Kind, out.Reason)
	}
}

func TestDecideHashRefersMissingFile(t *testing.T) {
	idx := index.New()
	sidecarDir := respath.MustAbsolute(t.TempDir())

	content := "orphaned content"
	fp, err := fingerprint.Compute(strings.NewReader(content), fsmeta.ToFingerprintMeta(defaultMeta()))
	if err != nil {
		t.Fatal(err)
	}
	// the stale reference comes from an earlier snapshot's sidecar, naming
	// a file that no longer exists
	stale := &index.StoredIndex{Entries: map[fingerprint.Fingerprint]respath.Relative{fp: "gone.txt"}}
	if err := stale.Save(sidecarDir.Join("ps-backup-hashtable.xml")); err != nil {
		t.Fatal(err)
	}
	if err := idx.MergeFrom(sidecarDir, "ps-backup-hashtable.xml", false); err != nil {
		t.Fatal(err)
	}

	dest := respath.MustAbsolute(filepath.Join(t.TempDir(), "dest.txt"))
	out := Decide(idx, Input{
		Destination: dest,
		Meta:        defaultMeta(),
		Open:        openString(content),
	})
	if out.Kind != Copied || out.Reason != ReasonHashRefersMissingFile {
		t.Fatalf("expected Copied/new-hash (missing-reference path), got %v/%v", out.Kind, out.Reason)
	}
	if got, ok := idx.Lookup(fp); !ok || got != dest {
		t.Fatalf("expected index to now point the fingerprint at %s, got %s (ok=%v)", dest, got, ok)
	}
}

func TestDecideIOErrorOnOpenFailure(t *testing.T) {
	idx := index.New()
	out := Decide(idx, Input{
		Meta: defaultMeta(),
		Open: func() (io.ReadCloser, error) { return nil, errors.New("boom") },
	})
	if out.Kind != Failed || out.Reason != ReasonIOError {
		t.Fatalf("expected Failed/io-error, got %v/%v", out.Kind, out.Reason)
	}
}
