package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stevegt/hashback/respath"
)

func tempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newOrchestrator(day string) *Orchestrator {
	o := New()
	o.Now = func() time.Time {
		d, _ := time.Parse(dateDirFormat, day)
		return d
	}
	return o
}

// TestBackupThenBackupAgainLinks runs Backup twice against an unchanged
// source tree on two different days: the first run must copy every file
// (nothing in the index yet), and the second must link every file back to
// the first day's snapshot, since the source files are byte- and
// attribute-identical across both runs.
func TestBackupThenBackupAgainLinks(t *testing.T) {
	source := tempDir(t)
	backupRoot := tempDir(t)
	writeFile(t, filepath.Join(source, "a.txt"), "hello world")
	writeFile(t, filepath.Join(source, "sub", "b.txt"), "nested content")

	day1 := newOrchestrator("2026-01-01")
	rc1, err := day1.Run(Backup{SourcePath: source, BackupRoot: backupRoot})
	if err != nil {
		t.Fatalf("day1 backup: %v", err)
	}
	if rc1.FilesCopied == 0 {
		t.Fatalf("expected day1 to copy files, got %d copied", rc1.FilesCopied)
	}
	if rc1.FilesLinked != 0 {
		t.Fatalf("expected day1 to link nothing, got %d linked", rc1.FilesLinked)
	}

	day2 := newOrchestrator("2026-01-02")
	rc2, err := day2.Run(Backup{SourcePath: source, BackupRoot: backupRoot})
	if err != nil {
		t.Fatalf("day2 backup: %v", err)
	}
	if rc2.FilesLinked == 0 {
		t.Fatalf("expected day2 to link back to day1, got %d linked", rc2.FilesLinked)
	}
	if rc2.FilesFailed != 0 {
		t.Fatalf("expected day2 to fail nothing, got %d failed", rc2.FilesFailed)
	}

	day1Copy := filepath.Join(backupRoot, "2026-01-01", filepath.Base(source), "a.txt")
	day2Copy := filepath.Join(backupRoot, "2026-01-02", filepath.Base(source), "a.txt")
	info1, err := os.Stat(day1Copy)
	if err != nil {
		t.Fatalf("day1 copy missing: %v", err)
	}
	info2, err := os.Stat(day2Copy)
	if err != nil {
		t.Fatalf("day2 copy missing: %v", err)
	}
	if !os.SameFile(info1, info2) {
		t.Fatal("expected day2's copy to be hard-linked to day1's")
	}
}

// TestBackupRefusesExistingSnapshotWithoutDelete confirms spec.md §6's
// precondition: backing up twice on the same day without --delete fails
// with SnapshotExistsError, and succeeds when DeleteExistingBackup is set.
func TestBackupRefusesExistingSnapshotWithoutDelete(t *testing.T) {
	source := tempDir(t)
	backupRoot := tempDir(t)
	writeFile(t, filepath.Join(source, "a.txt"), "hello")

	o := newOrchestrator("2026-02-01")
	if _, err := o.Run(Backup{SourcePath: source, BackupRoot: backupRoot}); err != nil {
		t.Fatalf("first backup: %v", err)
	}

	_, err := o.Run(Backup{SourcePath: source, BackupRoot: backupRoot})
	if err == nil {
		t.Fatal("expected second same-day backup without --delete to fail")
	}
	if _, ok := err.(*SnapshotExistsError); !ok {
		t.Fatalf("expected *SnapshotExistsError, got %T: %v", err, err)
	}

	if _, err := o.Run(Backup{SourcePath: source, BackupRoot: backupRoot, DeleteExistingBackup: true}); err != nil {
		t.Fatalf("backup with --delete: %v", err)
	}
}

// TestRehardlinkRunsCleanlyAndExportsIndex runs MakeIndex then Rehardlink
// over a directory with a genuine duplicate already expressed as a hard
// link (guaranteeing identical inode metadata regardless of the host
// filesystem's ctime granularity) and confirms both modes succeed and leave
// a sidecar behind. decision_test.go covers the link-vs-copy branching
// itself with deterministic fake metadata.
func TestRehardlinkRunsCleanlyAndExportsIndex(t *testing.T) {
	dir := tempDir(t)
	writeFile(t, filepath.Join(dir, "a.txt"), "duplicate me")
	if err := os.Link(filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")); err != nil {
		t.Fatal(err)
	}

	o := New()
	if _, err := o.Run(MakeIndex{Directory: dir}); err != nil {
		t.Fatalf("makeindex: %v", err)
	}
	if _, err := o.Run(Rehardlink{Directory: dir}); err != nil {
		t.Fatalf("rehardlink: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, DefaultSidecarName)); err != nil {
		t.Fatalf("expected sidecar to be exported: %v", err)
	}
}

// TestVerifyDetectsDivergence confirms that mutating a file after a backup
// makes Verify report it as divergent rather than correct.
func TestVerifyDetectsDivergence(t *testing.T) {
	source := tempDir(t)
	backupRoot := tempDir(t)
	writeFile(t, filepath.Join(source, "a.txt"), "original content")

	o := newOrchestrator("2026-03-01")
	if _, err := o.Run(Backup{SourcePath: source, BackupRoot: backupRoot}); err != nil {
		t.Fatalf("backup: %v", err)
	}

	snapshotFile := filepath.Join(backupRoot, "2026-03-01", filepath.Base(source), "a.txt")
	if err := os.WriteFile(snapshotFile, []byte("tampered content"), 0644); err != nil {
		t.Fatal(err)
	}

	rc, err := o.Run(Verify{Directory: backupRoot})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if rc.Success() {
		t.Fatal("expected verify to report failure after tampering with a snapshot file")
	}
	if o.LastVerifyReport == nil || len(o.LastVerifyReport.Divergent()) != 1 {
		t.Fatalf("expected exactly one divergent entry, got %+v", o.LastVerifyReport)
	}
	if len(o.LastVerifyReport.Missing()) != 0 {
		t.Fatalf("expected zero missing entries, got %+v", o.LastVerifyReport.Missing())
	}
}

func mustModTime(t *testing.T, p respath.Absolute) time.Time {
	t.Helper()
	info, err := os.Stat(string(p))
	if err != nil {
		t.Fatal(err)
	}
	return info.ModTime()
}
