// Package runsummary renders the end-of-run report spec.md §7 requires: a
// colored pass/fail line on top of the per-file warnings logrus already
// emitted, plus an optional machine-readable report for automation.
// Grounded on arthur-debert-dodot/pkg/style/status.go's StatusStyle
// (pterm.NewStyle(pterm.Bg..., pterm.Fg...)) -- the teacher itself has no
// color dependency, so this is enrichment from the rest of the example
// pack rather than the teacher's own code.
package runsummary

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/vmihailenco/msgpack"

	"github.com/stevegt/hashback/runctx"
)

var (
	okStyle   = pterm.NewStyle(pterm.FgGreen, pterm.Bold)
	failStyle = pterm.NewStyle(pterm.FgRed, pterm.Bold)
)

// Print writes the human-readable colored summary line and per-counter
// breakdown to w.
func Print(w io.Writer, rc *runctx.RunContext) {
	snap := rc.Snapshot()

	if snap.FilesFailed == 0 {
		fmt.Fprintln(w, okStyle.Sprint("SUCCESS"))
	} else {
		fmt.Fprintln(w, failStyle.Sprintf("FAILED (%d file(s) failed)", snap.FilesFailed))
	}

	fmt.Fprintf(w, "  linked:  %d files, %d bytes\n", snap.FilesLinked, snap.BytesLinked)
	fmt.Fprintf(w, "  copied:  %d files, %d bytes (%d read-only)\n", snap.FilesCopied, snap.BytesCopied, snap.FilesReadonly)
	fmt.Fprintf(w, "  failed:  %d files\n", snap.FilesFailed)
	fmt.Fprintf(w, "  skipped (path too long): %d files\n", snap.FilesSkippedPath)
	if snap.DroppedReferences > 0 {
		fmt.Fprintf(w, "  dropped index references: %d\n", snap.DroppedReferences)
	}
}

// Report is the machine-readable shape written alongside the human
// summary, msgpack-encoded -- the teacher's own serialization habit
// (vmihailenco/msgpack, present in its go.mod for account-record
// encoding) reused here for an actual wired purpose.
type Report struct {
	Success           bool  `msgpack:"success"`
	FilesLinked       int64 `msgpack:"files_linked"`
	FilesCopied       int64 `msgpack:"files_copied"`
	FilesFailed       int64 `msgpack:"files_failed"`
	FilesSkippedPath  int64 `msgpack:"files_skipped_path"`
	FilesReadonly     int64 `msgpack:"files_readonly"`
	BytesLinked       int64 `msgpack:"bytes_linked"`
	BytesCopied       int64 `msgpack:"bytes_copied"`
	DroppedReferences int   `msgpack:"dropped_references"`
}

// Encode msgpack-encodes rc's final counters.
func Encode(rc *runctx.RunContext) ([]byte, error) {
	snap := rc.Snapshot()
	report := Report{
		Success:           snap.FilesFailed == 0,
		FilesLinked:       snap.FilesLinked,
		FilesCopied:       snap.FilesCopied,
		FilesFailed:       snap.FilesFailed,
		FilesSkippedPath:  snap.FilesSkippedPath,
		FilesReadonly:     snap.FilesReadonly,
		BytesLinked:       snap.BytesLinked,
		BytesCopied:       snap.BytesCopied,
		DroppedReferences: snap.DroppedReferences,
	}
	return msgpack.Marshal(report)
}
