// Package orchestrator drives one of the four modes end-to-end (spec.md
// §4.6), replacing the source tool's dynamic parameter-set dispatch with
// the tagged-variant Mode type spec.md §9 calls for.
package orchestrator

// Mode is implemented by exactly one of Backup, MakeIndex, Rehardlink, or
// Verify. Only one mode is active per invocation (spec.md §6).
type Mode interface {
	isMode()
}

// Backup composes a source stream from inclusion patterns, excludes per
// exclusion patterns, and writes a new dated snapshot under BackupRoot.
type Backup struct {
	SourcePath           string // pattern file, or a directory (interpreted as dir/*)
	BackupRoot           string
	ExclusionFile        string // optional
	DeleteExistingBackup bool
	NotShadowed          bool
	LinkToDirectory      string   // optional: MakeIndex sub-run merged in first
	LinkToHashtables     []string // optional: directories whose sidecars are imported
}

func (Backup) isMode() {}

// MakeIndex fingerprints every file under Directory and exports the result
// to Directory's root.
type MakeIndex struct {
	Directory   string
	NotShadowed bool
}

func (MakeIndex) isMode() {}

// Rehardlink rewrites Directory in place, replacing byte-identical files
// with hard links to one canonical instance.
type Rehardlink struct {
	Directory        string
	LinkToHashtables []string
}

func (Rehardlink) isMode() {}

// Verify recomputes fingerprints for every entry of every sidecar found
// under Directory and reports divergence.
type Verify struct {
	Directory string
}

func (Verify) isMode() {}
