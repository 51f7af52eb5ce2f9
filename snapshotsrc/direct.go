package snapshotsrc

import (
	"os"

	"github.com/stevegt/hashback/fsmeta"
	"github.com/stevegt/hashback/respath"
)

// Direct is the trivial Provider: it opens files on the live filesystem
// and translates every physical path to itself. It must be interchangeable
// with a snapshot-backed provider, per spec.md §4.3, and is what hashback
// uses when NotShadowed is set or no shadow-copy facility is available.
type Direct struct{}

// New returns a live-filesystem Provider.
func New() Provider { return Direct{} }

func (Direct) Open(sourcePath respath.Absolute) (Handle, error) {
	f, err := os.Open(string(sourcePath))
	if err != nil {
		return Handle{}, err
	}
	meta, err := fsmeta.Stat(string(sourcePath))
	if err != nil {
		f.Close()
		return Handle{}, err
	}
	return Handle{Reader: f, Meta: meta, DisplayPath: sourcePath}, nil
}

func (Direct) Translate(physicalPath respath.Absolute) respath.Absolute {
	return physicalPath
}

func (Direct) Release() error { return nil }
