//go:build windows

package pathresolver

import (
	"fmt"
	"strings"

	"github.com/stevegt/hashback/respath"
)

// maxAPIPathLength is MAX_PATH; paths at or beyond this length need the
// extended-length prefix to reach most Win32 file APIs.
const maxAPIPathLength = 260

// ExtendedLengthPrefix shortens paths by rewriting them with the
// \\?\-style extended-length prefix instead of creating any on-disk
// indirection (junction, 8.3 alias, etc). Idempotent: re-applying the
// prefix to an already-prefixed path is a no-op, and because it mutates no
// filesystem state, ReleaseAll has nothing to release.
type ExtendedLengthPrefix struct{}

// NewExtendedLengthPrefix returns a Resolver appropriate for Windows.
func NewExtendedLengthPrefix() Resolver { return ExtendedLengthPrefix{} }

func (ExtendedLengthPrefix) Shorten(p respath.Absolute) (respath.Absolute, error) {
	s := string(p)
	if strings.HasPrefix(s, `\\?\`) {
		return p, nil
	}
	if len(s) < maxAPIPathLength {
		return p, nil
	}
	if strings.HasPrefix(s, `\\`) {
		return respath.Absolute(`\\?\UNC\` + s[2:]), nil
	}
	if len(s) < 2 || s[1] != ':' {
		return "", fmt.Errorf("pathresolver: cannot shorten non-drive path %s", s)
	}
	return respath.Absolute(`\\?\` + s), nil
}

func (ExtendedLengthPrefix) ReleaseAll() error { return nil }
