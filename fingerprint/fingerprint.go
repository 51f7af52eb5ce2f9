// Package fingerprint computes the stable per-file identity hashback uses
// to decide whether a source file can be hard-linked to something already
// in the repository.
//
// The composition is fixed by design: MD5 of content, folded 32-bit hashes
// of the two UTC timestamps, one bit for the Hidden attribute, all
// concatenated and re-hashed with MD5. Changing any of this invalidates
// every stored index and is a breaking, version-incrementing change.
package fingerprint

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

// Size is the number of bytes in a Fingerprint.
const Size = md5.Size

// Fingerprint is the 16-byte composite identity of a regular file.
type Fingerprint [Size]byte

// Meta is the subset of file metadata that feeds the fingerprint, supplied
// by the fsmeta package so this package stays free of platform concerns.
type Meta struct {
	LastWriteUTC time.Time
	CreatedUTC   time.Time
	Hidden       bool
}

// Compute reads r to EOF and folds its content hash together with meta into
// the final Fingerprint. r is consumed entirely; the caller is responsible
// for closing the underlying stream.
func Compute(r io.Reader, meta Meta) (fp Fingerprint, err error) {
	contentHash := md5.New()
	if _, err = io.Copy(contentHash, r); err != nil {
		return fp, fmt.Errorf("fingerprint: reading content: %w", err)
	}

	buf := make([]byte, 0, Size+4+4+1)
	buf = append(buf, contentHash.Sum(nil)...)
	buf = appendFoldedTicks(buf, meta.LastWriteUTC)
	buf = appendFoldedTicks(buf, meta.CreatedUTC)
	if meta.Hidden {
		buf = append(buf, 0x01)
	} else {
		buf = append(buf, 0x00)
	}

	fp = md5.Sum(buf)
	return fp, nil
}

// appendFoldedTicks appends the little-endian 32-bit fold of t's 64-bit
// tick count (100-nanosecond intervals since the .NET/Windows epoch, to
// match the source system's timestamp hashing) to buf.
func appendFoldedTicks(buf []byte, t time.Time) []byte {
	folded := foldTicks(t)
	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], folded)
	return append(buf, le[:]...)
}

// netEpoch is January 1, year 1, 00:00:00 UTC -- the epoch used by the
// 100-nanosecond "tick" timestamps this fingerprint scheme was modeled on.
var netEpoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// foldTicks converts t (UTC) to a 64-bit tick count and folds it to 32 bits
// by XORing the high and low halves, matching the source tool's hashing of
// last-write and creation timestamps.
func foldTicks(t time.Time) uint32 {
	u := t.UTC()
	ticks := uint64(u.Unix()-netEpoch.Unix())*10000000 + uint64(u.Nanosecond()/100)
	return uint32(ticks>>32) ^ uint32(ticks)
}

// String renders fp as the canonical uppercase, dash-separated hex form:
// 32 hex digits broken into 16 two-character groups, one per byte, joined
// by 15 dashes -- 47 ASCII characters total, the sidecar key format spec.md
// §6 mandates.
func (fp Fingerprint) String() string {
	hexStr := strings.ToUpper(hex.EncodeToString(fp[:]))
	var sb strings.Builder
	for i := 0; i < len(hexStr); i += 2 {
		if i > 0 {
			sb.WriteByte('-')
		}
		sb.WriteString(hexStr[i : i+2])
	}
	return sb.String()
}

// Parse reverses String, accepting the hex-dash form case-insensitively.
func Parse(s string) (fp Fingerprint, err error) {
	clean := strings.ReplaceAll(s, "-", "")
	if len(clean) != Size*2 {
		return fp, fmt.Errorf("fingerprint: malformed value %q", s)
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return fp, fmt.Errorf("fingerprint: malformed value %q: %w", s, err)
	}
	copy(fp[:], raw)
	return fp, nil
}

// Less gives Fingerprint a total order so it can be used as a stable sort
// or map-iteration key when determinism matters (e.g. verify-mode reports).
func (fp Fingerprint) Less(other Fingerprint) bool {
	for i := range fp {
		if fp[i] != other[i] {
			return fp[i] < other[i]
		}
	}
	return false
}
