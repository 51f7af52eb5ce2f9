// Package fsops implements the native filesystem primitives spec.md §9
// calls for in place of the source tool's shell-outs: make_hardlink,
// byte_equal, and list_recursive, plus the metadata-preserving copy and
// the bounded-retry rehardlink swap spec.md §4.5 describes.
package fsops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hlubek/readercomp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"

	"github.com/stevegt/hashback/fsmeta"
	"github.com/stevegt/hashback/respath"
)

// ByteEqual performs the mandatory binary re-check of spec.md §4.5 step 7:
// a byte-by-byte comparison of two files' content. This is the guarantee
// that an MD5 collision in the Fingerprint never causes data corruption.
func ByteEqual(a, b respath.Absolute) (bool, error) {
	equal, err := readercomp.FilesEqual(string(a), string(b))
	if err != nil {
		return false, errors.Wrapf(err, "fsops: comparing %s and %s", a, b)
	}
	return equal, nil
}

// MakeHardlink creates dst's parent directory if needed, then creates dst
// as a new directory entry referencing src's inode. The core never calls
// this before the candidate has been proven byte-identical
// (spec.md §4.5 "Link semantics").
func MakeHardlink(src, dst respath.Absolute) error {
	if err := os.MkdirAll(string(dst.Dir()), 0755); err != nil {
		return errors.Wrapf(err, "fsops: creating parent of %s", dst)
	}
	if err := os.Link(string(src), string(dst)); err != nil {
		return errors.Wrapf(err, "fsops: linking %s to %s", dst, src)
	}
	return nil
}

// ListRecursive walks root and returns every entry found (files,
// directories, and other entries such as symlinks, which are not
// descended into), in lexicographic depth-first order -- the order spec.md §9
// mandates for reproducible merge-walk and source-enumeration behavior.
func ListRecursive(root respath.Absolute) (paths []respath.Absolute, err error) {
	defer Return(&err)

	var walk func(dir string) []string
	walk = func(dir string) []string {
		entries, err := os.ReadDir(dir)
		Ck(err)
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		sort.Strings(names)

		var out []string
		for _, name := range names {
			full := filepath.Join(dir, name)
			out = append(out, full)
			info, err := os.Lstat(full)
			Ck(err)
			if info.IsDir() {
				out = append(out, walk(full)...)
			}
		}
		return out
	}

	for _, p := range walk(string(root)) {
		paths = append(paths, respath.Absolute(p))
	}
	return paths, nil
}

// CopyPreservingMetadata copies src to dst, then reproduces last-write
// time, creation time (where the platform supports setting it), the
// read-only attribute, and the Hidden attribute, in the order spec.md
// §4.5 mandates: clear read-only (if set), set timestamps, restore
// read-only.
func CopyPreservingMetadata(src, dst respath.Absolute) (bytesCopied int64, err error) {
	defer Return(&err)

	srcMeta, err := fsmeta.Stat(string(src))
	Ck(err)

	if err := os.MkdirAll(string(dst.Dir()), 0755); err != nil {
		return 0, errors.Wrapf(err, "fsops: creating parent of %s", dst)
	}

	in, err := os.Open(string(src))
	Ck(err)
	defer in.Close()

	out, err := os.OpenFile(string(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	Ck(err)
	bytesCopied, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	Ck(err)

	if err := fixupMetadata(dst, srcMeta); err != nil {
		return bytesCopied, err
	}
	return bytesCopied, nil
}

func fixupMetadata(dst respath.Absolute, srcMeta fsmeta.View) error {
	wasReadOnly := srcMeta.ReadOnly()
	if wasReadOnly {
		if err := os.Chmod(string(dst), 0644); err != nil {
			return errors.Wrapf(err, "fsops: clearing read-only on %s before timestamp fixup", dst)
		}
	}

	if err := os.Chtimes(string(dst), srcMeta.AccessedUTC(), srcMeta.LastWriteUTC()); err != nil {
		return errors.Wrapf(err, "fsops: setting timestamps on %s", dst)
	}
	if err := setCreationTime(dst, srcMeta.CreatedUTC()); err != nil {
		log.WithField("path", dst).WithError(err).Warn("fsops: could not set creation time, continuing")
	}
	if err := setHidden(dst, srcMeta.Hidden()); err != nil {
		log.WithField("path", dst).WithError(err).Warn("fsops: could not set hidden attribute, continuing")
	}

	if wasReadOnly {
		if err := os.Chmod(string(dst), 0444); err != nil {
			return errors.Wrapf(err, "fsops: restoring read-only on %s", dst)
		}
	}
	return nil
}

// RetryRehardlink deletes the file at path and creates a hard link there
// pointing at candidate's inode, retrying on transient filesystem races
// (spec.md §4.5 "Rehardlink variant"). The retry budget mirrors the
// tolerances observed in the source tool: up to maxRetries attempts with
// delay between them, escalating to a fatal error afterward.
func RetryRehardlink(path, candidate respath.Absolute, maxRetries int, delay time.Duration) (err error) {
	if maxRetries <= 0 {
		maxRetries = 100
	}
	if delay <= 0 {
		delay = 60 * time.Second
	}

	if os.SameFile(mustStat(string(path)), mustStat(string(candidate))) {
		return fmt.Errorf("fsops: refusing to rehardlink %s to itself", path)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		lastErr = rehardlinkOnce(path, candidate)
		if lastErr == nil {
			return nil
		}
		if attempt+1 == maxRetries {
			break
		}
		log.WithFields(log.Fields{
			"path":    path,
			"attempt": attempt + 1,
		}).WithError(lastErr).Warn("fsops: rehardlink attempt failed, retrying")
		time.Sleep(delay)
	}
	return errors.Wrapf(lastErr, "fsops: rehardlink %s -> %s exhausted %d retries", path, candidate, maxRetries)
}

func rehardlinkOnce(path, candidate respath.Absolute) error {
	tmp := respath.Absolute(string(path) + ".hashback-tmp")
	if err := os.Remove(string(tmp)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Rename(string(path), string(tmp)); err != nil {
		return err
	}
	if err := os.Link(string(candidate), string(path)); err != nil {
		// best effort restore so we don't lose the file on a failed swap
		_ = os.Rename(string(tmp), string(path))
		return err
	}
	return os.Remove(string(tmp))
}

func mustStat(path string) os.FileInfo {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return info
}
