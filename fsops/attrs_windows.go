//go:build windows

package fsops

import (
	"syscall"
	"time"

	"github.com/stevegt/hashback/respath"
)

func setCreationTime(dst respath.Absolute, created time.Time) error {
	pathp, err := syscall.UTF16PtrFromString(string(dst))
	if err != nil {
		return err
	}
	h, err := syscall.CreateFile(pathp, syscall.GENERIC_WRITE, 0, nil,
		syscall.OPEN_EXISTING, syscall.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return err
	}
	defer syscall.CloseHandle(h)

	ft := syscall.NsecToFiletime(created.UnixNano())
	return syscall.SetFileTime(h, &ft, nil, nil)
}

func setHidden(dst respath.Absolute, hidden bool) error {
	pathp, err := syscall.UTF16PtrFromString(string(dst))
	if err != nil {
		return err
	}
	attrs, err := syscall.GetFileAttributes(pathp)
	if err != nil {
		return err
	}
	if hidden {
		attrs |= syscall.FILE_ATTRIBUTE_HIDDEN
	} else {
		attrs &^= syscall.FILE_ATTRIBUTE_HIDDEN
	}
	return syscall.SetFileAttributes(pathp, attrs)
}
