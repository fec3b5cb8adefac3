//go:build !windows

package main

import (
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// ensureReadable reports an error when POSIX permission bits would deny the
// effective user read access to path, so unreadable inputs surface as a
// clean open error before any WAV decoding starts.
func ensureReadable(path string, info fs.FileInfo) error {
	if info == nil {
		var err error
		info, err = os.Stat(path)
		if err != nil {
			return err
		}
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}

	var bit fs.FileMode
	switch {
	case int(stat.Uid) == os.Geteuid():
		bit = 0400
	case inEffectiveGroups(int(stat.Gid)):
		bit = 0040
	default:
		bit = 0004
	}

	if info.Mode().Perm()&bit == 0 {
		return fmt.Errorf("%s is not readable by the current user (mode %v)", path, info.Mode().Perm())
	}
	return nil
}

func inEffectiveGroups(gid int) bool {
	if gid == os.Getegid() {
		return true
	}
	groups, err := syscall.Getgroups()
	if err != nil {
		return false
	}
	for _, g := range groups {
		if int(g) == gid {
			return true
		}
	}
	return false
}
