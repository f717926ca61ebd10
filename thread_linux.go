//go:build linux

package g3d

import "golang.org/x/sys/unix"

// currentThreadID returns the calling OS thread's id.
func currentThreadID() uint64 { return uint64(unix.Gettid()) }
