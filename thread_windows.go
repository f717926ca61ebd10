//go:build windows

package g3d

import "golang.org/x/sys/windows"

// currentThreadID returns the calling OS thread's id.
func currentThreadID() uint64 { return uint64(windows.GetCurrentThreadId()) }
