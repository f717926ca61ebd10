//go:build !linux && !windows

package g3d

// currentThreadID returns 0: the platform exposes no portable thread id,
// so the render-thread guard accepts every caller.
func currentThreadID() uint64 { return 0 }
