package g3d

import (
	"errors"
	"fmt"

	"github.com/gogpu/g3d/internal/registry"
)

// Engine errors. Every entry point reports contract violations through
// these; none of them panics.
var (
	// ErrNotInitialized is returned by commands before Init or after Dispose.
	ErrNotInitialized = errors.New("g3d: engine not initialized")

	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("g3d: engine already initialized")

	// ErrWrongThread is returned when a render-thread entry point is called
	// from another OS thread while the thread check is enabled.
	ErrWrongThread = errors.New("g3d: called from a thread other than the render thread")

	// ErrInvalidUploadType is returned for an unknown upload tag or an
	// upload of the wrong kind for the command consuming it.
	ErrInvalidUploadType = errors.New("g3d: invalid upload type")

	// ErrBufferIDCollision is returned when uploading under a live id.
	ErrBufferIDCollision = errors.New("g3d: buffer id already in use")

	// ErrBufferNotFound is returned when downloading or consuming an
	// unknown buffer id.
	ErrBufferNotFound = errors.New("g3d: buffer not found")

	// ErrInvalidArgument is returned for malformed command payloads.
	ErrInvalidArgument = errors.New("g3d: invalid argument")

	// ErrNotFound is returned by update and dispose on an unknown id.
	ErrNotFound = registry.ErrNotFound

	// ErrIDCollision is returned by create under a live id.
	ErrIDCollision = registry.ErrIDCollision
)

// Result is the host-facing outcome code of an engine call.
type Result int32

// Result codes. Values are stable across releases.
const (
	Success Result = iota
	NotInitialized
	AlreadyInitialized
	WrongThread
	InvalidUploadType
	BufferIDCollision
	BufferNotFound
	NotFound
	IDCollision
	InvalidArgument
	UnknownError Result = 99
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case NotInitialized:
		return "NotInitialized"
	case AlreadyInitialized:
		return "AlreadyInitialized"
	case WrongThread:
		return "WrongThread"
	case InvalidUploadType:
		return "InvalidUploadType"
	case BufferIDCollision:
		return "BufferIDCollision"
	case BufferNotFound:
		return "BufferNotFound"
	case NotFound:
		return "NotFound"
	case IDCollision:
		return "IDCollision"
	case InvalidArgument:
		return "InvalidArgument"
	case UnknownError:
		return "UnknownError"
	default:
		return fmt.Sprintf("Result(%d)", int32(r))
	}
}

var resultErrors = []struct {
	err    error
	result Result
}{
	{ErrNotInitialized, NotInitialized},
	{ErrAlreadyInitialized, AlreadyInitialized},
	{ErrWrongThread, WrongThread},
	{ErrInvalidUploadType, InvalidUploadType},
	{ErrBufferIDCollision, BufferIDCollision},
	{ErrBufferNotFound, BufferNotFound},
	{ErrNotFound, NotFound},
	{ErrIDCollision, IDCollision},
	{ErrInvalidArgument, InvalidArgument},
}

// ResultOf maps err to its result code. nil is Success; errors outside the
// taxonomy are UnknownError.
func ResultOf(err error) Result {
	if err == nil {
		return Success
	}
	for _, re := range resultErrors {
		if errors.Is(err, re.err) {
			return re.result
		}
	}
	return UnknownError
}
