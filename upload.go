package g3d

import (
	"fmt"
	"sync"
)

// UploadKind tags the contents of an uploaded buffer.
type UploadKind uint32

// Upload kinds. The numeric values are the host type tags.
const (
	UploadRaw     UploadKind = iota // opaque bytes, downloadable as-is
	UploadVertex                    // interleaved vertex data
	UploadIndex                     // uint16 or uint32 indices
	UploadTexture                   // tightly packed RGBA8 pixels
	UploadImage                     // encoded PNG or JPEG
	UploadBone                      // column-major mat4x4<f32> array
	numUploadKinds
)

// String returns the kind name.
func (k UploadKind) String() string {
	switch k {
	case UploadRaw:
		return "raw"
	case UploadVertex:
		return "vertex"
	case UploadIndex:
		return "index"
	case UploadTexture:
		return "texture"
	case UploadImage:
		return "image"
	case UploadBone:
		return "bone"
	default:
		return fmt.Sprintf("UploadKind(%d)", uint32(k))
	}
}

// ParseUploadKind decodes a host type tag.
func ParseUploadKind(tag uint32) (UploadKind, error) {
	if tag >= uint32(numUploadKinds) {
		return 0, fmt.Errorf("%w: tag %d", ErrInvalidUploadType, tag)
	}
	return UploadKind(tag), nil
}

// OwnedBuffer is a downloaded buffer. The caller owns it exclusively; the
// engine keeps no reference. Release drops the storage.
type OwnedBuffer struct {
	Kind UploadKind
	data []byte
}

// Bytes returns the contents, nil after Release.
func (b *OwnedBuffer) Bytes() []byte { return b.data }

// Len returns the length in bytes.
func (b *OwnedBuffer) Len() int { return len(b.data) }

// Release drops the storage. Safe to call more than once.
func (b *OwnedBuffer) Release() { b.data = nil }

type upload struct {
	kind UploadKind
	data []byte
}

// uploadStore holds host buffers until a command consumes them or the host
// downloads them. It is the one part of the engine hosts may touch from
// any thread.
type uploadStore struct {
	mu    sync.Mutex
	items map[uint64]upload
	bytes uint64
}

func newUploadStore() *uploadStore {
	return &uploadStore{items: make(map[uint64]upload)}
}

// put copies data under id.
func (s *uploadStore) put(id uint64, kind UploadKind, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; ok {
		return fmt.Errorf("%w: %d", ErrBufferIDCollision, id)
	}
	s.items[id] = upload{kind: kind, data: append([]byte(nil), data...)}
	s.bytes += uint64(len(data))
	return nil
}

// take removes and returns id.
func (s *uploadStore) take(id uint64) (upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.items[id]
	if !ok {
		return upload{}, fmt.Errorf("%w: %d", ErrBufferNotFound, id)
	}
	delete(s.items, id)
	s.bytes -= uint64(len(u.data))
	return u, nil
}

// takeKind removes and returns id if it holds one of kinds. A mismatch
// leaves the buffer in place.
func (s *uploadStore) takeKind(id uint64, kinds ...UploadKind) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBufferNotFound, id)
	}
	for _, k := range kinds {
		if u.kind == k {
			delete(s.items, id)
			s.bytes -= uint64(len(u.data))
			return u.data, nil
		}
	}
	return nil, fmt.Errorf("%w: buffer %d is %s, want %v", ErrInvalidUploadType, id, u.kind, kinds)
}

func (s *uploadStore) stats() (count int, bytes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), s.bytes
}

func (s *uploadStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.items)
	s.bytes = 0
}

// UploadBuffer copies data into the engine under id, tagged with the kind
// decoded from tag. A live id is rejected with ErrBufferIDCollision; an
// unknown tag with ErrInvalidUploadType. Uploads do not require Init and
// may come from any goroutine.
func (e *Engine) UploadBuffer(id uint64, tag uint32, data []byte) error {
	kind, err := ParseUploadKind(tag)
	if err != nil {
		return err
	}
	if e.State() == StateDisposed {
		return ErrNotInitialized
	}
	return e.uploads.put(id, kind, data)
}

// DownloadBuffer removes id and hands its storage to the caller. A buffer
// can be downloaded once; a missing id returns nil and ErrBufferNotFound.
func (e *Engine) DownloadBuffer(id uint64) (*OwnedBuffer, error) {
	if e.State() == StateDisposed {
		return nil, ErrNotInitialized
	}
	u, err := e.uploads.take(id)
	if err != nil {
		return nil, err
	}
	return &OwnedBuffer{Kind: u.kind, data: u.data}, nil
}
