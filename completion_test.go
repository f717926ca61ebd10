package g3d

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCompletionQueueDrain(t *testing.T) {
	var q CompletionQueue
	var wg sync.WaitGroup
	for i := uint32(1); i <= 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Push(Completion{Texture: i})
		}()
	}
	wg.Wait()

	if q.Len() != 16 {
		t.Fatalf("Len() = %d, want 16", q.Len())
	}
	seen := make(map[uint32]bool)
	for _, c := range q.Drain() {
		seen[c.Texture] = true
	}
	if len(seen) != 16 {
		t.Errorf("drained %d distinct textures, want 16", len(seen))
	}
	if got := q.Drain(); len(got) != 0 {
		t.Errorf("second Drain returned %d completions", len(got))
	}
}

func TestDecodePool(t *testing.T) {
	var q CompletionQueue
	p := NewDecodePool(2, 64, &q)

	if err := p.Submit(1, 10, pngBytes(t, 3, 2)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := p.Submit(2, 11, []byte("not an image")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	p.Close()

	got := map[uint32]Completion{}
	for _, c := range q.Drain() {
		got[c.Texture] = c
	}
	// Close may drop work that never started; whatever ran must be right.
	if c, ok := got[1]; ok {
		if c.Err != nil || c.Ticket != 10 || c.Image.Bounds().Dx() != 3 || c.Image.Bounds().Dy() != 2 {
			t.Errorf("texture 1 completion = %+v", c)
		}
	}
	if c, ok := got[2]; ok && c.Err == nil {
		t.Error("garbage input decoded without error")
	}

	if err := p.Submit(3, 12, nil); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit after Close = %v, want ErrPoolClosed", err)
	}
	p.Close()
}

func TestDecodePoolScalesLargeImages(t *testing.T) {
	var q CompletionQueue
	p := NewDecodePool(1, 16, &q)
	defer p.Close()

	if err := p.Submit(1, 1, pngBytes(t, 64, 32)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	var done []Completion
	for len(done) == 0 {
		time.Sleep(time.Millisecond)
		done = q.Drain()
	}
	c := done[0]
	if c.Err != nil {
		t.Fatalf("decode: %v", c.Err)
	}
	if b := c.Image.Bounds(); b.Dx() > 16 || b.Dy() > 16 {
		t.Errorf("decoded %dx%d, want at most 16 on either side", b.Dx(), b.Dy())
	}
}
