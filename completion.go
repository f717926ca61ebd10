package g3d

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/gogpu/g3d/internal/gpu"
	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned when submitting to a closed DecodePool.
var ErrPoolClosed = errors.New("g3d: decode pool closed")

// Completion is the result of asynchronous host work, applied on the
// render thread by Engine.Tick.
type Completion struct {
	Texture uint32
	Ticket  uint64
	Image   *image.RGBA
	Err     error
}

// CompletionQueue collects completions from worker goroutines. Drain
// returns them in the order they finished, not the order they were
// submitted.
type CompletionQueue struct {
	mu      sync.Mutex
	pending []Completion
}

// Push appends c. Safe for concurrent use.
func (q *CompletionQueue) Push(c Completion) {
	q.mu.Lock()
	q.pending = append(q.pending, c)
	q.mu.Unlock()
}

// Drain removes and returns every queued completion.
func (q *CompletionQueue) Drain() []Completion {
	q.mu.Lock()
	out := q.pending
	q.pending = nil
	q.mu.Unlock()
	return out
}

// Len returns the number of queued completions.
func (q *CompletionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// DecodePool decodes images on worker goroutines, at most workers at a
// time. Submit never blocks; results land in the queue.
type DecodePool struct {
	sem    *semaphore.Weighted
	queue  *CompletionQueue
	maxDim int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDecodePool creates a pool feeding queue. Images larger than maxDim
// on either side are scaled down.
func NewDecodePool(workers, maxDim int, queue *CompletionQueue) *DecodePool {
	ctx, cancel := context.WithCancel(context.Background())
	return &DecodePool{
		sem:    semaphore.NewWeighted(int64(max(workers, 1))),
		queue:  queue,
		maxDim: maxDim,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit decodes data for texture in the background. Work that has not
// started when Close is called is dropped.
func (p *DecodePool) Submit(texture uint32, ticket uint64, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)

		img, err := gpu.DecodeRGBA(data, p.maxDim)
		p.queue.Push(Completion{Texture: texture, Ticket: ticket, Image: img, Err: err})
	}()
	return nil
}

// Close drops queued work and waits for running decodes to finish.
func (p *DecodePool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
