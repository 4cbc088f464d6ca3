// Package queue hands frames from a background decode loop to a consumer.
//
// A Queue is a bounded FIFO mailbox closed by exactly one end-of-stream sentinel.
// Start runs a stream.Controller on its own goroutine and feeds a Queue; ForEach
// drives a controller synchronously through a per-frame callback.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/user/viteo/pkg/frame"
	"github.com/user/viteo/pkg/framepool"
)

// ErrClosed is returned by Push after Finish or Close.
var ErrClosed = errors.New("queue: closed")

// Item is one queue entry: a frame, or the end-of-stream sentinel when End is set.
type Item struct {
	Frame frame.Frame
	// Buffer is the pool slot holding Frame.Data, or nil when the frame owns its memory.
	Buffer *framepool.Buffer
	End    bool
}

// Release returns the item's pool buffer, if any. Frame.Data must not be used afterwards.
func (it Item) Release() {
	if it.Buffer != nil {
		it.Buffer.Release()
	}
}

// Queue is a FIFO of frames for one producer and one consumer.
// A capacity of 0 means unbounded.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []Item
	capacity int
	finished bool // sentinel enqueued
	closed   bool // consumer gone
}

// New creates a queue holding at most capacity frames.
func New(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	q := &Queue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// wake broadcasts on the condition when ctx is done, so waiters can observe it.
func (q *Queue) wake(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
}

// Push appends a frame, blocking while the queue is full.
func (q *Queue) Push(ctx context.Context, it Item) error {
	stop := q.wake(ctx)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.closed && !q.finished && q.capacity > 0 && len(q.items) >= q.capacity {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.cond.Wait()
	}
	if q.closed || q.finished {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	it.End = false
	q.items = append(q.items, it)
	q.cond.Broadcast()
	return nil
}

// Finish enqueues the end-of-stream sentinel. It never blocks, even on a full
// queue, and only the first call has an effect.
func (q *Queue) Finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.finished {
		return
	}
	q.finished = true
	q.items = append(q.items, Item{End: true})
	q.cond.Broadcast()
}

// Pop removes the oldest frame, blocking while the queue is empty. Once the
// sentinel is reached it is returned on this and every later call.
func (q *Queue) Pop(ctx context.Context) (Item, error) {
	stop := q.wake(ctx)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			return Item{}, err
		}
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Item{End: true}, nil
	}

	it := q.items[0]
	if it.End {
		return it, nil
	}
	q.items[0] = Item{}
	q.items = q.items[1:]
	q.cond.Broadcast()
	return it, nil
}

// Len returns the number of queued frames, not counting the sentinel.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if q.finished && n > 0 {
		n--
	}
	return n
}

// Close abandons the queue from the consumer side: pending frames are dropped
// and their pool buffers released, blocked producers fail with ErrClosed, and
// Pop reports the sentinel.
func (q *Queue) Close() {
	q.mu.Lock()
	pending := q.items
	q.items = nil
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, it := range pending {
		it.Release()
	}
}
