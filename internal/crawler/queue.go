package crawler

import (
	"context"
	"sync"

	"github.com/lgraba/crawler/pkg/types"
)

// Queue is an unbounded FIFO of crawl tasks with join accounting: every Put
// increments an outstanding-work count that only TaskDone decrements, so
// Join waits for work discovered mid-crawl too, not merely for the queue to
// look empty once.
type Queue struct {
	mu         sync.Mutex
	items      []*types.Task
	unfinished int
	joined     chan struct{} // non-nil while a Join is waiting

	// wakeup carries at most one pending "items available" signal. Takers
	// re-arm it whenever they leave items behind, so a dropped send never
	// strands a waiter.
	wakeup chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{wakeup: make(chan struct{}, 1)}
}

// Put enqueues a task. It never blocks.
func (q *Queue) Put(task *types.Task) {
	q.mu.Lock()
	q.items = append(q.items, task)
	q.unfinished++
	q.mu.Unlock()
	q.signal()
}

// Take removes and returns the oldest task, blocking until one is available
// or ctx is cancelled.
func (q *Queue) Take(ctx context.Context) (*types.Task, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			task := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				q.signal()
			}
			return task, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wakeup:
		}
	}
}

// TaskDone marks one previously taken task as fully processed.
func (q *Queue) TaskDone() {
	q.mu.Lock()
	if q.unfinished > 0 {
		q.unfinished--
	}
	if q.unfinished == 0 && q.joined != nil {
		close(q.joined)
		q.joined = nil
	}
	q.mu.Unlock()
}

// Join blocks until every enqueued task has been marked done, including
// tasks enqueued after the wait began, or until ctx is cancelled.
func (q *Queue) Join(ctx context.Context) error {
	q.mu.Lock()
	if q.unfinished == 0 {
		q.mu.Unlock()
		return nil
	}
	if q.joined == nil {
		q.joined = make(chan struct{})
	}
	done := q.joined
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Len reports the number of tasks waiting to be taken.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.wakeup <- struct{}{}:
	default:
	}
}
