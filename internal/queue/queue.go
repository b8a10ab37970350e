// Package queue implements the per-session outbound message queue: an
// unbounded, multi-producer/single-consumer FIFO that must never block a
// producer.
package queue

import (
	"sync"

	"github.com/emirpasic/gods/queue/linkedlistqueue"
)

// Queue wraps a gods linked-list queue with a condition variable so a
// single consumer can block-wait for the next item without polling, while
// Push never blocks regardless of how many items are pending. front holds
// at most the handful of frames PushFront ever queues (a resume's Ready
// frame, ahead of whatever accumulated during the gap); everything else
// flows through the plain FIFO in items.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	front  [][]byte
	items  *linkedlistqueue.Queue
	closed bool
}

func New() *Queue {
	q := &Queue{items: linkedlistqueue.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a frame. Safe to call after Close; frames pushed after
// Close are simply dropped, matching "discarded on replacement" (spec
// §3 Message Queue).
func (q *Queue) Push(frame []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items.Enqueue(frame)
	q.cond.Signal()
}

// PushFront enqueues a frame ahead of everything already buffered. Used
// by a session resume to guarantee Ready{resumed:true} is the first
// frame the newly attached socket sees, even though frames pushed during
// the disconnect gap already sit in items.
func (q *Queue) PushFront(frame []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.front = append(q.front, frame)
	q.cond.Signal()
}

func (q *Queue) empty() bool {
	return len(q.front) == 0 && q.items.Empty()
}

func (q *Queue) dequeue() []byte {
	if len(q.front) > 0 {
		v := q.front[0]
		q.front = q.front[1:]
		return v
	}
	v, _ := q.items.Dequeue()
	return v.([]byte)
}

// Pop blocks until a frame is available or the queue is closed. The bool
// return is false only once the queue is closed and drained.
func (q *Queue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.empty() && !q.closed {
		q.cond.Wait()
	}
	if q.empty() {
		return nil, false
	}
	return q.dequeue(), true
}

// PopStoppable is Pop plus an external cancellation: it returns (nil,
// false) the moment stop is closed, even with a frame sitting in the
// queue, rather than dequeuing it first and discovering the caller no
// longer wants it. Callers must Kick after closing a stop channel a
// waiter might be holding, since closing stop alone doesn't wake a
// Wait() already blocked inside Pop/PopStoppable. The stop check runs
// before every dequeue attempt, not just while waiting, so a superseded
// consumer can never win the race against a freshly pushed frame.
func (q *Queue) PopStoppable(stop <-chan struct{}) ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case <-stop:
			return nil, false
		default:
		}
		if !q.empty() {
			return q.dequeue(), true
		}
		if q.closed {
			return nil, false
		}
		q.cond.Wait()
	}
}

// Kick wakes every consumer blocked in Pop/PopStoppable so it can
// re-check its stop channel (or the closed flag) without anything having
// been pushed.
func (q *Queue) Kick() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cond.Broadcast()
}

// Close marks the queue closed and wakes any blocked consumer. Further
// pushes are no-ops.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
