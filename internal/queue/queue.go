package queue

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/pkg/message"
	"runtime"
	"sync/atomic"
	"time"
)

// Producers write to the write ring, consumers read the read ring. Both point to the same
// ring except while a resize drains the old one.
type Queue struct {
	Namespace []string

	write   atomic.Pointer[ring]
	read    atomic.Pointer[ring]
	resized atomic.Pointer[chan struct{}] // closed on every resize

	minimumSize int
	maximumSize int

	metrics MetricStorage
}

func New(namespace []string, initialCapacity uint64, minCapacity, maxCapacity int) (queue *Queue, err error) {
	first, err := newRing(initialCapacity)
	if err != nil {
		return
	}

	queue = &Queue{
		Namespace:   append(append([]string{}, namespace...), global.NSQueue),
		minimumSize: minCapacity,
		maximumSize: maxCapacity,
	}
	queue.write.Store(first)
	queue.read.Store(first)
	notice := make(chan struct{})
	queue.resized.Store(&notice)
	return
}

// Attempts to enqueue msg, false when full
func (queue *Queue) Push(msg *message.Message) (success bool) {
	queue.metrics.PushAttempts.Add(1)

	for {
		target := queue.write.Load()
		target.writers.Add(1)
		if target.retired.Load() {
			// Resize in progress, reload write ring
			target.writers.Add(-1)
			runtime.Gosched()
			continue
		}

		var retries uint64
		success, retries = target.offer(msg)
		target.writers.Add(-1)

		queue.metrics.PushCASRetries.Add(retries)
		if success {
			queue.metrics.PushSuccess.Add(1)
		} else {
			queue.metrics.PushFull.Add(1)
		}
		return
	}
}

// Retries Push until it succeeds or ctx ends
func (queue *Queue) PushBlocking(ctx context.Context, msg *message.Message) (err error) {
	backoff := time.Millisecond
	for {
		if queue.Push(msg) {
			return
		}

		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 50*time.Millisecond)
	}
}

// Blocks until a message is available, false once ctx is done and nothing is queued
func (queue *Queue) Pop(ctx context.Context) (msg *message.Message, success bool) {
	queue.metrics.PopAttempts.Add(1)

	for {
		notice := *queue.resized.Load()
		current := queue.read.Load()

		var retries uint64
		msg, success, retries = current.take()
		queue.metrics.PopCASRetries.Add(retries)
		if success {
			queue.metrics.PopSuccess.Add(1)
			queue.retireDrained(current)
			return
		}

		if current.retired.Load() {
			if !queue.retireDrained(current) {
				runtime.Gosched()
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-current.ready:
		case <-notice:
		}
	}
}

// Moves readers to the write ring once a retired ring is empty and no producer is still inside it
func (queue *Queue) retireDrained(current *ring) (switched bool) {
	if !current.retired.Load() || current.writers.Load() != 0 || !current.empty() {
		return
	}
	queue.read.CompareAndSwap(current, queue.write.Load())
	switched = true
	return
}

// Current number of queued messages
func (queue *Queue) Len() (depth int) {
	write := queue.write.Load()
	depth = int(write.depth.Load())
	if read := queue.read.Load(); read != write {
		depth += int(read.depth.Load())
	}
	return
}

func (queue *Queue) Capacity() int {
	return queue.write.Load().capacity
}

// Waits until the queue was seen empty three polls in a row
func (queue *Queue) WaitEmpty(timeout time.Duration) (drained bool, remaining int) {
	const requiredStreak = 3

	backoff := 50 * time.Millisecond
	deadline := time.Now().Add(timeout)
	streak := 0

	for {
		remaining = queue.Len()
		if remaining == 0 {
			streak++
			if streak >= requiredStreak {
				drained = true
				return
			}
		} else {
			streak = 0
		}

		left := time.Until(deadline)
		if left <= 0 {
			return
		}
		time.Sleep(min(backoff, left))
		backoff = min(backoff*2, time.Second)
	}
}
