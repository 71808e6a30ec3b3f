package queue

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"

	"github.com/pbnjay/memory"
)

// Swaps in a ring of a new capacity. Consumers drain the old ring first.
// No-op while a previous resize is still draining.
func (queue *Queue) Resize(newCapacity uint64) (err error) {
	current := queue.write.Load()
	if queue.read.Load() != current {
		return
	}

	replacement, err := newRing(newCapacity)
	if err != nil {
		return
	}

	current.retired.Store(true)
	queue.write.Store(replacement)

	notice := make(chan struct{})
	previous := queue.resized.Swap(&notice)
	close(*previous)
	return
}

// Grows a nearly full queue (unless free memory cannot hold it) and shrinks a mostly idle one
func (queue *Queue) ScaleCapacity(ctx context.Context) {
	active := queue.write.Load()
	capacity := active.capacity
	depth := active.depth.Load()

	utilization := float64(depth) / float64(capacity) * 100

	switch {
	case utilization >= 90 && capacity < queue.maximumSize:
		newCapacity := nextPowerOfTwo(capacity + 1)

		perMessage := active.bytes.Load() / max(depth, 1)
		expected := uint64(newCapacity) * perMessage
		free := memory.FreeMemory()
		if free > 0 && expected > free {
			logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
				"queue is %.0f%% full but %d bytes of free memory cannot hold %d messages\n",
				utilization, free, newCapacity)
			return
		}
		queue.applyScale(ctx, capacity, newCapacity)
	case utilization <= 2 && capacity > queue.minimumSize:
		queue.applyScale(ctx, capacity, prevPowerOfTwo(capacity))
	}
}

func (queue *Queue) applyScale(ctx context.Context, from, to int) {
	err := queue.Resize(uint64(to))
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
			"failed to scale queue capacity: %v\n", err)
		return
	}
	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
		"scaled queue from %d to %d capacity\n", from, to)
}

func nextPowerOfTwo(start int) (next int) {
	if start <= 1 {
		next = 1
		return
	}
	start--
	start |= start >> 1
	start |= start >> 2
	start |= start >> 4
	start |= start >> 8
	start |= start >> 16
	start |= start >> 32
	next = start + 1
	return
}

func prevPowerOfTwo(start int) (prev int) {
	if start == 0 {
		return
	}
	prev = nextPowerOfTwo(start) >> 1
	return
}
