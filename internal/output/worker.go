package output

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"dcsingest/internal/queue"
	"dcsingest/pkg/message"
	"runtime/debug"
	"time"

	"go.uber.org/multierr"
)

// Drains the message queue into every sink
type Worker struct {
	Namespace []string
	Inbox     *queue.Queue
	sinks     []Sink
	metrics   MetricStorage
}

func NewWorker(namespace []string, inbox *queue.Queue, sinks ...Sink) (worker *Worker) {
	worker = &Worker{
		Namespace: append(append([]string{}, namespace...), global.NSWorker),
		Inbox:     inbox,
	}
	for _, sink := range sinks {
		if sink != nil {
			worker.sinks = append(worker.sinks, sink)
		}
	}
	return
}

// Runs until ctx is done, then writes what is still queued and flushes
func (worker *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	popped := make(chan *message.Message, 1)
	go func() {
		defer close(popped)
		for {
			msg, ok := worker.Inbox.Pop(ctx)
			if !ok {
				return
			}
			popped <- msg
		}
	}()

	for {
		select {
		case <-ticker.C:
			// Batches may never fill on quiet feeds
			worker.flush(ctx)
		case msg, ok := <-popped:
			if !ok {
				worker.drain(ctx)
				return
			}
			worker.deliver(ctx, msg)
		}
	}
}

// Writes remaining queued messages after shutdown was requested
func (worker *Worker) drain(ctx context.Context) {
	for {
		msg, ok := worker.Inbox.Pop(ctx)
		if !ok {
			break
		}
		worker.deliver(ctx, msg)
	}
	worker.flush(ctx)
}

func (worker *Worker) deliver(ctx context.Context, msg *message.Message) {
	// Record panics and continue output
	defer func() {
		if fatalError := recover(); fatalError != nil {
			stack := debug.Stack()
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"panic in output worker: %v\n%s", fatalError, stack)
		}
	}()

	worker.metrics.Received.Add(1)
	for _, sink := range worker.sinks {
		written, err := sink.Write(ctx, msg)
		if err != nil {
			worker.metrics.Failed.Add(1)
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"failed to write message %s: %v\n", msg.ID, err)
		}
		worker.metrics.Written.Add(uint64(written))
	}
}

func (worker *Worker) flush(ctx context.Context) {
	for _, sink := range worker.sinks {
		flushed, err := sink.Flush()
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "failed to flush output: %v\n", err)
		}
		worker.metrics.Written.Add(uint64(flushed))
	}
}

func (worker *Worker) Close() (err error) {
	for _, sink := range worker.sinks {
		err = multierr.Append(err, sink.Close())
	}
	return
}
