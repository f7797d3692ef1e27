package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lco77/netops-portal/internal/metrics"
)

// Handler executes one job and returns its JSON result.
type Handler func(ctx context.Context, msg *Message) (json.RawMessage, error)

// WorkerOptions tunes a Worker.
type WorkerOptions struct {
	Concurrency int           // goroutines consuming the queue; default 1
	TimeLimit   time.Duration // per-job deadline; 0 means none
}

// Worker consumes jobs from a Broker and writes their outcome to a ResultStore.
// Jobs are attempted exactly once; a failure is recorded, never retried.
type Worker struct {
	broker   Broker
	results  *ResultStore
	opts     WorkerOptions
	handlers map[string]Handler
}

// NewWorker creates a Worker with no handlers registered.
func NewWorker(broker Broker, results *ResultStore, opts WorkerOptions) *Worker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Worker{
		broker:   broker,
		results:  results,
		opts:     opts,
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for jobs of taskType. Must be called before Run.
func (w *Worker) Handle(taskType string, h Handler) {
	w.handlers[taskType] = h
}

// Run consumes the queue until ctx is cancelled, then waits for in-flight jobs.
func (w *Worker) Run(ctx context.Context) {
	log.Info("Worker pool starting", "concurrency", w.opts.Concurrency, "broker", w.broker.Type())

	var wg sync.WaitGroup
	for i := 0; i < w.opts.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}
	wg.Wait()

	log.Info("Worker pool stopped")
}

func (w *Worker) loop(ctx context.Context, slot int) {
	for ctx.Err() == nil {
		d, err := w.broker.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrNoMessage) || ctx.Err() != nil {
				continue
			}
			log.Error("Receive failed", "slot", slot, "err", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}

		// A job that started runs to completion even during shutdown.
		jobCtx := context.WithoutCancel(ctx)
		w.Process(jobCtx, d.Body)
		if err := d.Ack(jobCtx); err != nil {
			log.Error("Ack failed", "slot", slot, "err", err)
		}
	}
}

// Process executes one raw queue message and records its outcome.
func (w *Worker) Process(ctx context.Context, body []byte) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil || msg.ID == "" {
		log.Error("Dropping malformed job message", "err", err)
		return
	}

	started, err := w.results.Put(ctx, &Result{TaskID: msg.ID, Type: msg.Type, Status: StatusStarted})
	if err != nil {
		log.Error("Failed to mark job started", "id", msg.ID, "err", err)
	} else if !started {
		// Redelivered after a lost ack; the job already finished.
		log.Warn("Skipping redelivered job with a terminal result", "id", msg.ID, "type", msg.Type)
		return
	}

	start := time.Now()
	result, runErr := w.execute(ctx, &msg)
	elapsed := time.Since(start)

	done := time.Now().UTC()
	final := &Result{TaskID: msg.ID, Type: msg.Type, DateDone: &done}
	if runErr != nil {
		final.Status = StatusFailure
		final.Error = runErr.Error()
		log.Warn("Job failed", "id", msg.ID, "type", msg.Type, "elapsed", elapsed, "err", runErr)
	} else {
		final.Status = StatusSuccess
		final.Result = result
		log.Info("Job succeeded", "id", msg.ID, "type", msg.Type, "elapsed", elapsed)
	}

	written, err := w.results.Put(ctx, final)
	if err != nil {
		log.Error("Failed to store job result", "id", msg.ID, "err", err)
		return
	}
	if !written {
		log.Warn("Job already had a terminal result; outcome discarded", "id", msg.ID)
		return
	}
	metrics.ObserveTask(msg.Type, string(final.Status), elapsed)
}

func (w *Worker) execute(ctx context.Context, msg *Message) (result json.RawMessage, err error) {
	h, ok := w.handlers[msg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTaskType, msg.Type)
	}

	if w.opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.TimeLimit)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Job handler panicked", "id", msg.ID, "panic", r, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("job panicked: %v", r)
		}
	}()

	return h(ctx, msg)
}
