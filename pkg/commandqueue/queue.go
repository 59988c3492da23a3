package commandqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aegis/copilot/internal/observability"
	"github.com/aegis/copilot/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// ErrClosed is returned for tasks enqueued after, or still waiting at, Close
var ErrClosed = errors.New("command queue is closed")

// ErrTaskPanicked is wrapped around the value a task panicked with
var ErrTaskPanicked = errors.New("task panicked")

// Task represents an operation to be executed in a lane
type Task func(ctx context.Context) (any, error)

type taskRecord struct {
	id         uint64
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
	result     chan taskResult
}

type taskResult struct {
	value any
	err   error
}

// laneState holds the waiting tasks of one lane
type laneState struct {
	queue   []*taskRecord
	running bool
}

// CommandQueue provides lane-based task serialization
type CommandQueue struct {
	mu        sync.Mutex
	lanes     map[string]*laneState
	taskIDSeq uint64
	waiting   int
	closed    bool
	wg        sync.WaitGroup
}

// New creates an empty CommandQueue
func New() *CommandQueue {
	observability.EnsureRegistered()

	return &CommandQueue{
		lanes: make(map[string]*laneState),
	}
}

// Enqueue adds task to lane and blocks until it has run. If ctx ends while
// the task is still waiting, the task is dropped and ctx.Err() returned. A
// task that has started receives ctx and is waited for.
func (cq *CommandQueue) Enqueue(ctx context.Context, lane string, task Task) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cq.mu.Lock()
	if cq.closed {
		cq.mu.Unlock()
		return nil, ErrClosed
	}

	ls, exists := cq.lanes[lane]
	if !exists {
		ls = &laneState{}
		cq.lanes[lane] = ls
	}

	cq.taskIDSeq++
	record := &taskRecord{
		id:         cq.taskIDSeq,
		task:       task,
		ctx:        ctx,
		enqueuedAt: time.Now(),
		result:     make(chan taskResult, 1),
	}
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	cq.waiting++
	observability.SetQueueWaiting(cq.waiting)
	cq.mu.Unlock()

	log.Debug().
		Str("lane", lane).
		Uint64("task_id", record.id).
		Int("queue_size", queueSize).
		Msg("Task enqueued")

	cq.processLane(lane)

	select {
	case result := <-record.result:
		return result.value, result.err
	case <-ctx.Done():
		if cq.remove(lane, record) {
			return nil, ctx.Err()
		}
		result := <-record.result
		return result.value, result.err
	}
}

// remove drops record from its lane if it has not started
func (cq *CommandQueue) remove(lane string, record *taskRecord) bool {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	ls, exists := cq.lanes[lane]
	if !exists {
		return false
	}
	for i, r := range ls.queue {
		if r == record {
			ls.queue = append(ls.queue[:i], ls.queue[i+1:]...)
			cq.waiting--
			observability.SetQueueWaiting(cq.waiting)
			cq.dropIfIdle(lane, ls)
			return true
		}
	}
	return false
}

// processLane starts the next task of lane unless one is running
func (cq *CommandQueue) processLane(lane string) {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	ls, exists := cq.lanes[lane]
	if !exists || ls.running {
		return
	}
	if len(ls.queue) == 0 {
		cq.dropIfIdle(lane, ls)
		return
	}

	record := ls.queue[0]
	ls.queue = ls.queue[1:]
	ls.running = true
	cq.waiting--
	observability.SetQueueWaiting(cq.waiting)

	cq.wg.Add(1)
	go cq.executeTask(lane, record)
}

func (cq *CommandQueue) dropIfIdle(lane string, ls *laneState) {
	if !ls.running && len(ls.queue) == 0 {
		delete(cq.lanes, lane)
	}
}

func (cq *CommandQueue) executeTask(lane string, record *taskRecord) {
	defer cq.wg.Done()

	wait := time.Since(record.enqueuedAt)
	observability.RecordQueueWait(wait)

	ctx, span := tracing.StartSpan(
		record.ctx,
		"copilot.commandqueue",
		"commandqueue.execute_task",
		attribute.String("lane", lane),
	)

	value, err := runTask(ctx, record.task)
	if err != nil {
		tracing.FailSpan(span, err)
	}
	span.End()

	logger := tracing.LoggerFromContext(ctx, log.Logger)
	if errors.Is(err, ErrTaskPanicked) {
		logger.Error().Err(err).Str("lane", lane).Uint64("task_id", record.id).Msg("Recovered from task panic")
	}
	logger.Debug().
		Str("lane", lane).
		Uint64("task_id", record.id).
		Dur("wait", wait).
		Bool("success", err == nil).
		Msg("Task completed")

	record.result <- taskResult{value: value, err: err}

	cq.mu.Lock()
	if ls, exists := cq.lanes[lane]; exists {
		ls.running = false
	}
	cq.mu.Unlock()

	cq.processLane(lane)
}

// runTask calls task, turning a panic into an ErrTaskPanicked error so the
// lane keeps draining
func runTask(ctx context.Context, task Task) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, rec)
		}
	}()
	return task(ctx)
}

// GetQueueSize returns the number of tasks waiting in lane
func (cq *CommandQueue) GetQueueSize(lane string) int {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	if ls, exists := cq.lanes[lane]; exists {
		return len(ls.queue)
	}
	return 0
}

// IsRunning reports whether lane has a task executing
func (cq *CommandQueue) IsRunning(lane string) bool {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	ls, exists := cq.lanes[lane]
	return exists && ls.running
}

// LaneCount returns the number of lanes with queued or running tasks
func (cq *CommandQueue) LaneCount() int {
	cq.mu.Lock()
	defer cq.mu.Unlock()
	return len(cq.lanes)
}

// Close rejects waiting and future tasks, then waits for running tasks
func (cq *CommandQueue) Close() error {
	cq.mu.Lock()
	if cq.closed {
		cq.mu.Unlock()
		return nil
	}
	cq.closed = true

	rejected := 0
	for lane, ls := range cq.lanes {
		for _, record := range ls.queue {
			record.result <- taskResult{err: ErrClosed}
			rejected++
		}
		ls.queue = nil
		cq.dropIfIdle(lane, ls)
	}
	cq.waiting = 0
	observability.SetQueueWaiting(0)
	cq.mu.Unlock()

	cq.wg.Wait()

	log.Info().Int("rejected", rejected).Msg("Command queue closed")
	return nil
}
