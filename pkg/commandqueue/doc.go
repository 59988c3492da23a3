// Package commandqueue runs tasks in named lanes, one at a time per lane.
//
// Invariants:
// - Tasks in the same lane execute in FIFO order, never concurrently.
// - Tasks in different lanes may execute concurrently.
// - A lane holds no state once it is idle and empty.
//
// Usage:
//
//	queue := commandqueue.New()
//	defer queue.Close()
//	result, err := queue.Enqueue(ctx, sessionID, func(ctx context.Context) (any, error) {
//		return "ok", nil
//	})
package commandqueue
