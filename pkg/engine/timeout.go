package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout reports a script that ran past the engine's time limit.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrSuperseded reports a result dropped because a newer evaluation
	// started on the same engine.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

type evalResult struct {
	job    *Job
	errors []EvalError
	err    error
}

func (e *Engine) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return EvalTimeout
}

// await takes the result of evaluation gen from ch. The script goroutine
// is not interrupted when the wait ends early; it finishes in its sandbox
// and its result is dropped.
func (e *Engine) await(ctx context.Context, ch <-chan evalResult, gen uint64) (*Job, []EvalError, error) {
	limit := e.timeout()
	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case res := <-ch:
		e.mu.Lock()
		stale := gen != e.generation
		e.mu.Unlock()
		if stale {
			return nil, nil, ErrSuperseded
		}
		return res.job, res.errors, res.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, limit)
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}
