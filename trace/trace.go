package trace

import (
	"strings"
	"sync"
	"time"

	"github.com/flightaware/turtles/hashing"
	"github.com/flightaware/turtles/internal/forklifecycle"
	"github.com/flightaware/turtles/internal/tlog"
)

// selfPrefix identifies framework-internal procedure names. The re-entry
// guard (§9) keeps Enter/Leave inert for these so instrumenting the
// framework's own code cannot recurse into itself.
const selfPrefix = "turtles."

// Tracer is the one instance a host's instrumentation calls into on every
// procedure entry and exit. A disabled Tracer (Options.Enabled == false) is
// inert: Enter/Leave return immediately and open no store.
type Tracer struct {
	opts  Options
	hooks *forklifecycle.Hooks

	mu     sync.Mutex
	stacks map[int64][]hashing.ProcId // per-thread call stack, innermost last
}

// New builds a Tracer from parsed Options. A disabled Tracer never opens a
// store; Hooks/Recorder stay nil and every Enter/Leave is a no-op.
func New(opts Options, logger *tlog.Logger) (*Tracer, error) {
	t := &Tracer{opts: opts}
	if !opts.Enabled {
		return t, nil
	}

	h, err := forklifecycle.New(
		opts.CommitMode, opts.DbPath, opts.DbPrefix,
		time.Duration(opts.IntervalMillis)*time.Millisecond,
		logger,
	)
	if err != nil {
		return nil, err
	}
	t.hooks = h
	t.stacks = make(map[int64][]hashing.ProcId)
	return t, nil
}

// Hooks exposes the fork lifecycle hooks for a host to wrap around its own
// fork() call. Nil when tracing is disabled.
func (t *Tracer) Hooks() *forklifecycle.Hooks {
	return t.hooks
}

// Shutdown runs the ordinary (non-fork) exit sequence (§4.4), flushing any
// unsettled rows before the store closes. A disabled Tracer has nothing to
// shut down.
func (t *Tracer) Shutdown() {
	if !t.opts.Enabled {
		return
	}
	t.hooks.Shutdown()
}

// Enter records a call-site entry event and returns the traceId the
// matching Leave must present to settle the same row. Framework-internal
// callees (selfPrefix) and a disabled tracer both return traceId 0, which
// Leave also treats as a no-op.
func (t *Tracer) Enter(threadId int64, procName string, sourceLine, now int64) hashing.TraceId {
	if !t.opts.Enabled || strings.HasPrefix(procName, selfPrefix) {
		return 0
	}

	calleeId := hashing.Proc(procName)
	t.hooks.Recorder().AddProc(int64(calleeId), procName, now)

	t.mu.Lock()
	stack := t.stacks[threadId]
	var callerId int64
	depth := int64(len(stack))
	if depth > 0 {
		callerId = int64(stack[depth-1])
	}
	t.stacks[threadId] = append(stack, calleeId)
	t.mu.Unlock()

	traceId := hashing.Call(threadId, depth, callerId, sourceLine, int64(calleeId))
	t.hooks.Recorder().AddCall(callerId, int64(calleeId), int64(traceId), now, nil)
	return traceId
}

// Leave settles the call_pts row opened by the matching Enter, popping this
// thread's call stack. A traceId of 0 (re-entry guard or disabled tracer)
// is a no-op.
func (t *Tracer) Leave(threadId int64, traceId hashing.TraceId, now int64) {
	if !t.opts.Enabled || traceId == 0 {
		return
	}

	t.mu.Lock()
	stack := t.stacks[threadId]
	var callerId, calleeId int64
	if n := len(stack); n > 0 {
		calleeId = int64(stack[n-1])
		stack = stack[:n-1]
		t.stacks[threadId] = stack
		if n > 1 {
			callerId = int64(stack[n-2])
		}
	}
	t.mu.Unlock()

	t.hooks.Recorder().UpdateCall(callerId, calleeId, int64(traceId), now)
}
