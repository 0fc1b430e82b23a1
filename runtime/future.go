package runtime

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Future is the handle `(future ...)` returns: a worker-thread
// computation with its own per-thread evaluator state (spec §5
// "built-ins like future... spawn worker threads with their own
// per-thread evaluator state").
type Future struct {
	mu     sync.Mutex
	done   bool
	val    Value
	err    *Error
	waitCh chan struct{}
}

func (f *Future) Type() ValueType { return "future" }
func (f *Future) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return "#<future realized>"
	}
	return "#<future pending>"
}

// Deref blocks until the future's thunk has finished, returning the
// native error (if any) for `future` callers that want Go-level access;
// builtin `deref` wraps this to surface a catchable Error.
func (f *Future) Deref() (Value, *Error) {
	<-f.waitCh
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, f.err
}

func (f *Future) IsRealized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// FutureExecutor is the worker pool behind the future/agent boundary
// (spec §5, DOMAIN STACK errgroup binding). One executor is shared
// process-wide; each submitted thunk gets its own goroutine and its own
// threadState (cleaned up via dropThread on completion), since per-thread
// evaluator state must never leak across goroutines (§3.6).
type FutureExecutor struct {
	group *errgroup.Group
	ctx   context.Context
}

// DefaultFutureExecutor is the shared pool the `future-call`, `agent` and
// `send` builtins submit work to.
var DefaultFutureExecutor = NewFutureExecutor(context.Background())

func NewFutureExecutor(ctx context.Context) *FutureExecutor {
	g, ctx := errgroup.WithContext(ctx)
	return &FutureExecutor{group: g, ctx: ctx}
}

// Submit runs thunk on a fresh goroutine and returns immediately with a
// Future the caller can Deref later.
func (e *FutureExecutor) Submit(thunk func() (Value, *Error)) *Future {
	f := &Future{waitCh: make(chan struct{})}
	e.group.Go(func() error {
		defer dropThread()
		val, err := thunk()
		f.mu.Lock()
		f.val, f.err, f.done = val, err, true
		f.mu.Unlock()
		close(f.waitCh)
		return nil
	})
	return f
}

// Wait blocks until every future submitted so far has completed, the way
// a test harness drains outstanding work before asserting on it.
func (e *FutureExecutor) Wait() error { return e.group.Wait() }

// AgentTask is one queued state-transition function sent to an Atom-like
// agent reference via `send` (spec §5 "agent dispatch"). Tasks
// for a single agent run strictly in submission order even though the
// executor itself is a shared pool, so one agent's history stays
// serialized the way Clojure agents guarantee.
type AgentTask struct {
	Fn func(Value) Value
}

// Agent is a mutable reference whose updates are always applied
// asynchronously, one at a time, via a private per-agent task queue
// (spec §5).
type Agent struct {
	mu     sync.Mutex
	val    Value
	queue  chan AgentTask
	once   sync.Once
	closed bool
}

func NewAgent(initial Value) *Agent {
	a := &Agent{val: initial, queue: make(chan AgentTask, 256)}
	DefaultFutureExecutor.Submit(func() (Value, *Error) {
		for t := range a.queue {
			a.mu.Lock()
			a.val = t.Fn(a.val)
			a.mu.Unlock()
		}
		return TheNil, nil
	})
	return a
}

func (a *Agent) Type() ValueType { return "agent" }
func (a *Agent) String() string  { return "#<agent " + a.Deref().String() + ">" }

func (a *Agent) Deref() Value {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.val
}

// Send enqueues fn to run against the agent's current value on the
// shared worker pool, returning immediately (spec §5 "agent dispatch").
func (a *Agent) Send(fn func(Value) Value) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}
	a.queue <- AgentTask{Fn: fn}
}

// Close stops the agent's task goroutine once its queue drains; used by
// tests to avoid leaking goroutines across cases.
func (a *Agent) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.once.Do(func() { close(a.queue) })
}
