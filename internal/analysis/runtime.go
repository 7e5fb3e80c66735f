package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the runtime lifecycle position.
type State int

const (
	StateIdle State = iota
	StateLoadingRuntime
	StateLoadingLibraries
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingRuntime:
		return "loading-runtime"
	case StateLoadingLibraries:
		return "loading-libraries"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Progress is a coarse bootstrap notification delivered to every registered
// observer, not just the caller that triggered loading.
type Progress struct {
	State   State
	Message string
}

// BootstrapError wraps a failure to bring up the computation engine. It is
// retryable: a failed attempt clears shared state so the next Acquire starts
// from scratch.
type BootstrapError struct {
	Stage string
	Err   error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap %s: %v", e.Stage, e.Err)
}

func (e *BootstrapError) Unwrap() error {
	return e.Err
}

const (
	defaultStageTimeout   = 15 * time.Second
	defaultOverallTimeout = 45 * time.Second
)

// attempt is one shared in-flight bootstrap. Concurrent callers wait on the
// same attempt instead of starting duplicate loads.
type attempt struct {
	done   chan struct{}
	engine *Engine
	err    error
}

// Runtime produces exactly one ready Engine per process lifetime. The loader
// is swappable for tests.
type Runtime struct {
	mu        sync.Mutex
	state     State
	engine    *Engine
	inflight  *attempt
	observers map[int]func(Progress)
	nextObs   int

	stageTimeout   time.Duration
	overallTimeout time.Duration
	loader         func(ctx context.Context) (*Engine, error)
}

// NewRuntime returns an idle runtime with the default loader and timeouts.
func NewRuntime() *Runtime {
	r := &Runtime{
		state:          StateIdle,
		observers:      make(map[int]func(Progress)),
		stageTimeout:   defaultStageTimeout,
		overallTimeout: defaultOverallTimeout,
	}
	r.loader = r.defaultLoad
	return r
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers a progress observer and returns its unsubscribe
// function.
func (r *Runtime) Subscribe(fn func(Progress)) func() {
	r.mu.Lock()
	id := r.nextObs
	r.nextObs++
	r.observers[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.observers, id)
		r.mu.Unlock()
	}
}

// Acquire returns the ready engine, starting or joining a bootstrap as
// needed. onProgress, when non-nil, observes this acquisition's bootstrap
// stages alongside any standing subscribers. Callers abandoning via ctx do
// not cancel a shared in-flight load.
func (r *Runtime) Acquire(ctx context.Context, onProgress func(Progress)) (*Engine, error) {
	var unsubscribe func()
	if onProgress != nil {
		unsubscribe = r.Subscribe(onProgress)
		defer unsubscribe()
	}

	r.mu.Lock()
	if r.state == StateReady {
		engine := r.engine
		r.mu.Unlock()
		return engine, nil
	}

	att := r.inflight
	if att == nil {
		att = &attempt{done: make(chan struct{})}
		r.inflight = att
		go r.load(att)
	}
	r.mu.Unlock()

	select {
	case <-att.done:
		return att.engine, att.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load runs one bootstrap attempt to completion and publishes the result.
func (r *Runtime) load(att *attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), r.overallTimeout)
	defer cancel()

	engine, err := r.loader(ctx)

	r.mu.Lock()
	r.inflight = nil
	if err != nil {
		// The attempt is discarded entirely; the next Acquire retries from
		// scratch instead of observing a poisoned engine.
		r.state = StateFailed
		r.engine = nil
	} else {
		r.state = StateReady
		r.engine = engine
	}
	r.mu.Unlock()

	if err != nil {
		r.notify(Progress{State: StateFailed, Message: err.Error()})
		att.err = err
	} else {
		r.notify(Progress{State: StateReady, Message: "runtime ready"})
		att.engine = engine
	}
	close(att.done)
}

// defaultLoad is the two-stage bootstrap: construct the engine, then verify
// its numeric kernels. Each stage has its own bounded timeout inside the
// overall deadline.
func (r *Runtime) defaultLoad(ctx context.Context) (*Engine, error) {
	r.setState(StateLoadingRuntime, "initializing computation engine")
	stageCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
	engine := &Engine{}
	err := stageCtx.Err()
	cancel()
	if err != nil {
		return nil, &BootstrapError{Stage: "runtime", Err: err}
	}

	r.setState(StateLoadingLibraries, "verifying numeric kernels")
	stageCtx, cancel = context.WithTimeout(ctx, r.stageTimeout)
	err = engine.selfCheck(stageCtx)
	cancel()
	if err != nil {
		return nil, &BootstrapError{Stage: "libraries", Err: err}
	}

	return engine, nil
}

// setState transitions the lifecycle and notifies observers.
func (r *Runtime) setState(s State, msg string) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.notify(Progress{State: s, Message: msg})
}

// notify calls observers outside the lock so a callback may subscribe or
// unsubscribe without deadlocking.
func (r *Runtime) notify(p Progress) {
	r.mu.Lock()
	fns := make([]func(Progress), 0, len(r.observers))
	for _, fn := range r.observers {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}
