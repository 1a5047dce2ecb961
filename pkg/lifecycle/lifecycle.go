// Package lifecycle coordinates the lifetime of a single pipeline run.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Run owns the context for one pipeline invocation. The context is cancelled
// when the process receives SIGINT or SIGTERM, which lets in-flight batch
// work drain without recording partially processed messages.
type Run struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	hooks  []func()
}

// New creates a Run whose context is cancelled on SIGINT or SIGTERM.
func New() *Run {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return &Run{ctx: ctx, cancel: cancel}
}

// Context returns the run context.
func (r *Run) Context() context.Context {
	return r.ctx
}

// OnClose registers a cleanup hook. Hooks run in reverse registration order
// when Close is called, mirroring defer semantics across subsystems.
func (r *Run) OnClose(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Close cancels the run context and executes registered hooks exactly once.
func (r *Run) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	hooks := r.hooks
	r.mu.Unlock()

	r.cancel()
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}
