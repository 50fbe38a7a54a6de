// Package hooks implements the Lifecycle Hook Runner (spec.md §4.8):
// fire-and-forget pre/post/failure callbacks around procedure invocation,
// with onInvoking awaited so it can short-circuit the call.
package hooks

import (
	"context"
	"time"

	jsonrpc "github.com/viant/mcpgateway"
)

// Hook is the extension point run around every user-defined procedure
// invocation (tools/call, prompts/get, resources/read). Reserved MCP
// methods (initialize, */list, subscribe/unsubscribe) never run hooks.
type Hook interface {
	// OnInvoking runs synchronously before the handler. Returning a non-nil
	// error short-circuits the call: the dispatcher maps it to a -32603
	// internal error carrying the hook's message (spec.md §4.8).
	OnInvoking(ctx context.Context, method, name string, request *jsonrpc.Request) error
	// OnCompleted runs after a successful invocation, asynchronously.
	OnCompleted(ctx context.Context, method, name string, response *jsonrpc.Response, duration time.Duration)
	// OnFailed runs after a failed invocation, asynchronously.
	OnFailed(ctx context.Context, method, name string, err error, duration time.Duration)
}

// Runner executes a registration-ordered chain of Hooks.
type Runner struct {
	hooks  []Hook
	logger jsonrpc.Logger
}

// NewRunner builds a Runner from hooks, run in registration order.
func NewRunner(logger jsonrpc.Logger, hooks ...Hook) *Runner {
	if logger == nil {
		logger = jsonrpc.DefaultLogger
	}
	return &Runner{hooks: hooks, logger: logger}
}

// Invoking runs every hook's OnInvoking in order, stopping at the first
// error (spec.md §4.8: "a hook may short-circuit by throwing").
func (r *Runner) Invoking(ctx context.Context, method, name string, request *jsonrpc.Request) error {
	for _, h := range r.hooks {
		if err := h.OnInvoking(ctx, method, name, request); err != nil {
			return err
		}
	}
	return nil
}

// Completed fires every hook's OnCompleted on a background goroutine with a
// recovered panic boundary; failures are logged and never alter the
// response already sent to the caller.
func (r *Runner) Completed(ctx context.Context, method, name string, response *jsonrpc.Response, duration time.Duration) {
	if len(r.hooks) == 0 {
		return
	}
	go func() {
		defer r.recoverPanic(method, name)
		for _, h := range r.hooks {
			h.OnCompleted(ctx, method, name, response, duration)
		}
	}()
}

// Failed fires every hook's OnFailed on a background goroutine.
func (r *Runner) Failed(ctx context.Context, method, name string, err error, duration time.Duration) {
	if len(r.hooks) == 0 {
		return
	}
	go func() {
		defer r.recoverPanic(method, name)
		for _, h := range r.hooks {
			h.OnFailed(ctx, method, name, err, duration)
		}
	}()
}

func (r *Runner) recoverPanic(method, name string) {
	if rec := recover(); rec != nil {
		r.logger.Errorf("lifecycle hook panicked for %s/%s: %v", method, name, rec)
	}
}
