package engine

import (
	"context"
	"sync"

	"github.com/Konsultn-Engineering/ensemble/ormerr"
)

var (
	globalMu sync.RWMutex
	global   *Engine
)

// Setup installs e as the process-wide engine. A second Setup without an
// intervening Shutdown fails with ErrAlreadyInitialized.
func Setup(e *Engine) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		return ormerr.ErrAlreadyInitialized
	}
	global = e
	return nil
}

// Shutdown closes and removes the process-wide engine. It is a no-op when
// none is installed.
func Shutdown() error {
	globalMu.Lock()
	e := global
	global = nil
	globalMu.Unlock()
	if e == nil {
		return nil
	}
	return e.Close()
}

// Current returns the process-wide engine, or a ConnectionError wrapping
// ErrNotInitialized.
func Current() (*Engine, error) {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if global == nil {
		return nil, ormerr.Connection(ormerr.ErrNotInitialized)
	}
	return global, nil
}

type ctxKey struct{}

// WithContext carries exec in ctx. From prefers it over the process-wide engine.
func WithContext(ctx context.Context, exec Executor) context.Context {
	return context.WithValue(ctx, ctxKey{}, exec)
}

// From returns the executor carried by ctx, else the process-wide engine.
func From(ctx context.Context) (Executor, error) {
	if exec, ok := ctx.Value(ctxKey{}).(Executor); ok && exec != nil {
		return exec, nil
	}
	e, err := Current()
	if err != nil {
		return nil, err
	}
	return e, nil
}
