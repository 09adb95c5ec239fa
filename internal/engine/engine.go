package engine

import (
	"context"

	"klite/internal/store"
	"klite/worker"
)

type Engine struct {
	store  *store.Store
	worker *worker.Worker
}

// Run drives the dispatcher until ctx is canceled, then releases the
// store.
func (e *Engine) Run(ctx context.Context) error {
	err := e.worker.Run(ctx)
	_ = e.store.Close()
	return err
}
