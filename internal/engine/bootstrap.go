package engine

import (
	"fmt"

	"klite/internal/config"
	"klite/internal/store"
	"klite/internal/telemetry"
	"klite/worker"
)

func Bootstrap(cfg config.Engine) (*Engine, error) {
	// 1. backing store
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	// 2. dispatcher worker
	wcfg, err := config.LoadWorker(cfg.WorkerYml)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("worker config: %w", err)
	}
	w, err := worker.New(st, wcfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	// 3. metrics
	telemetry.Expose(cfg.MetricsPort)

	return &Engine{
		store:  st,
		worker: w,
	}, nil
}
