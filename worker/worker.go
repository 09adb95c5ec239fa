// Package worker is the dispatcher: one pump per (topic, consumer
// group) periodically drains pending batches and ships them to a sink,
// committing offsets only on acknowledged delivery.
package worker

import (
	"context"
	"fmt"
	"sync"

	"klite/consumer"
	"klite/internal/config"
	"klite/internal/logging"
	"klite/internal/store"
	"klite/sink"
	"klite/sink/httpsink"
	"klite/sink/stdout"
)

const defaultBatchSize = 100

type Worker struct {
	pumps []*pump
}

// New validates the configuration tree and builds one pump per
// (topic, group) assignment. A missing topics map and a malformed
// interval are configuration errors; a topic without consumer groups is
// only warned about and skipped.
func New(st *store.Store, cfg config.Worker) (*Worker, error) {
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("worker: no topics configured")
	}
	w := &Worker{}
	for topic, ts := range cfg.Topics {
		if len(ts.ConsumerGroups) == 0 {
			logging.L().Warn("topic has no consumer groups, skipping", "topic", topic)
			continue
		}
		for group, gs := range ts.ConsumerGroups {
			p, err := newPump(st, topic, group, gs)
			if err != nil {
				return nil, err
			}
			w.pumps = append(w.pumps, p)
		}
	}
	return w, nil
}

// Run launches every pump and blocks until all of them have exited,
// which happens once ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, p := range w.pumps {
		wg.Add(1)
		go func(p *pump) {
			defer wg.Done()
			p.run(ctx)
		}(p)
	}
	logging.L().Info("dispatcher started", "pumps", len(w.pumps))
	wg.Wait()
	logging.L().Info("dispatcher stopped")
	return nil
}

func newPump(st *store.Store, topic, group string, gs config.GroupSpec) (*pump, error) {
	interval, err := config.ParseInterval(gs.Interval)
	if err != nil {
		return nil, fmt.Errorf("worker: %s/%s: %w", topic, group, err)
	}
	batchSize := gs.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	name := gs.Sink
	if name == "" {
		name = "http"
	}
	drv, err := sink.NewAdapter(name)
	if err != nil {
		return nil, fmt.Errorf("worker: %s/%s: %w", topic, group, err)
	}
	switch name {
	case "http":
		err = drv.Configure(httpsink.Config{Endpoint: gs.Endpoint, Timeout: interval})
	case "stdout":
		err = drv.Configure(stdout.Config{})
	default:
		err = fmt.Errorf("no config block for sink %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("worker: %s/%s: %w", topic, group, err)
	}

	return &pump{
		topic:      topic,
		group:      group,
		partitions: gs.Partitions,
		batchSize:  batchSize,
		interval:   interval,
		sink:       drv,
		consumer:   consumer.New(st, consumer.Config{Group: group}),
	}, nil
}
