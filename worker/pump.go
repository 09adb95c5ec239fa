package worker

import (
	"context"
	"sync"
	"time"

	"klite/consumer"
	"klite/internal/logging"
	"klite/internal/telemetry"
	"klite/sink"
)

// pump drains one (topic, group) assignment. Each cycle processes all
// of the group's partitions concurrently, then sleeps the configured
// interval; errors only log, the next cycle retries.
type pump struct {
	topic      string
	group      string
	partitions []int
	batchSize  int
	interval   time.Duration
	sink       sink.Adapter
	consumer   *consumer.Consumer
}

func (p *pump) run(ctx context.Context) {
	defer func() { _ = p.sink.Close() }()
	for {
		if ctx.Err() != nil {
			return
		}
		p.cycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

func (p *pump) cycle(ctx context.Context) {
	// an in-flight delivery finishes even if ctx is canceled mid-cycle;
	// the loop checkpoint above handles shutdown
	ctx = context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for _, part := range p.partitions {
		wg.Add(1)
		go func(part int) {
			defer wg.Done()
			if err := p.processPartition(ctx, part); err != nil {
				telemetry.DispatchBatches.WithLabelValues(p.topic, p.group, "error").Inc()
				logging.L().Error("dispatch failed",
					"topic", p.topic, "partition", part, "group", p.group, "err", err)
			}
		}(part)
	}
	wg.Wait()
}

// processPartition fetches one batch, ships it, and commits the last
// offset iff the sink acknowledged. No messages means no HTTP call and
// no commit.
func (p *pump) processPartition(ctx context.Context, partition int) error {
	msgs, err := p.consumer.Fetch(ctx, p.topic, partition, p.batchSize)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	batch := sink.Batch{Topic: p.topic, Partition: partition, Messages: msgs}
	if err := p.sink.Deliver(ctx, batch); err != nil {
		return err
	}
	if err := p.consumer.Commit(ctx, p.topic, partition, batch.Last()); err != nil {
		return err
	}
	telemetry.DispatchBatches.WithLabelValues(p.topic, p.group, "ok").Inc()
	logging.L().Debug("batch dispatched",
		"topic", p.topic, "partition", partition, "group", p.group,
		"count", len(msgs), "last_offset", batch.Last())
	return nil
}
