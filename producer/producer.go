// Package producer appends messages to partition logs, transparently
// coalescing concurrent single-message sends into one atomic
// multi-insert per (topic, partition).
package producer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"klite/internal/codec"
	"klite/internal/store"
	"klite/internal/telemetry"
)

const defaultBatchDelay = 10 * time.Millisecond

type Config struct {
	// BatchDelay is how long a pending batch waits for company before
	// flushing. Zero keeps the default; see NoDelay for immediate
	// next-tick flushing.
	BatchDelay time.Duration
	NoDelay    bool
	// Codec overrides the payload codec; nil means codec.Default().
	Codec codec.Codec
}

type pair struct {
	topic     string
	partition int
}

type sendResult struct {
	offset int64
	err    error
}

// pendingBatch buffers encoded payloads between sends. The i-th waiter
// belongs to the i-th payload; on flush it learns firstRowid+i.
type pendingBatch struct {
	payloads [][]byte
	waiters  []chan sendResult
	timer    *time.Timer
}

type Producer struct {
	st    *store.Store
	codec codec.Codec
	delay time.Duration

	mu      sync.Mutex
	ensured map[pair]struct{}
	pending map[pair]*pendingBatch
}

func New(st *store.Store, cfg Config) *Producer {
	delay := cfg.BatchDelay
	if delay <= 0 {
		delay = defaultBatchDelay
	}
	if cfg.NoDelay {
		delay = 0
	}
	c := cfg.Codec
	if c == nil {
		c = codec.Default()
	}
	return &Producer{
		st:      st,
		codec:   c,
		delay:   delay,
		ensured: make(map[pair]struct{}),
		pending: make(map[pair]*pendingBatch),
	}
}

// Send appends payload to the (topic, partition) log and returns the
// offset it was assigned. The call blocks until the pending batch it
// joined has been flushed; all sends sharing a batch fail together if
// the insert fails.
func (p *Producer) Send(ctx context.Context, topic string, partition int, payload any) (int64, error) {
	if err := p.ensureTable(ctx, topic, partition); err != nil {
		return 0, err
	}
	enc, err := p.codec.Encode(payload)
	if err != nil {
		return 0, err
	}

	key := pair{topic, partition}
	waiter := make(chan sendResult, 1)

	p.mu.Lock()
	b := p.pending[key]
	if b == nil {
		b = &pendingBatch{}
		b.timer = time.AfterFunc(p.delay, func() { p.flushPair(topic, partition) })
		p.pending[key] = b
	} else {
		b.timer.Reset(p.delay)
	}
	b.payloads = append(b.payloads, enc)
	b.waiters = append(b.waiters, waiter)
	p.mu.Unlock()

	select {
	case res := <-waiter:
		return res.offset, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// SendBatch bypasses auto-batching: the payloads are inserted
// immediately in one transaction. It returns the first assigned offset
// and the payload count; the i-th payload holds firstOffset+i. Any
// in-flight auto-batch for the pair is left untouched.
func (p *Producer) SendBatch(ctx context.Context, topic string, partition int, payloads []any) (int64, int, error) {
	if len(payloads) == 0 {
		return 0, 0, fmt.Errorf("producer: empty batch for %s/%d", topic, partition)
	}
	if err := p.ensureTable(ctx, topic, partition); err != nil {
		return 0, 0, err
	}
	encoded := make([][]byte, len(payloads))
	for i, v := range payloads {
		enc, err := p.codec.Encode(v)
		if err != nil {
			return 0, 0, err
		}
		encoded[i] = enc
	}
	ids, err := p.insert(ctx, topic, partition, encoded)
	if err != nil {
		return 0, 0, err
	}
	return ids[0], len(payloads), nil
}

// Flush drains every pending batch and returns once all buffered
// waiters have settled. Call on graceful shutdown.
func (p *Producer) Flush(ctx context.Context) error {
	p.mu.Lock()
	detached := make(map[pair]*pendingBatch, len(p.pending))
	for k, b := range p.pending {
		b.timer.Stop()
		detached[k] = b
	}
	p.pending = make(map[pair]*pendingBatch)
	p.mu.Unlock()

	var firstErr error
	for k, b := range detached {
		if err := p.deliver(ctx, k.topic, k.partition, b); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// flushPair runs on the batch timer. It detaches the pending batch
// under the lock, so a send racing in rebuilds the map entry and joins
// the next batch untouched.
func (p *Producer) flushPair(topic string, partition int) {
	key := pair{topic, partition}
	p.mu.Lock()
	b := p.pending[key]
	if b == nil {
		p.mu.Unlock()
		return
	}
	delete(p.pending, key)
	b.timer.Stop()
	p.mu.Unlock()

	_ = p.deliver(context.Background(), topic, partition, b)
}

// deliver inserts the batch and settles every waiter, each with its own
// offset on success or the shared store error on failure.
func (p *Producer) deliver(ctx context.Context, topic string, partition int, b *pendingBatch) error {
	ids, err := p.insert(ctx, topic, partition, b.payloads)
	if err != nil {
		telemetry.BatchFlushes.WithLabelValues(topic, "error").Inc()
		for _, w := range b.waiters {
			w <- sendResult{err: err}
		}
		return err
	}
	telemetry.BatchFlushes.WithLabelValues(topic, "ok").Inc()
	first := ids[0]
	for i, w := range b.waiters {
		w <- sendResult{offset: first + int64(i)}
	}
	return nil
}

func (p *Producer) insert(ctx context.Context, topic string, partition int, payloads [][]byte) ([]int64, error) {
	table, err := store.TableName(topic, partition)
	if err != nil {
		return nil, err
	}
	stmts := make([]store.Stmt, len(payloads))
	for i, enc := range payloads {
		stmts[i] = store.Stmt{
			SQL:  fmt.Sprintf("INSERT INTO %s (data) VALUES (?)", table),
			Args: []any{enc},
		}
	}
	ids, err := p.st.Batch(ctx, stmts)
	if err != nil {
		return nil, fmt.Errorf("producer: insert %s/%d: %w", topic, partition, err)
	}
	telemetry.MessagesProduced.WithLabelValues(topic).Add(float64(len(payloads)))
	return ids, nil
}

// ensureTable issues the log-table DDL once per (topic, partition) per
// producer instance. CREATE TABLE IF NOT EXISTS tolerates concurrent
// producers racing on the first send.
func (p *Producer) ensureTable(ctx context.Context, topic string, partition int) error {
	key := pair{topic, partition}
	p.mu.Lock()
	_, ok := p.ensured[key]
	p.mu.Unlock()
	if ok {
		return nil
	}
	table, err := store.TableName(topic, partition)
	if err != nil {
		return err
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		data BLOB NOT NULL,
		created DATETIME DEFAULT CURRENT_TIMESTAMP
	)`, table)
	if _, err := p.st.Execute(ctx, ddl); err != nil {
		return fmt.Errorf("producer: ensure %s/%d: %w", topic, partition, err)
	}
	p.mu.Lock()
	p.ensured[key] = struct{}{}
	p.mu.Unlock()
	return nil
}
