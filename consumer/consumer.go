// Package consumer serves ordered fetches of uncommitted messages and
// tracks commit points per (group, topic, partition).
package consumer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"klite/internal/codec"
	"klite/internal/store"
	"klite/internal/telemetry"
)

const defaultMaxMessages = 100

// Message is one decoded log entry.
type Message struct {
	Offset  int64  `json:"offset"`
	Data    any    `json:"data"`
	Created string `json:"created"`
}

type Config struct {
	// Group names the offset cursor this consumer reads and advances.
	Group string
	// Codec overrides the payload codec; nil means codec.Default().
	Codec codec.Codec
}

type pair struct {
	topic     string
	partition int
}

type Consumer struct {
	st    *store.Store
	codec codec.Codec
	group string

	mu           sync.Mutex
	offsetsReady bool
	// known holds pairs that already have an offset row, letting Commit
	// go straight to UPDATE.
	known map[pair]struct{}
}

func New(st *store.Store, cfg Config) *Consumer {
	c := cfg.Codec
	if c == nil {
		c = codec.Default()
	}
	return &Consumer{
		st:    st,
		codec: c,
		group: cfg.Group,
		known: make(map[pair]struct{}),
	}
}

func (c *Consumer) Group() string { return c.group }

func (c *Consumer) ensureOffsetTable(ctx context.Context) error {
	c.mu.Lock()
	ready := c.offsetsReady
	c.mu.Unlock()
	if ready {
		return nil
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		consumer_group VARCHAR NOT NULL,
		topic VARCHAR NOT NULL,
		"partition" INTEGER NOT NULL,
		commit_offset INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (consumer_group, topic, "partition")
	)`, store.OffsetTable)
	if _, err := c.st.Execute(ctx, ddl); err != nil {
		return fmt.Errorf("consumer %s: ensure offsets: %w", c.group, err)
	}
	c.mu.Lock()
	c.offsetsReady = true
	c.mu.Unlock()
	return nil
}

// LastOffset returns the group's committed offset for the pair, or -1
// when nothing was ever committed (offsets start at 1, so -1 reads as
// "fetch from the beginning").
func (c *Consumer) LastOffset(ctx context.Context, topic string, partition int) (int64, error) {
	if err := c.ensureOffsetTable(ctx); err != nil {
		return 0, err
	}
	q := fmt.Sprintf(`SELECT commit_offset FROM %s WHERE consumer_group = ? AND topic = ? AND "partition" = ?`, store.OffsetTable)
	var off int64
	err := c.st.QueryRow(ctx, q, c.group, topic, partition).Scan(&off)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("consumer %s: last offset %s/%d: %w", c.group, topic, partition, err)
	}
	return off, nil
}

// Fetch reads up to maxMessages uncommitted messages in ascending
// offset order, decoding each payload. A missing partition table is a
// valid empty stream, not an error.
func (c *Consumer) Fetch(ctx context.Context, topic string, partition int, maxMessages int) ([]Message, error) {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	last, err := c.LastOffset(ctx, topic, partition)
	if err != nil {
		return nil, err
	}
	table, err := store.TableName(topic, partition)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT id, data, created FROM %s WHERE id > ? ORDER BY id ASC LIMIT ?", table)
	rows, err := c.st.Query(ctx, q, last, maxMessages)
	if store.IsNoSuchTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consumer %s: fetch %s/%d: %w", c.group, topic, partition, err)
	}
	defer rows.Close()

	var raw []struct {
		id      int64
		data    []byte
		created string
	}
	for rows.Next() {
		var r struct {
			id      int64
			data    []byte
			created string
		}
		if err := rows.Scan(&r.id, &r.data, &r.created); err != nil {
			return nil, fmt.Errorf("consumer %s: scan %s/%d: %w", c.group, topic, partition, err)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("consumer %s: fetch %s/%d: %w", c.group, topic, partition, err)
	}

	out := make([]Message, 0, len(raw))
	for _, r := range raw {
		data, err := c.codec.Decode(r.data)
		if err != nil {
			// a corrupt log row is fatal for the partition
			return nil, fmt.Errorf("consumer %s: decode %s/%d offset %d: %w", c.group, topic, partition, r.id, err)
		}
		out = append(out, Message{Offset: r.id, Data: data, Created: r.created})
	}
	return out, nil
}

// Commit records that all messages up to and including offset are
// processed. The stored value never regresses: UPDATE clamps with
// MAX(commit_offset, offset). The insert-then-update fallback absorbs
// the race where another instance of the same group inserts the row
// first.
func (c *Consumer) Commit(ctx context.Context, topic string, partition int, offset int64) error {
	if err := c.ensureOffsetTable(ctx); err != nil {
		return err
	}
	key := pair{topic, partition}
	c.mu.Lock()
	_, exists := c.known[key]
	c.mu.Unlock()

	if !exists {
		ins := fmt.Sprintf(`INSERT INTO %s (consumer_group, topic, "partition", commit_offset) VALUES (?, ?, ?, ?)`, store.OffsetTable)
		if _, err := c.st.Execute(ctx, ins, c.group, topic, partition, offset); err == nil {
			c.markKnown(key)
			telemetry.OffsetCommits.WithLabelValues(topic, c.group).Inc()
			return nil
		}
		// row appeared concurrently; fall through to UPDATE
	}

	upd := fmt.Sprintf(`UPDATE %s SET commit_offset = MAX(commit_offset, ?), updated_at = CURRENT_TIMESTAMP
		WHERE consumer_group = ? AND topic = ? AND "partition" = ?`, store.OffsetTable)
	if _, err := c.st.Execute(ctx, upd, offset, c.group, topic, partition); err != nil {
		return fmt.Errorf("consumer %s: commit %s/%d: %w", c.group, topic, partition, err)
	}
	c.markKnown(key)
	telemetry.OffsetCommits.WithLabelValues(topic, c.group).Inc()
	return nil
}

func (c *Consumer) markKnown(key pair) {
	c.mu.Lock()
	c.known[key] = struct{}{}
	c.mu.Unlock()
}
