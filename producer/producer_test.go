package producer

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"klite/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "klite.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func countRows(t *testing.T, st *store.Store, topic string, partition int) int {
	t.Helper()
	table, err := store.TableName(topic, partition)
	require.NoError(t, err)
	var n int
	require.NoError(t, st.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestSendCoalescesOneBatch(t *testing.T) {
	st := newTestStore(t)
	p := New(st, Config{BatchDelay: 20 * time.Millisecond})
	ctx := context.Background()

	type sent struct {
		off int64
		err error
	}
	results := make(chan sent, 3)
	for i := 0; i < 3; i++ {
		go func(i int) {
			off, err := p.Send(ctx, "orders", 0, map[string]any{"msg": i})
			results <- sent{off, err}
		}(i)
	}
	var offsets []int64
	for i := 0; i < 3; i++ {
		r := <-results
		require.NoError(t, r.err)
		offsets = append(offsets, r.off)
	}

	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	require.Equal(t, []int64{1, 2, 3}, offsets)
	require.Equal(t, 3, countRows(t, st, "orders", 0))
}

func TestSendBatchBypassesPendingBatch(t *testing.T) {
	st := newTestStore(t)
	p := New(st, Config{BatchDelay: 50 * time.Millisecond})
	ctx := context.Background()

	type sent struct {
		off int64
		err error
	}
	done := make(chan sent, 1)
	go func() {
		off, err := p.Send(ctx, "t", 0, map[string]any{"msg": 0})
		done <- sent{off, err}
	}()

	// let the send join the pending batch before bypassing it
	waitFor(t, time.Second, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.pending) == 1
	})

	first, count, err := p.SendBatch(ctx, "t", 0, []any{
		map[string]any{"msg": 1},
		map[string]any{"msg": 2},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), first)
	require.Equal(t, 2, count)

	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, int64(3), res.off)
	require.Equal(t, 3, countRows(t, st, "t", 0))
}

func TestFlushDrainsPending(t *testing.T) {
	st := newTestStore(t)
	p := New(st, Config{BatchDelay: time.Hour})
	ctx := context.Background()

	type sent struct {
		off int64
		err error
	}
	results := make(chan sent, 2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			off, err := p.Send(ctx, "t", 0, map[string]any{"msg": i})
			results <- sent{off, err}
		}(i)
	}
	waitFor(t, time.Second, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		b := p.pending[pair{"t", 0}]
		return b != nil && len(b.waiters) == 2
	})

	require.NoError(t, p.Flush(ctx))
	got := map[int64]bool{}
	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
		got[r.off] = true
	}
	require.True(t, got[1] && got[2])
}

func TestBatchErrorRejectsAllWaiters(t *testing.T) {
	st := newTestStore(t)
	p := New(st, Config{BatchDelay: 30 * time.Millisecond})
	ctx := context.Background()

	// seed the table so it is memoized, then pull it out from under the
	// producer: the next flush must fail every waiter
	_, err := p.Send(ctx, "t", 0, map[string]any{"seed": true})
	require.NoError(t, err)
	table, err := store.TableName("t", 0)
	require.NoError(t, err)
	_, err = st.Execute(ctx, `DROP TABLE `+table)
	require.NoError(t, err)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			_, err := p.Send(ctx, "t", 0, map[string]any{"msg": i})
			errs <- err
		}(i)
	}
	for i := 0; i < 2; i++ {
		require.Error(t, <-errs)
	}
}

func TestSendRejectsQuotedTopic(t *testing.T) {
	st := newTestStore(t)
	p := New(st, Config{})
	_, err := p.Send(context.Background(), `bad"topic`, 0, "x")
	require.Error(t, err)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
