// Package stdout is a debug sink that prints each batch instead of
// shipping it anywhere.
package stdout

import (
	"context"
	"fmt"
	"sync/atomic"

	"klite/sink"
)

/* ────────── public config ────────── */
type Config struct {
	PrintValue    bool // also print decoded payloads
	ValueMaxBytes int  // truncate printed payloads; 0 = no limit
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config
}

var seq uint64

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	d.cfg = c
	return nil
}

func (d *driver) Deliver(_ context.Context, b sink.Batch) error {
	fmt.Printf("[sink %06d] %s[%d] offsets %d..%d (%d msgs)\n",
		atomic.AddUint64(&seq, 1),
		b.Topic, b.Partition,
		b.Messages[0].Offset, b.Last(), len(b.Messages))

	if d.cfg.PrintValue {
		for _, m := range b.Messages {
			v := fmt.Sprintf("%v", m.Data)
			if d.cfg.ValueMaxBytes > 0 && len(v) > d.cfg.ValueMaxBytes {
				v = v[:d.cfg.ValueMaxBytes] + "…"
			}
			fmt.Printf("  @%d %s\n", m.Offset, v)
		}
	}
	return nil
}

func (d *driver) Close() error { return nil }

/* ────────── auto-register ───────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
