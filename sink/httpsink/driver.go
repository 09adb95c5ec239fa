// Package httpsink POSTs dispatched batches as JSON to a configured
// endpoint. A 2xx response acknowledges the batch.
package httpsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"klite/sink"
)

type Config struct {
	Endpoint string
	// Timeout bounds each request; the dispatcher sets it to the pump
	// interval. Zero means no per-request deadline.
	Timeout time.Duration
}

// one pooled client shared by every pump
var client = &http.Client{}

const maxErrBody = 4 << 10

type driver struct {
	cfg Config
}

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("http-sink: expected Config, got %T", raw)
	}
	if c.Endpoint == "" {
		return fmt.Errorf("http-sink: endpoint required")
	}
	d.cfg = c
	return nil
}

func (d *driver) Deliver(ctx context.Context, b sink.Batch) error {
	body, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("http-sink: marshal: %w", err)
	}
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http-sink: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http-sink: post %s: %w", d.cfg.Endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return fmt.Errorf("http-sink: %s returned %d: %s", d.cfg.Endpoint, resp.StatusCode, text)
	}
	return nil
}

func (d *driver) Close() error { return nil }

/*──────── auto-register ───────*/
func init() {
	sink.Register("http", func() sink.Adapter { return &driver{} })
}
