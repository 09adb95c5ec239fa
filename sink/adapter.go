package sink

import (
	"context"
	"fmt"

	"klite/consumer"
)

// Batch is what the dispatcher ships per (topic, partition) cycle. The
// message data is the decoded payload, not the stored blob.
type Batch struct {
	Topic     string             `json:"topic"`
	Partition int                `json:"partition"`
	Messages  []consumer.Message `json:"messages"`
}

// Last returns the offset of the final message in the batch, the one a
// successful delivery commits.
func (b Batch) Last() int64 {
	return b.Messages[len(b.Messages)-1].Offset
}

// Adapter is the common behaviour every sink driver exposes.
type Adapter interface {
	Configure(any) error // driver-specific config ⇒ struct
	Deliver(context.Context, Batch) error
	Close() error // idempotent
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
