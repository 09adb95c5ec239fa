package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GroupSpec describes one consumer group's dispatch assignment on a
// topic: which partitions to pump, where to ship them, and how often.
type GroupSpec struct {
	Partitions []int  `yaml:"partitions"`
	Endpoint   string `yaml:"endpoint"`
	BatchSize  int    `yaml:"batchSize"`
	Interval   string `yaml:"interval"`
	// Sink selects the delivery driver; empty means "http".
	Sink string `yaml:"sink"`
}

type TopicSpec struct {
	ConsumerGroups map[string]GroupSpec `yaml:"consumerGroups"`
}

// Worker is the dispatcher configuration tree.
type Worker struct {
	Topics map[string]TopicSpec `yaml:"topics"`
}

// LoadWorker parses the worker topology YAML. Unknown keys anywhere in
// the tree are rejected so a typoed partition list fails loudly instead
// of silently dispatching nothing.
func LoadWorker(path string) (Worker, error) {
	var cfg Worker
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("worker config %s: %w", path, err)
	}
	return cfg, nil
}
