package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"10ms", 10 * time.Millisecond, true},
		{"5s", 5 * time.Second, true},
		{"2m", 2 * time.Minute, true},
		{"0s", 0, true},
		{"10", 0, false},
		{"ms", 0, false},
		{"10h", 0, false},
		{"1.5s", 0, false},
		{"-1s", 0, false},
		{"10 s", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, err := ParseInterval(c.in)
		if c.ok && err != nil {
			t.Errorf("ParseInterval(%q): unexpected error %v", c.in, err)
		}
		if !c.ok && err == nil {
			t.Errorf("ParseInterval(%q): expected error, got %v", c.in, got)
		}
		if c.ok && got != c.want {
			t.Errorf("ParseInterval(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestLoadWorker(t *testing.T) {
	dir := t.TempDir()
	raw := []byte(`topics:
  analytics:
    consumerGroups:
      exporter:
        partitions: [0, 1]
        endpoint: http://localhost:8080/ingest
        batchSize: 50
        interval: 5s
`)
	path := filepath.Join(dir, "worker.yml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write worker.yml: %v", err)
	}

	cfg, err := LoadWorker(path)
	if err != nil {
		t.Fatalf("LoadWorker: %v", err)
	}
	gs, ok := cfg.Topics["analytics"].ConsumerGroups["exporter"]
	if !ok {
		t.Fatal("missing analytics/exporter group")
	}
	if len(gs.Partitions) != 2 || gs.Partitions[1] != 1 {
		t.Fatalf("unexpected partitions %v", gs.Partitions)
	}
	if gs.BatchSize != 50 || gs.Interval != "5s" {
		t.Fatalf("unexpected group spec %+v", gs)
	}
}

func TestLoadWorker_RejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	raw := []byte(`topics:
  analytics:
    consumerGroups:
      exporter:
        partitons: [0]
        endpoint: http://localhost:8080/ingest
        interval: 5s
`)
	path := filepath.Join(dir, "worker.yml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write worker.yml: %v", err)
	}
	if _, err := LoadWorker(path); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}
