package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "klite_messages_produced_total",
		Help: "Messages appended to a partition log.",
	}, []string{"topic"})

	BatchFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "klite_producer_flushes_total",
		Help: "Producer batch flushes by outcome.",
	}, []string{"topic", "outcome"})

	DispatchBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "klite_dispatch_batches_total",
		Help: "Dispatcher batch deliveries by outcome.",
	}, []string{"topic", "group", "outcome"})

	OffsetCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "klite_offset_commits_total",
		Help: "Committed consumer offsets.",
	}, []string{"topic", "group"})
)

func Expose(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
	}()
}
