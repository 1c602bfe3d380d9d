package replay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	replayHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialrss_replay_hits_total",
		Help: "The total number of provider calls served from the replay cache",
	})

	replayMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialrss_replay_misses_total",
		Help: "The total number of replay lookups with no matching record",
	})

	recordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialrss_replay_records_written_total",
		Help: "The total number of replay records persisted to disk",
	})
)
