package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricBookRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "klingnet",
		Subsystem: "addrbook",
		Name:      "records",
		Help:      "Number of peer addresses currently held in the address book.",
	})
	metricServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "klingnet",
		Subsystem: "addrbook",
		Name:      "served_total",
		Help:      "Peer addresses returned by discovery, by source (cache or seed).",
	}, []string{"source"})
	metricSeedFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "klingnet",
		Subsystem: "addrbook",
		Name:      "seed_fallbacks_total",
		Help:      "Discovery requests answered through seed resolution, by result.",
	}, []string{"result"})
	metricPersist = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "klingnet",
		Subsystem: "addrbook",
		Name:      "persist_operations_total",
		Help:      "Load and store operations on the peers backend, by operation and result.",
	}, []string{"op", "result"})
)

const (
	sourceCache = "cache"
	sourceSeed  = "seed"

	resultOK    = "ok"
	resultError = "error"
)
