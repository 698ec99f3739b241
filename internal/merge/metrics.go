package merge

import "github.com/prometheus/client_golang/prometheus"

var (
	decisionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wip",
		Subsystem: "merge",
		Name:      "decisions_total",
		Help:      "Pairwise merge decisions grouped by outcome.",
	}, []string{"outcome"})

	clusterSizeHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wip",
		Subsystem: "merge",
		Name:      "cluster_size",
		Help:      "Number of records per cluster produced by batch clustering.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 50},
	})

	incorporatedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wip",
		Subsystem: "merge",
		Name:      "observations_incorporated_total",
		Help:      "Observations folded into the ledger, by whether they merged or created a record.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(decisionCounter, clusterSizeHistogram, incorporatedCounter)
}
