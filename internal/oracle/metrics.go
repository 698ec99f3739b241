package oracle

import "github.com/prometheus/client_golang/prometheus"

const (
	opClient      = "client"
	opProject     = "project"
	opDescription = "description"
)

var (
	checkCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wip",
		Subsystem: "oracle",
		Name:      "classifier_calls_total",
		Help:      "Number of comparisons sent to the external classifier.",
	}, []string{"op"})

	failureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wip",
		Subsystem: "oracle",
		Name:      "classifier_failures_total",
		Help:      "Number of classifier comparisons that failed and resolved to no match.",
	}, []string{"op"})

	cacheHitCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wip",
		Subsystem: "oracle",
		Name:      "cache_hits_total",
		Help:      "Number of comparisons answered from the pair cache.",
	}, []string{"op"})

	shortcutCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wip",
		Subsystem: "oracle",
		Name:      "shortcuts_total",
		Help:      "Number of comparisons answered without the classifier, by reason.",
	}, []string{"op", "reason"})
)

func init() {
	prometheus.MustRegister(checkCounter, failureCounter, cacheHitCounter, shortcutCounter)
}
