package observe

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultProcessed = "processed"
	resultMalformed = "malformed"
	resultFailed    = "failed"
)

var (
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wip",
		Subsystem: "observe",
		Name:      "messages_total",
		Help:      "Number of observation messages consumed, by result.",
	}, []string{"topic", "result"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wip",
		Subsystem: "observe",
		Name:      "last_message_timestamp_seconds",
		Help:      "Timestamp of the most recent observation message handled.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(messagesCounter, lastMessageGauge)
}

func recordResult(msg Message, result string) {
	messagesCounter.WithLabelValues(msg.Topic, result).Inc()
	if result == resultProcessed && !msg.Timestamp.IsZero() {
		lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}
