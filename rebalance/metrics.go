package rebalance

import "github.com/prometheus/client_golang/prometheus"

var batchesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "supplyd_rebalance_batches_sent_total",
	Help: "Number of supply batches transmitted to demanders.",
}, []string{"outcome"})

var bytesSent = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "supplyd_rebalance_bytes_sent_total",
	Help: "Approximate bytes of entry payload transmitted in supply batches.",
})

var contextsStored = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "supplyd_rebalance_contexts_stored",
	Help: "Number of suspended supply contexts currently held in the context store.",
})

var turnsSuspended = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "supplyd_rebalance_turns_suspended_total",
	Help: "Number of supply turns that suspended before exhausting their partition set.",
})

func init() {
	prometheus.MustRegister(batchesSent)
	prometheus.MustRegister(bytesSent)
	prometheus.MustRegister(contextsStored)
	prometheus.MustRegister(turnsSuspended)
}

func recordBatchSent(outcome string, sizeBytes int) {
	batchesSent.WithLabelValues(outcome).Inc()
	bytesSent.Add(float64(sizeBytes))
}

func recordTurnSuspended() {
	turnsSuspended.Inc()
}

func recordContextStoreSize(size int) {
	contextsStored.Set(float64(size))
}
