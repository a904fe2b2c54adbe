package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	opTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chirpd_store_ops_total",
		Help: "Durable store operations by kind.",
	}, []string{"op"})
	opErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chirpd_store_op_errors_total",
		Help: "Durable store operation errors by kind.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(opTotal, opErrors)
}
