package coltable

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadBytesTotal counts data buffer bytes fetched by readers.
	ReadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coltable_read_bytes_total",
		Help: "Total number of data bytes fetched by readers",
	})

	// OpensTotal counts open attempts by outcome.
	OpensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coltable_opens_total",
			Help: "Total number of file open attempts",
		},
		[]string{"outcome"},
	)
)
