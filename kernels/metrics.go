package kernels

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CallsTotal counts kernel invocations by kernel name and result status.
var CallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coltable_kernel_calls_total",
		Help: "Total number of codec kernel calls",
	},
	[]string{"kernel", "status"},
)
