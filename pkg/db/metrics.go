package db

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var dbErrorsCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_errors_total",
		Help: "A counter for SQL errors by statement type",
	},
	[]string{"type"})

var dbRetriesCount = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "db_serialization_retries_total",
		Help: "A counter for transaction retries due to serialization failures",
	})
