package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fynance_imports_total",
		Help: "Import jobs by outcome.",
	}, []string{"outcome"})

	rowsParsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fynance_import_rows_parsed_total",
		Help: "Data rows successfully parsed across all import previews.",
	})

	rowsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fynance_import_rows_skipped_total",
		Help: "Data rows dropped during parsing across all import previews.",
	})
)
