// Package metrics registers the write path's prometheus counters. The
// /metrics endpoint is wired by the app via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Updates counts record updates written, across all placements.
	Updates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "deltastore",
		Subsystem: "sor",
		Name:      "updates_total",
		Help:      "Record updates written.",
	})

	// OversizeUpdates counts updates rejected for exceeding the single
	// delta size limit.
	OversizeUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "deltastore",
		Subsystem: "sor",
		Name:      "oversize_updates_total",
		Help:      "Updates rejected because the encoded delta exceeded the size limit.",
	})

	// Flushes counts physical mutation batches executed.
	Flushes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "deltastore",
		Subsystem: "sor",
		Name:      "flushes_total",
		Help:      "Physical mutation batches executed.",
	})

	// PurgedRows counts rows deleted by the purge scanner.
	PurgedRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "deltastore",
		Subsystem: "sor",
		Name:      "purged_rows_total",
		Help:      "Rows deleted by purge.",
	})

	// HistoryEntries counts compacted history entries persisted.
	HistoryEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "deltastore",
		Subsystem: "sor",
		Name:      "history_entries_total",
		Help:      "Compacted history entries persisted.",
	})

	// MaintenanceSweeps counts completed history expiry sweeps.
	MaintenanceSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "deltastore",
		Subsystem: "maintenance",
		Name:      "sweeps_total",
		Help:      "History expiry sweeps completed.",
	})

	// MaintenanceExpired counts history cells reclaimed by sweeps.
	MaintenanceExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "deltastore",
		Subsystem: "maintenance",
		Name:      "expired_cells_total",
		Help:      "Expired history cells reclaimed.",
	})
)
