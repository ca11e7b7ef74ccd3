// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HistoryWritesTotal counts extraction outcomes persisted to history.
	HistoryWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediagate_history_writes_total",
		Help: "Total number of extraction history rows written",
	})

	// HistoryDroppedTotal counts history entries lost to a full queue or
	// a failed write. History is best-effort, so drops are expected under
	// sustained write pressure.
	HistoryDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediagate_history_dropped_total",
		Help: "Total number of extraction history entries dropped",
	})
)
