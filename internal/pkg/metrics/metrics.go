package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Wallet session
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundchain_session_transitions_total",
			Help: "Wallet session state transitions by target state",
		},
		[]string{"to"},
	)

	SessionConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fundchain_session_connected",
		Help: "Wallet session status (1=connected, 0=not connected)",
	})

	StalePairingEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundchain_session_stale_pairing_events_total",
		Help: "Pairing completions discarded because the session moved on",
	})

	// Ledger reads
	LedgerReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundchain_ledger_reads_total",
			Help: "Ledger read operations by operation and result",
		},
		[]string{"op", "result"},
	)

	LedgerReadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fundchain_ledger_read_duration_seconds",
			Help:    "Ledger read round-trip duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Ledger writes
	TransactionsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundchain_transactions_submitted_total",
			Help: "Transactions handed to the ledger by kind",
		},
		[]string{"kind"},
	)

	TransactionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundchain_transaction_outcomes_total",
			Help: "Final local state of submitted transactions",
		},
		[]string{"kind", "state"},
	)

	InvalidInputs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundchain_invalid_inputs_total",
			Help: "Write requests rejected by local validation",
		},
		[]string{"kind"},
	)

	// Ask snapshot
	AskSnapshotSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fundchain_ask_snapshot_size",
		Help: "Number of asks in the cached snapshot",
	})

	StaleRefreshesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundchain_stale_refreshes_discarded_total",
		Help: "Refresh results dropped because a newer snapshot was already applied",
	})
)
