package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoanEvents counts loan lifecycle operations by outcome
	LoanEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sacco_loan_events_total",
			Help: "Loan lifecycle operations",
		},
		[]string{"event", "status"},
	)

	// SchedulesGenerated counts amortization schedules built on activation
	SchedulesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sacco_schedules_generated_total",
			Help: "Repayment schedules generated",
		},
	)

	// RepaymentStatusChanges counts installments whose derived status moved during a refresh
	RepaymentStatusChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sacco_repayment_status_changes_total",
			Help: "Installments reclassified by the status refresh job",
		},
	)

	// RemindersSent counts repayment reminder deliveries
	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sacco_reminders_total",
			Help: "Repayment reminders by delivery result",
		},
		[]string{"status"},
	)

	// CacheLookups counts summary cache reads
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sacco_cache_lookups_total",
			Help: "Member summary cache reads",
		},
		[]string{"result"},
	)
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Outcome labels err as ok or error
func Outcome(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
