// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FollowUpsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_requests_total",
			Help: "Total number of follow-up requests processed",
		},
		[]string{"intent", "mode"},
	)

	FollowUpsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_requests_failed_total",
			Help: "Total number of follow-up requests that terminated with an error",
		},
		[]string{"error_code"},
	)

	FollowUpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "followup_request_duration_seconds",
			Help: "Duration of follow-up request processing in seconds",
		},
		[]string{"intent"},
	)

	DuplicatesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followup_duplicates_suppressed_total",
			Help: "Number of duplicate follow-up submissions answered from the log",
		},
	)

	MessagePersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followup_message_persist_failures_total",
			Help: "Number of conversation writes that failed after an answer was computed",
		},
	)

	OpenFDARequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfda_requests_total",
			Help: "Total number of openFDA label searches by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)
)
