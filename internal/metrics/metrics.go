// Package metrics implements shelf.Metrics with Prometheus collectors and
// serves them over HTTP.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"shelf-go/internal/shelf"
)

// Prometheus records engine and worker measurements.
type Prometheus struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	quotaRejections   prometheus.Counter
	nearDupCandidates prometheus.Histogram
	nearDupMatches    prometheus.Histogram
	pendingDeletions  *prometheus.CounterVec
	jobs              *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
}

var _ shelf.Metrics = (*Prometheus)(nil)

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	sizes := []float64{0, 1, 5, 25, 100, 500, 2500}
	return &Prometheus{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_operations_total",
				Help: "Engine operations by name and outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shelf_operation_duration_seconds",
				Help:    "Duration of engine operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		quotaRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "shelf_quota_rejections_total",
			Help: "Quota reservations refused because the account was full",
		}),
		nearDupCandidates: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "shelf_near_duplicate_candidates",
			Help:    "Fingerprints fetched per near-duplicate query",
			Buckets: sizes,
		}),
		nearDupMatches: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "shelf_near_duplicate_matches",
			Help:    "Fingerprints within distance per near-duplicate query",
			Buckets: sizes,
		}),
		pendingDeletions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_pending_deletions_total",
				Help: "Pending deletion records processed by outcome",
			},
			[]string{"outcome"},
		),
		jobs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelf_jobs_total",
				Help: "Background jobs handled by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		jobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shelf_job_duration_seconds",
				Help:    "Duration of background jobs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
	}
}

func (p *Prometheus) ObserveOperation(op string, err error, d time.Duration) {
	p.operations.WithLabelValues(op, Outcome(err)).Inc()
	p.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (p *Prometheus) RecordQuotaRejection() {
	p.quotaRejections.Inc()
}

func (p *Prometheus) ObserveNearDuplicateQuery(candidates, matches int) {
	p.nearDupCandidates.Observe(float64(candidates))
	p.nearDupMatches.Observe(float64(matches))
}

func (p *Prometheus) RecordPendingDeletion(outcome string) {
	p.pendingDeletions.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) ObserveJob(jobType string, err error, d time.Duration) {
	p.jobs.WithLabelValues(jobType, Outcome(err)).Inc()
	p.jobDuration.WithLabelValues(jobType).Observe(d.Seconds())
}

// Outcome maps an error onto a bounded label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shelf.ErrNotFound):
		return "not_found"
	case errors.Is(err, shelf.ErrConflict):
		return "conflict"
	case errors.Is(err, shelf.ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, shelf.ErrMountConflict):
		return "mount_conflict"
	case errors.Is(err, shelf.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, shelf.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, shelf.ErrTooLarge):
		return "too_large"
	default:
		return "error"
	}
}
