package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vocira_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vocira_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	CallsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vocira_calls_active",
		Help: "Number of calls currently in flight",
	})

	CallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vocira_calls_total",
		Help: "Finalized calls by final status",
	}, []string{"status"})

	CallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vocira_call_duration_seconds",
		Help:    "Answered call duration",
		Buckets: []float64{5, 15, 30, 60, 120, 180, 300},
	})

	OriginatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vocira_originates_total",
		Help: "Originate attempts by outcome",
	}, []string{"result"})

	AMDVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vocira_amd_verdicts_total",
		Help: "Answering machine detection verdicts",
	}, []string{"verdict"})

	BargeInsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vocira_barge_ins_total",
		Help: "Playbacks interrupted by caller speech",
	})

	ObjectionMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vocira_objection_matches_total",
		Help: "Objections matched against the library",
	}, []string{"category"})

	RetriesScheduledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vocira_retries_scheduled_total",
		Help: "Call retries scheduled by trigger status",
	}, []string{"status"})

	ASRRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vocira_asr_request_duration_seconds",
		Help:    "Batch transcription duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})
)
