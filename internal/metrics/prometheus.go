// Package metrics exposes Prometheus counters for analyses, risk scoring and
// SMS delivery.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microfinance_analyses_total",
			Help: "Analyses run, by type and outcome status",
		},
		[]string{"type", "status"},
	)

	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "microfinance_analysis_duration_seconds",
			Help:    "Time spent computing one analysis",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"type"},
	)

	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microfinance_uploads_total",
			Help: "Spreadsheet uploads, by result",
		},
		[]string{"result"},
	)

	RiskAssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microfinance_risk_assessments_total",
			Help: "Loan risk assessments, by category",
		},
		[]string{"category"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microfinance_notifications_total",
			Help: "SMS notifications, by delivery status",
		},
		[]string{"status"},
	)
)

var initOnce sync.Once

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			AnalysesTotal,
			AnalysisDuration,
			UploadsTotal,
			RiskAssessmentsTotal,
			NotificationsTotal,
		)
	})
}

// ObserveAnalysis records one finished analysis.
func ObserveAnalysis(analysisType, status string, d time.Duration) {
	AnalysesTotal.WithLabelValues(analysisType, status).Inc()
	AnalysisDuration.WithLabelValues(analysisType).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
