package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/rtzll/vidscope/internal/pipeline"
)

var (
	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidscope_pipeline_step_duration_seconds",
		Help:    "Duration of pipeline steps in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"pipeline", "step", "route"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidscope_pipeline_run_duration_seconds",
		Help:    "Duration of pipeline runs in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"pipeline", "status"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidscope_pipeline_runs_total",
		Help: "Total number of pipeline runs",
	}, []string{"pipeline", "status"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidscope_http_requests_total",
		Help: "Total number of API requests",
	}, []string{"method", "route", "code"})
)

// stepObserver logs every step and records its duration.
type stepObserver struct {
	log *logrus.Entry
}

func newStepObserver(log *logrus.Entry) *stepObserver {
	return &stepObserver{log: log}
}

func (o *stepObserver) StepStarted(e pipeline.Event) {
	o.log.WithFields(logrus.Fields{
		"pipeline": e.Pipeline,
		"step":     e.Step,
		"pass":     e.Pass,
	}).Debug("step started")
}

func (o *stepObserver) StepFinished(e pipeline.Event) {
	stepDuration.WithLabelValues(e.Pipeline, e.Step, e.Route.String()).Observe(e.Duration.Seconds())

	entry := o.log.WithFields(logrus.Fields{
		"pipeline":    e.Pipeline,
		"step":        e.Step,
		"route":       e.Route.String(),
		"duration_ms": e.Duration.Milliseconds(),
	})
	if e.Route == pipeline.Error {
		entry.Warn("step failed")
		return
	}
	entry.Debug("step finished")
}

func recordIngest(r IngestResult) {
	recordRun(ingestPipelineName, r.Success, r.Elapsed.Seconds())
}

func recordReport(r ReportResult) {
	recordRun(reportPipelineName, r.Success, r.Elapsed.Seconds())
}

func recordRun(name string, success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	runDuration.WithLabelValues(name, status).Observe(seconds)
	runsTotal.WithLabelValues(name, status).Inc()
}
