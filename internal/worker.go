package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATS subjects served by the worker.
const (
	SubjectIngest = "vidscope.ingest"
	SubjectReport = "vidscope.report"
	SubjectEvents = "vidscope.events"

	streamName = "VIDSCOPE"
	ackWait    = 15 * time.Minute
)

type ingestJob struct {
	URL string `json:"url"`
}

type reportJob struct {
	VideoID            uint   `json:"video_id"`
	FormatType         string `json:"format_type"`
	CustomInstructions string `json:"custom_instructions"`
}

// WorkerEvent is published on SubjectEvents after each job.
type WorkerEvent struct {
	Type   string        `json:"type"`
	Ingest *IngestResult `json:"ingest,omitempty"`
	Report *ReportResult `json:"report,omitempty"`
	Error  string        `json:"error,omitempty"`
}

type eventPublisher interface {
	Publish(subject string, data []byte) error
}

// Worker consumes ingestion and report jobs from JetStream.
type Worker struct {
	app    *App
	nc     *nats.Conn
	js     nats.JetStreamContext
	events eventPublisher
	log    *logrus.Entry

	// one job at a time across both subscriptions
	mu sync.Mutex
}

// NewWorker connects to NATS and makes sure the job stream exists.
func NewWorker(url string, app *App, log *logrus.Entry) (*Worker, error) {
	nc, err := nats.Connect(url,
		nats.Name(AppName+"-worker"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("getting JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(streamName); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			nc.Close()
			return nil, fmt.Errorf("looking up stream %s: %w", streamName, err)
		}
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:     streamName,
			Subjects: []string{SubjectIngest, SubjectReport},
		}); err != nil {
			nc.Close()
			return nil, fmt.Errorf("creating stream %s: %w", streamName, err)
		}
	}

	return &Worker{
		app:    app,
		nc:     nc,
		js:     js,
		events: nc,
		log:    log.WithField("component", "worker"),
	}, nil
}

// Run subscribes with durable consumers and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer w.nc.Close()

	for _, subject := range []string{SubjectIngest, SubjectReport} {
		durable := AppName + "-" + subject[len(AppName)+1:]
		sub, err := w.js.Subscribe(subject, func(m *nats.Msg) {
			w.handleMsg(ctx, m)
		}, nats.Durable(durable), nats.ManualAck(), nats.AckWait(ackWait))
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		w.log.WithFields(logrus.Fields{"subject": sub.Subject, "durable": durable}).Info("subscribed")
	}

	<-ctx.Done()
	w.log.Info("draining subscriptions")
	if err := w.nc.Drain(); err != nil {
		return fmt.Errorf("draining NATS connection: %w", err)
	}
	return nil
}

func (w *Worker) handleMsg(ctx context.Context, m *nats.Msg) {
	event, redeliver := w.handle(ctx, m.Subject, m.Data)
	w.publish(event)

	var err error
	switch {
	case redeliver:
		err = m.Nak()
	case event.Type == "rejected":
		err = m.Term()
	default:
		err = m.Ack()
	}
	if err != nil {
		w.log.WithError(err).WithField("subject", m.Subject).Warn("failed to acknowledge message")
	}
}

// handle runs one job. Failed jobs are not retried; only jobs interrupted by
// shutdown are handed back for redelivery.
func (w *Worker) handle(ctx context.Context, subject string, data []byte) (event WorkerEvent, redeliver bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	log := w.log.WithField("subject", subject)

	switch subject {
	case SubjectIngest:
		var job ingestJob
		if err := json.Unmarshal(data, &job); err != nil || job.URL == "" {
			log.WithError(err).Warn("rejecting malformed ingest job")
			return WorkerEvent{Type: "rejected", Error: "malformed ingest job"}, false
		}
		log.WithField("url", job.URL).Info("ingest job received")

		result := w.app.Process(ctx, job.URL)
		if !result.Success && ctx.Err() != nil {
			return WorkerEvent{Type: "ingest.interrupted", Error: result.Error}, true
		}
		return WorkerEvent{Type: eventType("ingest", result.Success), Ingest: &result}, false

	case SubjectReport:
		var job reportJob
		if err := json.Unmarshal(data, &job); err != nil || job.VideoID == 0 {
			log.WithError(err).Warn("rejecting malformed report job")
			return WorkerEvent{Type: "rejected", Error: "malformed report job"}, false
		}
		log.WithFields(logrus.Fields{"video_id": job.VideoID, "format_type": job.FormatType}).Info("report job received")

		result := w.app.Generate(ctx, job.VideoID, job.FormatType, job.CustomInstructions)
		if !result.Success && ctx.Err() != nil {
			return WorkerEvent{Type: "report.interrupted", Error: result.Error}, true
		}
		return WorkerEvent{Type: eventType("report", result.Success), Report: &result}, false

	default:
		return WorkerEvent{Type: "rejected", Error: "unknown subject " + subject}, false
	}
}

func eventType(kind string, success bool) string {
	if success {
		return kind + ".completed"
	}
	return kind + ".failed"
}

func (w *Worker) publish(event WorkerEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		w.log.WithError(err).Error("encoding event")
		return
	}
	if err := w.events.Publish(SubjectEvents, data); err != nil {
		w.log.WithError(err).Warn("publishing event")
	}
}
