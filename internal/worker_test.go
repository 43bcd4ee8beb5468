package internal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(subject string, data []byte) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

func newTestWorker(t *testing.T, app *App, pub eventPublisher) *Worker {
	t.Helper()
	return &Worker{app: app, events: pub, log: testLogger()}
}

func TestWorker_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("ingest job", func(t *testing.T) {
		app := newTestApp(t, newTestStore(t), happyExtractor(), happyAnalyzer(), &MockDrafter{})
		w := newTestWorker(t, app, &MockPublisher{})

		event, redeliver := w.handle(ctx, SubjectIngest, []byte(`{"url": "`+testURL+`"}`))

		assert.False(t, redeliver)
		assert.Equal(t, "ingest.completed", event.Type)
		require.NotNil(t, event.Ingest)
		assert.True(t, event.Ingest.Success)
		assert.Equal(t, 2, event.Ingest.SegmentsCount)
	})

	t.Run("failed ingest is not redelivered", func(t *testing.T) {
		extractor := &MockExtractor{}
		extractor.On("ResolveID", "https://example.com").Return("", ErrInvalidURL)
		app := newTestApp(t, newTestStore(t), extractor, &MockAnalyzer{}, &MockDrafter{})
		w := newTestWorker(t, app, &MockPublisher{})

		event, redeliver := w.handle(ctx, SubjectIngest, []byte(`{"url": "https://example.com"}`))

		assert.False(t, redeliver)
		assert.Equal(t, "ingest.failed", event.Type)
		require.NotNil(t, event.Ingest)
		assert.NotEmpty(t, event.Ingest.Error)
	})

	t.Run("report job", func(t *testing.T) {
		app := newTestApp(t, newTestStore(t), happyExtractor(), happyAnalyzer(), echoDrafter())
		ingested := app.Process(ctx, testURL)
		require.True(t, ingested.Success, ingested.Error)
		w := newTestWorker(t, app, &MockPublisher{})

		data, err := json.Marshal(reportJob{VideoID: ingested.VideoID, FormatType: "presentation"})
		require.NoError(t, err)
		event, redeliver := w.handle(ctx, SubjectReport, data)

		assert.False(t, redeliver)
		assert.Equal(t, "report.completed", event.Type)
		require.NotNil(t, event.Report)
		assert.NotZero(t, event.Report.ReportID)
		assert.Equal(t, "presentation", event.Report.FormatType)
	})

	t.Run("malformed jobs are rejected", func(t *testing.T) {
		app := newTestApp(t, newTestStore(t), &MockExtractor{}, &MockAnalyzer{}, &MockDrafter{})
		w := newTestWorker(t, app, &MockPublisher{})

		for subject, data := range map[string]string{
			SubjectIngest:  `not json`,
			SubjectReport:  `{"format_type": "summary"}`,
			"vidscope.foo": `{}`,
		} {
			event, redeliver := w.handle(ctx, subject, []byte(data))
			assert.False(t, redeliver, subject)
			assert.Equal(t, "rejected", event.Type, subject)
			assert.NotEmpty(t, event.Error, subject)
		}
	})

	t.Run("job interrupted by shutdown is redelivered", func(t *testing.T) {
		app := newTestApp(t, newTestStore(t), &MockExtractor{}, &MockAnalyzer{}, &MockDrafter{})
		w := newTestWorker(t, app, &MockPublisher{})

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		event, redeliver := w.handle(cancelled, SubjectIngest, []byte(`{"url": "`+testURL+`"}`))

		assert.True(t, redeliver)
		assert.Equal(t, "ingest.interrupted", event.Type)
	})
}

func TestWorker_Publish(t *testing.T) {
	t.Run("publishes encoded event", func(t *testing.T) {
		pub := &MockPublisher{}
		pub.On("Publish", SubjectEvents, mock.MatchedBy(func(data []byte) bool {
			var e WorkerEvent
			return json.Unmarshal(data, &e) == nil && e.Type == "report.failed" && e.Report != nil && e.Report.VideoID == 3
		})).Return(nil)
		w := newTestWorker(t, nil, pub)

		w.publish(WorkerEvent{Type: "report.failed", Report: &ReportResult{VideoID: 3, Error: "not found"}})

		pub.AssertExpectations(t)
	})

	t.Run("publish errors are swallowed", func(t *testing.T) {
		pub := &MockPublisher{}
		pub.On("Publish", SubjectEvents, mock.Anything).Return(errors.New("connection closed"))
		w := newTestWorker(t, nil, pub)

		assert.NotPanics(t, func() { w.publish(WorkerEvent{Type: "rejected"}) })
		pub.AssertNumberOfCalls(t, "Publish", 1)
	})
}

func TestEventType(t *testing.T) {
	assert.Equal(t, "ingest.completed", eventType("ingest", true))
	assert.Equal(t, "report.failed", eventType("report", false))
}
