package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-ingest/constants"
	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/entity"
	"github.com/joseph-ayodele/cv-ingest/internal/events"
	"github.com/joseph-ayodele/cv-ingest/internal/llm"
	"github.com/joseph-ayodele/cv-ingest/internal/pdftext/pdftest"
)

type stubModel struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req llm.ExtractRequest) ([]byte, error)
}

func (m *stubModel) ExtractCV(ctx context.Context, req llm.ExtractRequest) ([]byte, error) {
	m.calls.Add(1)
	return m.fn(ctx, req)
}

func respond(body string) *stubModel {
	return &stubModel{fn: func(context.Context, llm.ExtractRequest) ([]byte, error) { return []byte(body), nil }}
}

type memStore struct {
	mu      sync.Mutex
	emails  map[string]bool
	created []*entity.Researcher
	create  func(cv *entity.StructuredCV) error
}

func (s *memStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emails[email], nil
}

func (s *memStore) Create(_ context.Context, cv *entity.StructuredCV, src entity.Source) (*entity.Researcher, error) {
	if s.create != nil {
		if err := s.create(cv); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &entity.Researcher{ID: uuid.New(), Email: cv.Personal.Email, SourceName: src.Name, ContentHash: src.ContentHash, CV: *cv}
	s.created = append(s.created, r)
	return r, nil
}

func fastExecutor(model llm.CVExtractor) *llm.Executor {
	return llm.NewExecutor(model, llm.ExecutorConfig{AttemptTimeout: 30 * time.Millisecond, MaxRetries: 2, RetryDelay: time.Millisecond}, nil)
}

func janeDoePDF() []byte {
	return pdftest.Build([][]pdftest.Run{
		pdftest.Lines("JANE DOE", "jane.doe@uni.edu", "Home Address: 12 Elm Street, Springfield"),
		pdftest.Lines("Publications", "Doe, J. (2020). Title X. Journal Y."),
	})
}

const janeDoeResponse = `{
  "personal": {"firstName": "JANE", "lastName": "DOE", "email": null, "phone": null},
  "education": [{"degree": "PhD", "field": "Physics", "startDate": "2010", "endDate": "graduated 2014"}],
  "publications": [
    {"title": "Title X", "authors": "Doe, J.", "venue": "Journal Y", "publicationYear": 2020, "email": "leak@x.io", "phone": "555-0100"}
  ]
}`

func terminals(evs []events.Event) int {
	n := 0
	for _, e := range evs {
		if e.Terminal() {
			n++
		}
	}
	return n
}

func lastEvent(t *testing.T, rec *events.Recorder) events.Event {
	t.Helper()
	e, ok := rec.Last()
	require.True(t, ok)
	return e
}

func TestRunEndToEnd(t *testing.T) {
	var seen llm.ExtractRequest
	model := &stubModel{fn: func(_ context.Context, req llm.ExtractRequest) ([]byte, error) {
		seen = req
		return []byte(janeDoeResponse), nil
	}}
	rec := &events.Recorder{}
	p := NewProcessor(Config{Model: "test-model"}, fastExecutor(model), nil, nil, nil)

	res, err := p.Run(context.Background(), Document{Name: "jane.pdf", Data: janeDoePDF()}, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"uploading", "extracting", "extracting", "identifying", "chunking",
		"parsing-base", "parsing-base", "parsing-pubs", "finalizing", "complete",
	}, rec.Stages())
	assert.Equal(t, 1, terminals(rec.Events()))

	// model input is redacted and keeps page markers
	assert.Contains(t, seen.User, "JANE DOE")
	assert.Contains(t, seen.User, "Doe, J. (2020). Title X. Journal Y.")
	assert.Contains(t, seen.User, "[EMAIL REDACTED]")
	assert.Contains(t, seen.User, "[ADDRESS REDACTED]")
	assert.Contains(t, seen.User, "[PAGE 2 END]")
	assert.NotContains(t, seen.User, "jane.doe@uni.edu")
	assert.NotContains(t, seen.User, "Elm Street")
	assert.Equal(t, "test-model", seen.Model)

	cv := res.CV
	assert.Equal(t, "Jane", *cv.Personal.FirstName)
	assert.Equal(t, "Doe", *cv.Personal.LastName)
	assert.Equal(t, "jane.doe@uni.edu", *cv.Personal.Email)
	require.Len(t, cv.Publications, 1)
	assert.Equal(t, 2020, *cv.Publications[0].PublicationYear)
	assert.Equal(t, "2010-01-01", *cv.Education[0].StartDate)
	assert.Equal(t, "2014-01-01", *cv.Education[0].EndDate)

	final := lastEvent(t, rec)
	assert.Equal(t, constants.StageComplete, final.Stage)
	b, err := json.Marshal(final)
	require.NoError(t, err)
	var wire struct {
		Result struct {
			Personal     map[string]any   `json:"personal"`
			Publications []map[string]any `json:"publications"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(b, &wire))
	assert.Equal(t, "Jane", wire.Result.Personal["firstName"])
	require.Len(t, wire.Result.Publications, 1)
	for _, pub := range wire.Result.Publications {
		assert.NotContains(t, pub, "email")
		assert.NotContains(t, pub, "phone")
	}
	assert.EqualValues(t, 2020, wire.Result.Publications[0]["publicationYear"])
}

func TestRunIdentifyingReportsRedactions(t *testing.T) {
	rec := &events.Recorder{}
	p := NewProcessor(Config{}, fastExecutor(respond(janeDoeResponse)), nil, nil, nil)
	_, err := p.Run(context.Background(), Document{Name: "jane.pdf", Data: janeDoePDF()}, rec)
	require.NoError(t, err)

	for _, e := range rec.Events() {
		if e.Stage == constants.StageIdentifying {
			assert.Equal(t, 1, e.Details["emails"])
			assert.Equal(t, 1, e.Details["addresses"])
			assert.Equal(t, true, e.Details["email_found"])
			return
		}
	}
	t.Fatal("no identifying event")
}

func TestRunDropsPublicationWithoutYear(t *testing.T) {
	model := respond(`{
	  "personal": {"firstName": "Jane", "lastName": "Doe"},
	  "publications": [
	    {"title": "Title X", "publicationYear": 2020},
	    {"title": "Undated preprint", "publicationYear": null}
	  ]
	}`)
	rec := &events.Recorder{}
	res, err := NewProcessor(Config{}, fastExecutor(model), nil, nil, nil).
		Run(context.Background(), Document{Name: "cv.pdf", Data: janeDoePDF()}, rec)
	require.NoError(t, err)
	require.Len(t, res.CV.Publications, 1)
	require.Len(t, res.Issues, 1)

	var warning *events.Event
	evs := rec.Events()
	for i := range evs {
		if evs[i].Stage == constants.StageWarning {
			warning = &evs[i]
		}
	}
	require.NotNil(t, warning)
	assert.Equal(t, constants.CodeParseError, warning.Code())
	assert.Equal(t, "publications", warning.Details["collection"])
	assert.Equal(t, 1, warning.Details["index"])

	last := lastEvent(t, rec)
	assert.Equal(t, constants.StageComplete, last.Stage)
	assert.Equal(t, 1, last.Details["dropped"])
}

func TestRunModelAlwaysTimesOut(t *testing.T) {
	model := &stubModel{fn: func(ctx context.Context, _ llm.ExtractRequest) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	rec := &events.Recorder{}
	_, err := NewProcessor(Config{}, fastExecutor(model), nil, nil, nil).
		Run(context.Background(), Document{Name: "cv.pdf", Data: janeDoePDF()}, rec)
	require.Error(t, err)
	assert.Equal(t, int32(3), model.calls.Load())

	last := lastEvent(t, rec)
	assert.Equal(t, constants.StageError, last.Stage)
	assert.Equal(t, constants.CodeLLMTransient, last.Code())
	assert.Equal(t, 3, last.Details["attempts"])
	assert.Equal(t, 1, terminals(rec.Events()))

	warnings := 0
	for _, e := range rec.Events() {
		if e.Stage == constants.StageWarning {
			warnings++
		}
	}
	assert.Equal(t, 3, warnings)
}

func TestRunAuthorizationFailureIsNotRetried(t *testing.T) {
	model := &stubModel{fn: func(context.Context, llm.ExtractRequest) ([]byte, error) {
		return nil, common.NewFatalLLMError(common.ErrUnauthorized)
	}}
	rec := &events.Recorder{}
	_, err := NewProcessor(Config{}, fastExecutor(model), nil, nil, nil).
		Run(context.Background(), Document{Name: "cv.pdf", Data: janeDoePDF()}, rec)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Equal(t, int32(1), model.calls.Load())

	evs := rec.Events()
	require.GreaterOrEqual(t, len(evs), 2)
	assert.Equal(t, constants.StageWarning, evs[len(evs)-2].Stage)
	assert.Equal(t, "fatal", evs[len(evs)-2].Details["outcome"])
	assert.Equal(t, constants.StageError, evs[len(evs)-1].Stage)
	assert.Equal(t, constants.CodeLLMFatal, evs[len(evs)-1].Code())
}

func TestRunExtractionFailures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("this is not a pdf")},
		{"zero pages", pdftest.Build(nil)},
		{"blank pages", pdftest.Build([][]pdftest.Run{{}, {}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := respond(janeDoeResponse)
			rec := &events.Recorder{}
			_, err := NewProcessor(Config{}, fastExecutor(model), nil, nil, nil).
				Run(context.Background(), Document{Name: "x.pdf", Data: tt.data}, rec)
			assert.ErrorIs(t, err, common.ErrExtraction)
			assert.Zero(t, model.calls.Load())

			last := lastEvent(t, rec)
			assert.Equal(t, constants.StageError, last.Stage)
			assert.Equal(t, constants.CodeExtraction, last.Code())
			assert.Equal(t, 1, terminals(rec.Events()))
		})
	}
}

func TestRunTooManyPages(t *testing.T) {
	rec := &events.Recorder{}
	_, err := NewProcessor(Config{MaxPages: 1}, fastExecutor(respond(janeDoeResponse)), nil, nil, nil).
		Run(context.Background(), Document{Name: "x.pdf", Data: janeDoePDF()}, rec)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, constants.CodeValidation, lastEvent(t, rec).Code())
}

func TestRunNamelessResponseAborts(t *testing.T) {
	rec := &events.Recorder{}
	_, err := NewProcessor(Config{}, fastExecutor(respond(`{"personal":{"firstName":null,"lastName":null}}`)), nil, nil, nil).
		Run(context.Background(), Document{Name: "x.pdf", Data: janeDoePDF()}, rec)
	assert.ErrorIs(t, err, common.ErrValidation)
	last := lastEvent(t, rec)
	assert.Equal(t, constants.StageError, last.Stage)
	assert.Equal(t, constants.CodeValidation, last.Code())
}

func TestRunPersistsAndReportsDuplicate(t *testing.T) {
	store := &memStore{emails: map[string]bool{}}
	p := NewProcessor(Config{}, fastExecutor(respond(janeDoeResponse)), store, nil, nil)

	rec := &events.Recorder{}
	res, err := p.Run(context.Background(), Document{Name: "jane.pdf", Data: janeDoePDF()}, rec)
	require.NoError(t, err)
	require.NotNil(t, res.Researcher)
	require.Len(t, store.created, 1)
	assert.Equal(t, "jane.pdf", store.created[0].SourceName)
	assert.Len(t, store.created[0].ContentHash, 64)
	assert.Equal(t, res.Researcher.ID.String(), lastEvent(t, rec).Details["researcher_id"])

	store.emails["jane.doe@uni.edu"] = true
	rec = &events.Recorder{}
	_, err = p.Run(context.Background(), Document{Name: "jane-again.pdf", Data: janeDoePDF()}, rec)
	var de *common.DuplicateError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "jane.doe@uni.edu", de.Key)
	last := lastEvent(t, rec)
	assert.Equal(t, constants.StageError, last.Stage)
	assert.Equal(t, constants.CodeDuplicate, last.Code())
	assert.Len(t, store.created, 1)
}

func TestRunPropagatesStoreDuplicate(t *testing.T) {
	dup := &common.DuplicateError{Entity: "researcher", Key: "jane.doe@uni.edu", Cause: errors.New("UNIQUE constraint failed")}
	store := &memStore{emails: map[string]bool{}, create: func(*entity.StructuredCV) error { return dup }}
	rec := &events.Recorder{}
	_, err := NewProcessor(Config{}, fastExecutor(respond(janeDoeResponse)), store, nil, nil).
		Run(context.Background(), Document{Name: "jane.pdf", Data: janeDoePDF()}, rec)
	assert.Equal(t, error(dup), err)
	assert.Equal(t, constants.CodeDuplicate, lastEvent(t, rec).Code())
}

func TestRunRecoversPanics(t *testing.T) {
	store := &memStore{emails: map[string]bool{}, create: func(*entity.StructuredCV) error { panic("boom") }}
	rec := &events.Recorder{}
	_, err := NewProcessor(Config{}, fastExecutor(respond(janeDoeResponse)), store, nil, nil).
		Run(context.Background(), Document{Name: "jane.pdf", Data: janeDoePDF()}, rec)
	assert.ErrorIs(t, err, common.ErrInternal)
	last := lastEvent(t, rec)
	assert.Equal(t, constants.StageError, last.Stage)
	assert.True(t, strings.Contains(last.Message, "boom"))
	assert.Equal(t, 1, terminals(rec.Events()))
}

func TestRunCancelledDuringModelCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &stubModel{fn: func(actx context.Context, _ llm.ExtractRequest) ([]byte, error) {
		cancel()
		<-actx.Done()
		return nil, actx.Err()
	}}
	exec := llm.NewExecutor(model, llm.ExecutorConfig{AttemptTimeout: time.Second, MaxRetries: 2, RetryDelay: time.Millisecond}, nil)
	rec := &events.Recorder{}
	_, err := NewProcessor(Config{}, exec, nil, nil, nil).Run(ctx, Document{Name: "x.pdf", Data: janeDoePDF()}, rec)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), model.calls.Load())
	assert.Equal(t, constants.CodeCanceled, lastEvent(t, rec).Code())
	assert.Equal(t, 1, terminals(rec.Events()))
}

func TestRunDeadlineDuringModelCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	model := &stubModel{fn: func(actx context.Context, _ llm.ExtractRequest) ([]byte, error) {
		<-actx.Done()
		return nil, actx.Err()
	}}
	exec := llm.NewExecutor(model, llm.ExecutorConfig{AttemptTimeout: 10 * time.Second, MaxRetries: 2, RetryDelay: time.Millisecond}, nil)
	rec := &events.Recorder{}
	_, err := NewProcessor(Config{}, exec, nil, nil, nil).Run(ctx, Document{Name: "x.pdf", Data: janeDoePDF()}, rec)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), model.calls.Load())

	evs := rec.Events()
	require.GreaterOrEqual(t, len(evs), 2)
	warning := evs[len(evs)-2]
	assert.Equal(t, constants.StageWarning, warning.Stage)
	assert.Equal(t, constants.CodeCanceled, warning.Code())

	last := evs[len(evs)-1]
	assert.Equal(t, constants.StageError, last.Stage)
	assert.Equal(t, constants.CodeCanceled, last.Code())
	assert.Equal(t, 1, terminals(evs))
}

func TestRunNamelessResponseReportsAttempt(t *testing.T) {
	rec := &events.Recorder{}
	_, err := NewProcessor(Config{}, fastExecutor(respond(`{"personal":{"firstName":null,"lastName":null}}`)), nil, nil, nil).
		Run(context.Background(), Document{Name: "x.pdf", Data: janeDoePDF()}, rec)
	require.Error(t, err)

	evs := rec.Events()
	require.GreaterOrEqual(t, len(evs), 2)
	assert.Equal(t, constants.StageWarning, evs[len(evs)-2].Stage)
	assert.Equal(t, constants.CodeValidation, evs[len(evs)-2].Code())
	assert.Equal(t, constants.CodeValidation, evs[len(evs)-1].Code())
}

func TestRunConcurrentDocumentsAreIndependent(t *testing.T) {
	p := NewProcessor(Config{}, fastExecutor(respond(janeDoeResponse)), nil, nil, nil)
	var wg sync.WaitGroup
	recs := make([]*events.Recorder, 8)
	for i := range recs {
		recs[i] = &events.Recorder{}
		wg.Add(1)
		go func(rec *events.Recorder) {
			defer wg.Done()
			_, _ = p.Run(context.Background(), Document{Name: "jane.pdf", Data: janeDoePDF()}, rec)
		}(recs[i])
	}
	wg.Wait()
	for _, rec := range recs {
		assert.Equal(t, constants.StageComplete, lastEvent(t, rec).Stage)
		assert.Equal(t, 1, terminals(rec.Events()))
	}
}
