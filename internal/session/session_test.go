package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/spigell/interview-runner/internal/integrity"
	"github.com/spigell/interview-runner/internal/interview"
	"github.com/spigell/interview-runner/internal/media"
	"github.com/spigell/interview-runner/internal/talent"
)

type fakeAPI struct {
	mu          sync.Mutex
	iv          *interview.Interview
	getErr      error
	startErr    error
	submitErr   error
	completeErr error
	blockSubmit bool
	completion  *talent.Completion

	calls     []string
	submitted []interview.Response
	events    []interview.EyeTrackingEvent
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) GetInterview(_ context.Context, _ string) (*interview.Interview, error) {
	f.record("get")
	if f.getErr != nil {
		return nil, f.getErr
	}
	cp := *f.iv
	return &cp, nil
}

func (f *fakeAPI) Start(_ context.Context, _ string) error {
	f.record("start")
	return f.startErr
}

func (f *fakeAPI) SubmitResponse(ctx context.Context, _ string, resp interview.Response) error {
	f.record("submit_response")
	if f.blockSubmit {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.submitErr != nil {
		return f.submitErr
	}
	f.mu.Lock()
	f.submitted = append(f.submitted, resp)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) Complete(_ context.Context, _ string) (*talent.Completion, error) {
	f.record("complete")
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.completion, nil
}

func (f *fakeAPI) AddEyeTrackingEvent(_ context.Context, _ string, ev interview.EyeTrackingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type fakeTrack struct {
	kind media.Kind

	mu      sync.Mutex
	enabled bool
	stopped int
}

func (t *fakeTrack) Kind() media.Kind { return t.kind }
func (t *fakeTrack) Label() string    { return string(t.kind) }

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *fakeTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped++
	return nil
}

func (t *fakeTrack) stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeSource struct {
	mu     sync.Mutex
	err    error
	opens  int
	tracks []*fakeTrack
}

func (s *fakeSource) Open(_ context.Context, c media.Constraints) ([]media.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.err != nil {
		return nil, s.err
	}
	s.tracks = []*fakeTrack{
		{kind: media.KindVideo, enabled: c.Video},
		{kind: media.KindAudio, enabled: c.Audio},
	}
	out := make([]media.Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeSource) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

type alwaysDetector struct{}

func (alwaysDetector) Detect(context.Context) (integrity.Signal, bool) {
	return integrity.Signal{Type: interview.EventLookAway, Duration: 2 * time.Second}, true
}

func threeQuestions(status interview.Status, answered int) *interview.Interview {
	iv := &interview.Interview{
		ID:     "iv-1",
		Status: status,
		Questions: []interview.Question{
			{Question: "Tell me about yourself", Category: "behavioral"},
			{Question: "Explain a hash map", Category: "technical"},
			{Question: "Describe a conflict", Category: "behavioral"},
		},
	}
	for i := 0; i < answered; i++ {
		iv.Responses = append(iv.Responses, interview.Response{QuestionID: i, Response: "earlier"})
	}
	return iv
}

func newTestSession(t *testing.T, api *fakeAPI, src *fakeSource, cfg Config, det integrity.Detector) *Session {
	t.Helper()

	log := zaptest.NewLogger(t)
	s, err := New("iv-1", cfg, Deps{
		API:      api,
		Media:    media.NewController(src, true, true, log),
		Detector: det,
		Logger:   log,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestLoadPositionsByStatus(t *testing.T) {
	tests := []struct {
		name      string
		iv        *interview.Interview
		wantGate  bool
		wantIndex int
		wantOK    bool
		resuming  bool
	}{
		{name: "not started", iv: threeQuestions(interview.StatusNotStarted, 0), wantGate: true, wantIndex: 0, wantOK: true},
		{name: "in progress", iv: threeQuestions(interview.StatusInProgress, 2), wantGate: true, wantIndex: 2, wantOK: true, resuming: true},
		{name: "completed", iv: threeQuestions(interview.StatusCompleted, 3), wantGate: false, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{iv: tt.iv}
			s := newTestSession(t, api, &fakeSource{}, Config{}, nil)

			if err := s.Load(context.Background()); err != nil {
				t.Fatalf("load: %v", err)
			}
			if got := s.NeedsGate(); got != tt.wantGate {
				t.Fatalf("expected gate %v, got %v", tt.wantGate, got)
			}
			if got := s.Resuming(); got != tt.resuming {
				t.Fatalf("expected resuming %v, got %v", tt.resuming, got)
			}
			index, _, ok := s.Current()
			if ok != tt.wantOK {
				t.Fatalf("expected current ok %v, got %v", tt.wantOK, ok)
			}
			if ok && index != tt.wantIndex {
				t.Fatalf("expected index %d, got %d", tt.wantIndex, index)
			}
		})
	}
}

func TestLoadFailureIsUnavailable(t *testing.T) {
	api := &fakeAPI{getErr: talent.ErrNotFound}
	s := newTestSession(t, api, &fakeSource{}, Config{}, nil)

	err := s.Load(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !errors.Is(err, talent.ErrNotFound) {
		t.Fatalf("expected cause to be kept, got %v", err)
	}
	if api.count("get") != 1 {
		t.Fatalf("expected a single read, got %d", api.count("get"))
	}
}

func TestSubmitAdvancesWithoutCompleting(t *testing.T) {
	api := &fakeAPI{iv: threeQuestions(interview.StatusNotStarted, 0)}
	s := newTestSession(t, api, &fakeSource{}, Config{}, nil)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}

	result, err := s.Submit(context.Background(), "  A  ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Index != 0 || result.Completed {
		t.Fatalf("unexpected result %+v", result)
	}

	index, q, ok := s.Current()
	if !ok || index != 1 || q.Question != "Explain a hash map" {
		t.Fatalf("expected to move to question 1, got %d %q %v", index, q.Question, ok)
	}
	if api.count("complete") != 0 {
		t.Fatalf("complete must not be called before the last question")
	}
	if api.submitted[0].Response != "A" || api.submitted[0].QuestionID != 0 {
		t.Fatalf("unexpected submitted response %+v", api.submitted[0])
	}
}

func TestEndToEndThreeQuestions(t *testing.T) {
	overall := 85.0
	total := 42
	api := &fakeAPI{
		iv:         threeQuestions(interview.StatusNotStarted, 0),
		completion: &talent.Completion{Analysis: &interview.Analysis{OverallScore: &overall}, TotalDuration: &total},
	}
	src := &fakeSource{}
	s := newTestSession(t, api, src, Config{}, nil)

	ctx := context.Background()
	if err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}

	var last *SubmitResult
	for _, answer := range []string{"A", "B", "C"} {
		res, err := s.Submit(ctx, answer)
		if err != nil {
			t.Fatalf("submit %q: %v", answer, err)
		}
		last = res
	}

	if !last.Completed || last.Index != 2 {
		t.Fatalf("expected the last submit to complete, got %+v", last)
	}
	if got := api.count("submit_response"); got != 3 {
		t.Fatalf("expected 3 submit calls, got %d", got)
	}
	if got := api.count("complete"); got != 1 {
		t.Fatalf("expected 1 complete call, got %d", got)
	}
	if s.Status() != interview.StatusCompleted {
		t.Fatalf("expected completed status, got %s", s.Status())
	}

	iv := s.Interview()
	if iv.Analysis == nil || *iv.Analysis.OverallScore != 85 || *iv.TotalDuration != 42 {
		t.Fatalf("analysis not stored: %+v", iv)
	}
	if len(iv.Responses) != 3 {
		t.Fatalf("expected 3 local responses, got %d", len(iv.Responses))
	}

	if _, err := s.Submit(ctx, "D"); !errors.Is(err, interview.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition after completion, got %v", err)
	}
	if err := s.Complete(ctx); !errors.Is(err, interview.ErrInvalidTransition) {
		t.Fatalf("expected second complete to be rejected, got %v", err)
	}
	if api.count("submit_response") != 3 || api.count("complete") != 1 {
		t.Fatalf("no further calls expected, got %v", api.calls)
	}

	for _, track := range src.tracks {
		if track.stops() != 1 {
			t.Fatalf("expected %s track to be stopped once, got %d", track.kind, track.stops())
		}
	}
}

func TestSubmitGuards(t *testing.T) {
	api := &fakeAPI{iv: threeQuestions(interview.StatusNotStarted, 0)}
	s := newTestSession(t, api, &fakeSource{}, Config{}, nil)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, err := s.Submit(context.Background(), "   "); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if _, err := s.Submit(context.Background(), "A"); !errors.Is(err, interview.ErrInvalidTransition) {
		t.Fatalf("expected submit before start to be rejected, got %v", err)
	}
	if api.count("submit_response") != 0 {
		t.Fatalf("no submit call expected")
	}
}

func TestSubmitFailureKeepsQuestion(t *testing.T) {
	api := &fakeAPI{iv: threeQuestions(interview.StatusNotStarted, 0), submitErr: errors.New("backend down")}
	s := newTestSession(t, api, &fakeSource{}, Config{}, nil)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if _, err := s.Submit(context.Background(), "A"); err == nil {
		t.Fatalf("expected the write failure to surface")
	}
	if index, _, _ := s.Current(); index != 0 {
		t.Fatalf("expected to stay on question 0, got %d", index)
	}

	api.mu.Lock()
	api.submitErr = nil
	api.mu.Unlock()

	if _, err := s.Submit(context.Background(), "A"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if index, _, _ := s.Current(); index != 1 {
		t.Fatalf("expected to move on after retry, got %d", index)
	}
}

func TestToggleBeforeBeginCreatesNoStream(t *testing.T) {
	api := &fakeAPI{iv: threeQuestions(interview.StatusNotStarted, 0)}
	src := &fakeSource{}
	s := newTestSession(t, api, src, Config{}, nil)

	if s.ToggleVideo() {
		t.Fatalf("expected video to be disabled after toggle")
	}
	if s.ToggleAudio() {
		t.Fatalf("expected audio to be disabled after toggle")
	}
	s.ToggleAudio()

	if src.openCount() != 0 {
		t.Fatalf("toggle must not open devices")
	}
	if s.VideoEnabled() || !s.AudioEnabled() {
		t.Fatalf("unexpected flags video=%v audio=%v", s.VideoEnabled(), s.AudioEnabled())
	}
}

func TestBeginMediaFailureSkipsStart(t *testing.T) {
	api := &fakeAPI{iv: threeQuestions(interview.StatusNotStarted, 0)}
	s := newTestSession(t, api, &fakeSource{err: errors.New("permission denied")}, Config{}, nil)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	err := s.Begin(context.Background())
	if !errors.Is(err, media.ErrUnavailable) {
		t.Fatalf("expected media.ErrUnavailable, got %v", err)
	}
	if api.count("start") != 0 {
		t.Fatalf("start must not be called without media")
	}
	if s.Status() != interview.StatusNotStarted {
		t.Fatalf("expected status to stay not started, got %s", s.Status())
	}
}

func TestResumeSkipsStartCall(t *testing.T) {
	api := &fakeAPI{iv: threeQuestions(interview.StatusInProgress, 1)}
	s := newTestSession(t, api, &fakeSource{}, Config{}, nil)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if api.count("start") != 0 {
		t.Fatalf("resumed interview must not be started again")
	}

	res, err := s.Submit(context.Background(), "B")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Index != 1 {
		t.Fatalf("expected to answer question 1, got %d", res.Index)
	}
}

func TestPendingCompletionAfterResume(t *testing.T) {
	api := &fakeAPI{iv: threeQuestions(interview.StatusInProgress, 3)}
	s := newTestSession(t, api, &fakeSource{}, Config{}, nil)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !s.PendingCompletion() {
		t.Fatalf("expected completion to be pending")
	}
	if err := s.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if s.Status() != interview.StatusCompleted {
		t.Fatalf("expected completed, got %s", s.Status())
	}
}

func TestCloseStopsTimersAndMedia(t *testing.T) {
	api := &fakeAPI{iv: threeQuestions(interview.StatusNotStarted, 0)}
	src := &fakeSource{}
	cfg := Config{
		TimerInterval: 2 * time.Millisecond,
		Integrity:     integrity.Config{Interval: 2 * time.Millisecond},
	}
	s := newTestSession(t, api, src, cfg, alwaysDetector{})

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for (s.Elapsed() == 0 || s.Warnings() == 0) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.Elapsed() == 0 || s.Warnings() == 0 {
		t.Fatalf("expected both periodic tasks to tick before close")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	elapsed, warnings := s.Elapsed(), s.Warnings()
	time.Sleep(20 * time.Millisecond)
	if s.Elapsed() != elapsed || s.Warnings() != warnings {
		t.Fatalf("periodic tasks kept running after close")
	}

	for _, track := range src.tracks {
		if track.stops() != 1 {
			t.Fatalf("expected %s track to be stopped once, got %d", track.kind, track.stops())
		}
	}
}

func TestCloseAbortsInFlightSubmit(t *testing.T) {
	api := &fakeAPI{iv: threeQuestions(interview.StatusNotStarted, 0), blockSubmit: true}
	s := newTestSession(t, api, &fakeSource{}, Config{}, nil)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "A")
		errCh <- err
	}()

	for api.count("submit_response") == 0 {
		time.Sleep(time.Millisecond)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("submit was not aborted by close")
	}

	if len(s.Interview().Responses) != 0 {
		t.Fatalf("no response must be recorded after close")
	}
}

func TestSubmitAcceptsResponseSavedByLostAttempt(t *testing.T) {
	api := &fakeAPI{iv: threeQuestions(interview.StatusNotStarted, 0)}
	s := newTestSession(t, api, &fakeSource{}, Config{}, nil)

	ctx := context.Background()
	if err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}

	// The backend stored the first attempt and now rejects the repeat.
	api.mu.Lock()
	api.iv = threeQuestions(interview.StatusInProgress, 1)
	api.submitErr = &talent.APIError{StatusCode: 400, Status: "400 Bad Request", Message: "expected questionId 1, got 0"}
	api.mu.Unlock()

	result, err := s.Submit(ctx, "A")
	if err != nil {
		t.Fatalf("expected the saved answer to be accepted, got %v", err)
	}
	if result.Index != 0 || result.Completed {
		t.Fatalf("unexpected result %+v", result)
	}
	if index, _, _ := s.Current(); index != 1 {
		t.Fatalf("expected to move to question 1, got %d", index)
	}
	if got := s.Interview().Responses[0].Response; got != "earlier" {
		t.Fatalf("expected the backend copy of the response, got %q", got)
	}
	if api.count("get") != 2 {
		t.Fatalf("expected one extra read, got %d reads", api.count("get"))
	}
}

func TestSubmitRejectedWithoutSavedResponseKeepsQuestion(t *testing.T) {
	api := &fakeAPI{iv: threeQuestions(interview.StatusNotStarted, 0)}
	s := newTestSession(t, api, &fakeSource{}, Config{}, nil)

	ctx := context.Background()
	if err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}

	api.mu.Lock()
	api.submitErr = &talent.APIError{StatusCode: 409, Status: "409 Conflict"}
	api.mu.Unlock()

	var apiErr *talent.APIError
	if _, err := s.Submit(ctx, "A"); !errors.As(err, &apiErr) || apiErr.StatusCode != 409 {
		t.Fatalf("expected the conflict to surface, got %v", err)
	}
	if index, _, _ := s.Current(); index != 0 {
		t.Fatalf("expected to stay on question 0, got %d", index)
	}
}

func TestCompleteAdoptsAnalysisAfterLostReply(t *testing.T) {
	overall := 71.0
	total := 300
	api := &fakeAPI{iv: threeQuestions(interview.StatusInProgress, 2)}
	s := newTestSession(t, api, &fakeSource{}, Config{}, nil)

	ctx := context.Background()
	if err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}

	done := threeQuestions(interview.StatusCompleted, 3)
	done.Analysis = &interview.Analysis{OverallScore: &overall}
	done.TotalDuration = &total

	api.mu.Lock()
	api.iv = done
	api.completeErr = &talent.APIError{StatusCode: 409, Status: "409 Conflict", Message: "invalid transition"}
	api.mu.Unlock()

	result, err := s.Submit(ctx, "C")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Completed || s.Status() != interview.StatusCompleted {
		t.Fatalf("expected completion, got %+v status %s", result, s.Status())
	}
	got := s.Interview()
	if got.Analysis == nil || *got.Analysis.OverallScore != 71 || *got.TotalDuration != 300 {
		t.Fatalf("expected the backend analysis, got %+v", got)
	}
}

func TestBeginRefusesInterviewWithoutQuestions(t *testing.T) {
	api := &fakeAPI{iv: &interview.Interview{ID: "iv-1", Status: interview.StatusNotStarted}}
	src := &fakeSource{}
	s := newTestSession(t, api, src, Config{}, nil)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Begin(context.Background()); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	if api.count("start") != 0 || src.openCount() != 0 {
		t.Fatalf("nothing must be started, start calls %d opens %d", api.count("start"), src.openCount())
	}
	if s.Status() != interview.StatusNotStarted {
		t.Fatalf("unexpected status %s", s.Status())
	}
}

func TestActionsBeforeLoad(t *testing.T) {
	api := &fakeAPI{iv: threeQuestions(interview.StatusNotStarted, 0)}
	s := newTestSession(t, api, &fakeSource{}, Config{}, nil)

	if err := s.Begin(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	if err := s.Complete(context.Background()); !errors.Is(err, ErrNotLoaded) || errors.Is(err, ErrNotBegun) {
		t.Fatalf("expected ErrNotLoaded only, got %v", err)
	}
}
