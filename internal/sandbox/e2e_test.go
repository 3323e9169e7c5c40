package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/interview-runner/internal/ai"
	"github.com/spigell/interview-runner/internal/interview"
	"github.com/spigell/interview-runner/internal/media"
	"github.com/spigell/interview-runner/internal/session"
	"github.com/spigell/interview-runner/internal/talent"
)

type nopTrack struct{ kind media.Kind }

func (t nopTrack) Kind() media.Kind { return t.kind }
func (t nopTrack) Label() string    { return string(t.kind) }
func (t nopTrack) Enabled() bool    { return true }
func (t nopTrack) SetEnabled(bool)  {}
func (t nopTrack) Stop() error      { return nil }

type nopSource struct{}

func (nopSource) Open(context.Context, media.Constraints) ([]media.Track, error) {
	return []media.Track{nopTrack{kind: media.KindVideo}, nopTrack{kind: media.KindAudio}}, nil
}

func TestSessionAgainstSandbox(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	svc := NewService(NewMemoryStore(), ai.Heuristic{}, log)
	srv := httptest.NewServer(NewRouter(Config{}, svc, log))
	t.Cleanup(srv.Close)

	created, err := svc.Create(ctx, CreateRequest{
		Company: "Acme",
		Questions: []interview.Question{
			{Question: "A?", Category: "technical"},
			{Question: "B?", Category: "behavioral"},
			{Question: "C?", Category: "communication"},
		},
	})
	require.NoError(t, err)

	client := talent.New(log, "sandbox-token")
	client.APIURL = srv.URL

	s, err := session.New(created.ID, session.Config{}, session.Deps{
		API:   client,
		Media: media.NewController(nopSource{}, true, true, log),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Load(ctx))
	require.True(t, s.NeedsGate())
	require.NoError(t, s.Begin(ctx))

	var last *session.SubmitResult
	for _, answer := range []string{"A", "B", "C"} {
		last, err = s.Submit(ctx, answer)
		require.NoError(t, err)
	}
	require.True(t, last.Completed)
	require.Equal(t, interview.StatusCompleted, s.Status())
	require.NotNil(t, s.Interview().Analysis)

	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, interview.StatusCompleted, stored.Status)
	require.Len(t, stored.Responses, 3)
	for i, resp := range stored.Responses {
		require.Equal(t, i, resp.QuestionID)
	}

	reloaded, err := client.GetInterview(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, interview.StatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.Analysis)

	err = client.AddEyeTrackingEvent(ctx, created.ID, interview.EyeTrackingEvent{Type: interview.EventLookAway, Duration: 1})
	var apiErr *talent.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 409, apiErr.StatusCode)
}

// lossyReplies applies every write but answers 502 to the first write of each
// listed action, as if the reply was lost on the way back.
type lossyReplies struct {
	next http.Handler

	mu      sync.Mutex
	dropped map[string]bool
	actions map[string]bool
}

func (l *lossyReplies) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		l.next.ServeHTTP(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	var req struct {
		Action string `json:"action"`
	}
	_ = json.Unmarshal(body, &req)

	rec := httptest.NewRecorder()
	l.next.ServeHTTP(rec, r)

	l.mu.Lock()
	drop := l.actions[req.Action] && !l.dropped[req.Action] && rec.Code == http.StatusOK
	if drop {
		l.dropped[req.Action] = true
	}
	l.mu.Unlock()

	if drop {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	for k, v := range rec.Header() {
		w.Header()[k] = v
	}
	w.WriteHeader(rec.Code)
	_, _ = w.Write(rec.Body.Bytes())
}

func TestSessionSurvivesLostWriteReplies(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	svc := NewService(NewMemoryStore(), ai.Heuristic{}, log)
	srv := httptest.NewServer(&lossyReplies{
		next:    NewRouter(Config{}, svc, log),
		dropped: map[string]bool{},
		actions: map[string]bool{"submit_response": true, "complete": true},
	})
	t.Cleanup(srv.Close)

	created, err := svc.Create(ctx, CreateRequest{
		Company: "Acme",
		Questions: []interview.Question{
			{Question: "A?", Category: "technical"},
			{Question: "B?", Category: "behavioral"},
		},
	})
	require.NoError(t, err)

	client := talent.New(log, "")
	client.APIURL = srv.URL
	client.RetryBackoff = time.Millisecond

	s, err := session.New(created.ID, session.Config{}, session.Deps{
		API:   client,
		Media: media.NewController(nopSource{}, true, true, log),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.Begin(ctx))

	first, err := s.Submit(ctx, "answer A")
	require.NoError(t, err)
	require.Equal(t, 0, first.Index)

	index, _, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, 1, index)

	last, err := s.Submit(ctx, "answer B")
	require.NoError(t, err)
	require.True(t, last.Completed)
	require.Equal(t, interview.StatusCompleted, s.Status())
	require.NotNil(t, s.Interview().Analysis)

	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, stored.Responses, 2)
	require.Equal(t, "answer A", stored.Responses[0].Response)
	require.Equal(t, interview.StatusCompleted, stored.Status)
}
