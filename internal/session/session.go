package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-runner/internal/integrity"
	"github.com/spigell/interview-runner/internal/interview"
	"github.com/spigell/interview-runner/internal/logger"
	"github.com/spigell/interview-runner/internal/media"
	"github.com/spigell/interview-runner/internal/talent"
)

var (
	// ErrUnavailable wraps any failure to load the interview. Callers leave the flow on it.
	ErrUnavailable      = errors.New("interview unavailable")
	ErrEmptyResponse    = errors.New("response is empty")
	ErrSubmitInProgress = errors.New("another request is in progress")
	ErrNotLoaded        = errors.New("interview is not loaded")
	ErrNoQuestions      = errors.New("interview has no questions")
	ErrNotBegun         = errors.New("interview session has not begun")
	ErrClosed           = errors.New("interview session is closed")
)

// API is the subset of the talent client the session drives.
type API interface {
	GetInterview(ctx context.Context, id string) (*interview.Interview, error)
	Start(ctx context.Context, id string) error
	SubmitResponse(ctx context.Context, id string, resp interview.Response) error
	Complete(ctx context.Context, id string) (*talent.Completion, error)
	AddEyeTrackingEvent(ctx context.Context, id string, ev interview.EyeTrackingEvent) error
}

type Config struct {
	TimerInterval time.Duration
	Integrity     integrity.Config
}

type Deps struct {
	API      API
	Media    *media.Controller
	Detector integrity.Detector
	Logger   *zap.Logger
}

// SubmitResult describes an accepted response.
type SubmitResult struct {
	Index     int
	Completed bool
}

// Session owns the media tracks, the timer and the integrity monitor of one
// interview run. Close releases all of them.
type Session struct {
	id      string
	api     API
	media   *media.Controller
	timer   *Timer
	monitor *integrity.Monitor
	logger  *zap.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	iv            *interview.Interview
	nav           *Navigator
	questionStart time.Time
	begun         bool
	busy          bool
	closed        bool
	closeErr      error
}

func New(id string, cfg Config, deps Deps) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("interview id is required")
	}
	if deps.API == nil {
		return nil, errors.New("interview API is required")
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = logger.ForInterview(log, id)

	controller := deps.Media
	if controller == nil {
		controller = media.NewController(nil, false, false, log)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:     id,
		api:    deps.API,
		media:  controller,
		timer:  NewTimer(cfg.TimerInterval),
		logger: log,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		nav:    NewNavigator(0, 0),
	}

	sink := integrity.SinkFunc(func(ctx context.Context, ev interview.EyeTrackingEvent) error {
		return s.api.AddEyeTrackingEvent(ctx, s.id, ev)
	})
	s.monitor = integrity.NewMonitor(cfg.Integrity, deps.Detector, sink, log)

	return s, nil
}

// bind returns a context cancelled by either ctx or Close.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Load fetches the interview once and positions the navigator.
func (s *Session) Load(ctx context.Context) error {
	ctx, cancel := s.bind(ctx)
	defer cancel()

	iv, err := s.api.GetInterview(ctx, s.id)
	if err != nil {
		s.logger.Error("loading interview", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.iv = iv
	switch iv.Status {
	case interview.StatusInProgress:
		s.nav = NewNavigator(len(iv.Questions), iv.ResumeIndex())
	case interview.StatusCompleted:
		s.nav = NewNavigator(len(iv.Questions), len(iv.Questions))
	default:
		s.nav = NewNavigator(len(iv.Questions), 0)
	}

	s.logger.Info("interview loaded",
		zap.String(logger.FieldStatus, iv.Status.String()),
		zap.Int(logger.FieldQuestionIndex, s.nav.Index()),
		zap.Int("questions", s.nav.Total()),
	)

	return nil
}

// NeedsGate reports whether the start gate must be shown before questions.
func (s *Session) NeedsGate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iv != nil && s.iv.Status != interview.StatusCompleted
}

// Resuming reports whether the loaded interview was already in progress.
func (s *Session) Resuming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iv != nil && s.iv.Status == interview.StatusInProgress && !s.begun
}

// Begin acquires media, starts the interview on the backend unless it is being
// resumed, and starts the timer and the integrity monitor.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	if err := s.usable(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.begun {
		s.mu.Unlock()
		return nil
	}
	if s.busy {
		s.mu.Unlock()
		return ErrSubmitInProgress
	}

	if len(s.iv.Questions) == 0 {
		s.mu.Unlock()
		return ErrNoQuestions
	}

	status := s.iv.Status
	var next interview.Status
	if status == interview.StatusInProgress {
		next = status
	} else {
		var err error
		if next, err = interview.Transition(status, interview.EventStart); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.busy = true
	s.mu.Unlock()

	err := s.begin(ctx, status)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false

	if err != nil {
		return err
	}
	if s.closed {
		_ = s.stopActivity()
		return ErrClosed
	}

	s.iv.Status = next
	if s.iv.StartedAt == nil {
		started := s.now()
		s.iv.StartedAt = &started
	}
	s.begun = true
	s.timer.Start()
	s.monitor.Start(s.ctx)
	s.questionStart = s.now()

	s.logger.Info("interview begun",
		zap.Bool("resumed", status == interview.StatusInProgress),
		zap.Int(logger.FieldQuestionIndex, s.nav.Index()),
	)

	return nil
}

func (s *Session) begin(ctx context.Context, status interview.Status) error {
	ctx, cancel := s.bind(ctx)
	defer cancel()

	if err := s.media.Acquire(ctx); err != nil {
		return err
	}

	if status == interview.StatusInProgress {
		return nil
	}

	if err := s.api.Start(ctx, s.id); err != nil {
		if rejected(err) {
			if remote, rerr := s.fetch(ctx); rerr == nil && remote.Status == interview.StatusInProgress {
				s.logger.Info("interview already started, continuing")
				return nil
			}
		}
		if relErr := s.media.Release(); relErr != nil {
			s.logger.Warn("releasing media after failed start", zap.Error(relErr))
		}
		return fmt.Errorf("starting interview: %w", err)
	}

	return nil
}

// Submit sends the answer for the current question. After the last answer it
// completes the interview.
func (s *Session) Submit(ctx context.Context, answer string) (*SubmitResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, ErrEmptyResponse
	}

	s.mu.Lock()
	if err := s.usable(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if _, err := interview.Transition(s.iv.Status, interview.EventSubmit); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !s.begun {
		s.mu.Unlock()
		return nil, ErrNotBegun
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	if s.nav.Done() || !s.iv.CanAppend() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: every question is answered", interview.ErrInvalidTransition)
	}

	index := s.nav.Index()
	resp := interview.NewResponse(index, s.iv.Questions[index].Question, answer, s.questionStart, s.now())
	s.busy = true
	s.mu.Unlock()

	err := s.submit(ctx, resp)
	if err != nil && rejected(err) {
		if saved, ok := s.savedResponse(ctx, index); ok {
			s.logger.Info("response already saved, continuing", zap.Int(logger.FieldQuestionIndex, index))
			resp, err = saved, nil
		}
	}

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("submitting response", zap.Int(logger.FieldQuestionIndex, index), zap.Error(err))
		return nil, fmt.Errorf("submitting response %d: %w", index, err)
	}
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}

	s.iv.Responses = append(s.iv.Responses, resp)
	s.nav.Advance()
	s.questionStart = s.now()
	last := s.nav.Done()
	s.mu.Unlock()

	s.logger.Info("response submitted",
		zap.Int(logger.FieldQuestionIndex, index),
		zap.Int("duration", resp.Duration),
	)

	result := &SubmitResult{Index: index}
	if !last {
		return result, nil
	}

	if err := s.Complete(ctx); err != nil {
		return result, err
	}
	result.Completed = true

	return result, nil
}

// rejected reports whether the backend refused a write in a way an earlier,
// unacknowledged attempt of the same write would explain.
func rejected(err error) bool {
	var apiErr *talent.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusConflict
}

func (s *Session) fetch(ctx context.Context) (*interview.Interview, error) {
	ctx, cancel := s.bind(ctx)
	defer cancel()
	return s.api.GetInterview(ctx, s.id)
}

// savedResponse returns the backend's copy of the response at index when it
// already holds one.
func (s *Session) savedResponse(ctx context.Context, index int) (interview.Response, bool) {
	remote, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("re-reading interview after rejected write", zap.Error(err))
		return interview.Response{}, false
	}
	if len(remote.Responses) <= index {
		return interview.Response{}, false
	}
	return remote.Responses[index], true
}

func (s *Session) submit(ctx context.Context, resp interview.Response) error {
	ctx, cancel := s.bind(ctx)
	defer cancel()
	return s.api.SubmitResponse(ctx, s.id, resp)
}

// PendingCompletion reports whether every question is answered but the
// interview has not been completed yet.
func (s *Session) PendingCompletion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iv != nil && s.iv.Status == interview.StatusInProgress && s.nav.Done()
}

// Complete finalizes the interview, stores the returned analysis and releases
// every session resource except the loaded interview.
func (s *Session) Complete(ctx context.Context) error {
	s.mu.Lock()
	if err := s.usable(); err != nil {
		s.mu.Unlock()
		return err
	}
	next, err := interview.Transition(s.iv.Status, interview.EventComplete)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.nav.Done() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d questions answered",
			interview.ErrInvalidTransition, s.nav.Index(), s.nav.Total())
	}
	if s.busy {
		s.mu.Unlock()
		return ErrSubmitInProgress
	}
	s.busy = true
	s.mu.Unlock()

	done, err := s.complete(ctx)
	if err != nil && rejected(err) {
		if remote, rerr := s.fetch(ctx); rerr == nil && remote.Status == interview.StatusCompleted {
			s.logger.Info("interview already completed, continuing")
			done, err = &talent.Completion{Analysis: remote.Analysis, TotalDuration: remote.TotalDuration}, nil
		}
	}

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("completing interview", zap.Error(err))
		return fmt.Errorf("completing interview: %w", err)
	}
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	s.iv.Status = next
	completedAt := s.now()
	s.iv.CompletedAt = &completedAt
	if done != nil {
		s.iv.Analysis = done.Analysis
		s.iv.TotalDuration = done.TotalDuration
	}
	if s.iv.TotalDuration == nil {
		elapsed := s.timer.Elapsed()
		s.iv.TotalDuration = &elapsed
	}
	total := *s.iv.TotalDuration
	if err := s.stopActivity(); err != nil {
		s.logger.Warn("releasing media", zap.Error(err))
	}
	s.mu.Unlock()

	s.logger.Info("interview completed", zap.Int("total_duration", total))

	return nil
}

func (s *Session) complete(ctx context.Context) (*talent.Completion, error) {
	ctx, cancel := s.bind(ctx)
	defer cancel()
	return s.api.Complete(ctx, s.id)
}

// Close aborts in-flight requests, stops the timer and the monitor and releases
// media. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.closeErr
	}

	s.closed = true
	s.cancel()
	s.closeErr = s.stopActivity()

	return s.closeErr
}

// stopActivity must be called with s.mu held.
func (s *Session) stopActivity() error {
	s.timer.Stop()
	s.monitor.Stop()
	return s.media.Release()
}

// usable must be called with s.mu held.
func (s *Session) usable() error {
	if s.closed {
		return ErrClosed
	}
	if s.iv == nil {
		return ErrNotLoaded
	}
	return nil
}

// Current returns the question being answered.
func (s *Session) Current() (int, interview.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.iv == nil || s.nav.Done() {
		return 0, interview.Question{}, false
	}
	index := s.nav.Index()
	return index, s.iv.Questions[index], true
}

func (s *Session) IsLast() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.IsLast()
}

func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Total()
}

func (s *Session) Status() interview.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.iv == nil {
		return interview.StatusNotStarted
	}
	return s.iv.Status
}

// Interview returns a copy of the loaded interview.
func (s *Session) Interview() *interview.Interview {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.iv == nil {
		return nil
	}
	cp := *s.iv
	cp.Responses = append([]interview.Response(nil), s.iv.Responses...)
	return &cp
}

func (s *Session) Elapsed() time.Duration {
	return time.Duration(s.timer.Elapsed()) * time.Second
}

func (s *Session) Warnings() int {
	return s.monitor.Warnings()
}

func (s *Session) ToggleVideo() bool {
	return s.media.ToggleVideo()
}

func (s *Session) ToggleAudio() bool {
	return s.media.ToggleAudio()
}

func (s *Session) VideoEnabled() bool {
	return s.media.VideoEnabled()
}

func (s *Session) AudioEnabled() bool {
	return s.media.AudioEnabled()
}
