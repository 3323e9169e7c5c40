package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/interview-runner/internal/ai"
	"github.com/spigell/interview-runner/internal/interview"
	"github.com/spigell/interview-runner/internal/logger"
)

const (
	ActionStart          = "start"
	ActionSubmitResponse = "submit_response"
	ActionComplete       = "complete"
	ActionAddEyeTracking = "add_eye_tracking"
)

var (
	ErrInvalidAction = errors.New("unknown action")
	ErrValidation    = errors.New("invalid request")
)

type CreateRequest struct {
	JobDescription string               `json:"jobDescription"`
	Company        string               `json:"company"`
	Questions      []interview.Question `json:"questions"`
}

type ActionRequest struct {
	Action           string                      `json:"action"`
	Response         *interview.Response         `json:"response,omitempty"`
	EyeTrackingEvent *interview.EyeTrackingEvent `json:"eyeTrackingEvent,omitempty"`
}

// Service applies interview actions with the same transition table the client uses.
type Service struct {
	Store  Store
	Scorer ai.Scorer
	Logger *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewService(store Store, scorer ai.Scorer, log *zap.Logger) *Service {
	if scorer == nil {
		scorer = ai.Heuristic{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		Store:  store,
		Scorer: scorer,
		Logger: log,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*interview.Interview, error) {
	questions := req.Questions
	if len(questions) == 0 {
		questions = DefaultQuestions()
	}
	for i := range questions {
		if strings.TrimSpace(questions[i].Question) == "" {
			return nil, fmt.Errorf("%w: question %d is empty", ErrValidation, i)
		}
		if questions[i].Order == 0 {
			questions[i].Order = i + 1
		}
	}

	iv := &interview.Interview{
		ID:             s.newID(),
		Status:         interview.StatusNotStarted,
		Questions:      questions,
		Responses:      []interview.Response{},
		JobDescription: strings.TrimSpace(req.JobDescription),
		Company:        strings.TrimSpace(req.Company),
	}

	if err := s.Store.Create(ctx, iv); err != nil {
		return nil, err
	}

	s.Logger.Info("interview created",
		zap.String(logger.FieldInterviewID, iv.ID),
		zap.Int("questions", len(questions)),
	)

	return iv, nil
}

func (s *Service) Get(ctx context.Context, id string) (*interview.Interview, error) {
	return s.Store.Get(ctx, id)
}

// Apply runs one action against the stored interview.
func (s *Service) Apply(ctx context.Context, id string, req ActionRequest) (*interview.Interview, error) {
	log := s.Logger.With(zap.String(logger.FieldInterviewID, id), zap.String(logger.FieldAction, req.Action))

	var (
		iv  *interview.Interview
		err error
	)

	switch req.Action {
	case ActionStart:
		iv, err = s.Store.Update(ctx, id, s.start)
	case ActionSubmitResponse:
		iv, err = s.Store.Update(ctx, id, func(iv *interview.Interview) error {
			return submit(iv, req.Response)
		})
	case ActionAddEyeTracking:
		iv, err = s.Store.Update(ctx, id, func(iv *interview.Interview) error {
			return s.addEyeTracking(iv, req.EyeTrackingEvent)
		})
	case ActionComplete:
		iv, err = s.complete(ctx, id, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}

	if err != nil {
		return nil, err
	}

	log.Debug("action applied", zap.String(logger.FieldStatus, iv.Status.String()))
	return iv, nil
}

func (s *Service) start(iv *interview.Interview) error {
	next, err := interview.Transition(iv.Status, interview.EventStart)
	if err != nil {
		return err
	}
	started := s.now()
	iv.Status = next
	iv.StartedAt = &started
	return nil
}

func submit(iv *interview.Interview, resp *interview.Response) error {
	if _, err := interview.Transition(iv.Status, interview.EventSubmit); err != nil {
		return err
	}
	if resp == nil {
		return fmt.Errorf("%w: response is required", ErrValidation)
	}
	if strings.TrimSpace(resp.Response) == "" {
		return fmt.Errorf("%w: response is empty", ErrValidation)
	}
	if !iv.CanAppend() {
		return fmt.Errorf("%w: every question is answered", interview.ErrInvalidTransition)
	}
	if resp.QuestionID != len(iv.Responses) {
		return fmt.Errorf("%w: expected questionId %d, got %d", ErrValidation, len(iv.Responses), resp.QuestionID)
	}

	iv.Responses = append(iv.Responses, *resp)
	return nil
}

func (s *Service) addEyeTracking(iv *interview.Interview, ev *interview.EyeTrackingEvent) error {
	if iv.Status != interview.StatusInProgress {
		return fmt.Errorf("%w: eye tracking events are accepted only in progress", interview.ErrInvalidTransition)
	}
	if ev == nil || strings.TrimSpace(ev.Type) == "" {
		return fmt.Errorf("%w: eyeTrackingEvent.type is required", ErrValidation)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	iv.EyeTrackingEvents = append(iv.EyeTrackingEvents, *ev)
	return nil
}

// complete scores a snapshot before taking the row lock and re-checks the
// transition when saving.
func (s *Service) complete(ctx context.Context, id string, log *zap.Logger) (*interview.Interview, error) {
	snapshot, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := interview.Transition(snapshot.Status, interview.EventComplete); err != nil {
		return nil, err
	}

	analysis, err := s.Scorer.Score(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("score interview: %w", err)
	}

	return s.Store.Update(ctx, id, func(iv *interview.Interview) error {
		next, err := interview.Transition(iv.Status, interview.EventComplete)
		if err != nil {
			return err
		}

		completed := s.now()
		total := 0
		if iv.StartedAt != nil {
			total = int(completed.Sub(*iv.StartedAt) / time.Second)
		}

		iv.Status = next
		iv.CompletedAt = &completed
		iv.TotalDuration = &total
		iv.Analysis = analysis

		log.Info("interview completed",
			zap.String(logger.FieldProvider, s.Scorer.Name()),
			zap.Float64("overall_score", iv.Score()),
			zap.Int("total_duration", total),
		)
		return nil
	})
}
