package talent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/interview-runner/internal/interview"
	"go.uber.org/zap"
)

const (
	actionStart          = "start"
	actionSubmitResponse = "submit_response"
	actionComplete       = "complete"
	actionEyeTracking    = "add_eye_tracking"
)

type actionRequest struct {
	Action           string                      `json:"action"`
	Response         *interview.Response         `json:"response,omitempty"`
	EyeTrackingEvent *interview.EyeTrackingEvent `json:"eyeTrackingEvent,omitempty"`
}

type envelope struct {
	Interview map[string]any `json:"interview"`
}

// Completion is what the backend returns when an interview is finalized.
type Completion struct {
	Analysis      *interview.Analysis
	TotalDuration *int
}

func (c *Client) interviewURL(id string) string {
	return fmt.Sprintf("%s%s/%s", strings.TrimRight(c.APIURL, "/"), interviewsPath, url.PathEscape(id))
}

// GetInterview fetches the interview state. A missing interview yields an error matching ErrNotFound.
func (c *Client) GetInterview(ctx context.Context, id string) (*interview.Interview, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("interview id is required")
	}

	var body envelope
	if err := c.doJSON(ctx, http.MethodGet, c.interviewURL(id), nil, &body); err != nil {
		return nil, err
	}

	if body.Interview == nil {
		return nil, fmt.Errorf("%w: empty payload for %s", ErrNotFound, id)
	}

	iv, err := decodeInterview(body.Interview)
	if err != nil {
		return nil, err
	}

	if iv.ID == "" {
		iv.ID = id
	}

	c.logger.Debug("got interview",
		zap.String("interview_id", iv.ID),
		zap.String("status", iv.Status.String()),
		zap.Int("questions", len(iv.Questions)),
		zap.Int("responses", len(iv.Responses)),
	)

	return iv, nil
}

func (c *Client) Start(ctx context.Context, id string) error {
	return c.doWithRetry(ctx, http.MethodPut, c.interviewURL(id), actionRequest{Action: actionStart}, nil)
}

func (c *Client) SubmitResponse(ctx context.Context, id string, resp interview.Response) error {
	req := actionRequest{Action: actionSubmitResponse, Response: &resp}
	return c.doWithRetry(ctx, http.MethodPut, c.interviewURL(id), req, nil)
}

func (c *Client) Complete(ctx context.Context, id string) (*Completion, error) {
	var body envelope
	if err := c.doWithRetry(ctx, http.MethodPut, c.interviewURL(id), actionRequest{Action: actionComplete}, &body); err != nil {
		return nil, err
	}

	if body.Interview == nil {
		return &Completion{}, nil
	}

	iv, err := decodeInterview(body.Interview)
	if err != nil {
		return nil, err
	}

	return &Completion{Analysis: iv.Analysis, TotalDuration: iv.TotalDuration}, nil
}

// AddEyeTrackingEvent records an integrity event. It is never retried: events are best effort.
func (c *Client) AddEyeTrackingEvent(ctx context.Context, id string, ev interview.EyeTrackingEvent) error {
	req := actionRequest{Action: actionEyeTracking, EyeTrackingEvent: &ev}
	return c.doJSON(ctx, http.MethodPut, c.interviewURL(id), req, nil)
}

var statusType = reflect.TypeOf(interview.Status(""))

func statusHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != statusType || from.Kind() != reflect.String {
		return data, nil
	}

	raw, ok := data.(string)
	if !ok {
		return data, nil
	}

	return interview.ParseStatus(raw)
}

func decodeInterview(raw map[string]any) (*interview.Interview, error) {
	var iv interview.Interview

	cfg := &mapstructure.DecoderConfig{
		Result: &iv,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			statusHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode interview: %w", err)
	}

	// Document stores expose the primary key as _id.
	if iv.ID == "" {
		if id, ok := raw["_id"].(string); ok {
			iv.ID = id
		}
	}

	if iv.Status == "" {
		iv.Status = interview.StatusNotStarted
	}

	return &iv, nil
}

// IsNotFound reports whether err means the interview does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
