package talent

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL         = "http://localhost:3000"
	interviewsPath = "/api/interviews/ai"
	userAgent      = "spigell/interview-runner"

	defaultTimeout      = 10 * time.Second
	defaultRetryBackoff = 500 * time.Millisecond
)

// Client talks to the marketplace interview API.
type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	// MaxRetries is the number of extra attempts for writes that failed temporarily.
	MaxRetries   int
	RetryBackoff time.Duration
}

// New creates a client. An empty token sends no Authorization header.
func New(logger *zap.Logger, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:  strings.TrimSpace(token),
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:       logger,
		UserAgent:    userAgent,
		MaxRetries:   2,
		RetryBackoff: defaultRetryBackoff,
	}
}
