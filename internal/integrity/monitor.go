package integrity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spigell/interview-runner/internal/interview"
	"go.uber.org/zap"
)

const (
	DefaultInterval    = 5 * time.Second
	defaultSinkTimeout = 5 * time.Second
)

// Signal is a suspicious behaviour observed by a Detector.
type Signal struct {
	Type     string
	Duration time.Duration
}

// Detector is the integration point for a real gaze or camera signal.
type Detector interface {
	Detect(ctx context.Context) (Signal, bool)
}

// Sink receives integrity events. Delivery is best effort.
type Sink interface {
	Report(ctx context.Context, ev interview.EyeTrackingEvent) error
}

type SinkFunc func(ctx context.Context, ev interview.EyeTrackingEvent) error

func (f SinkFunc) Report(ctx context.Context, ev interview.EyeTrackingEvent) error {
	return f(ctx, ev)
}

type Config struct {
	Interval    time.Duration
	SinkTimeout time.Duration
	// OnWarning is called from the monitor goroutine after the counter was incremented.
	OnWarning func(total int, sig Signal)
}

// Monitor runs Detector on a fixed interval while started.
type Monitor struct {
	cfg      Config
	detector Detector
	sink     Sink
	logger   *zap.Logger
	now      func() time.Time

	warnings atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(cfg Config, detector Detector, sink Sink, logger *zap.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if detector == nil {
		detector = Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Monitor{
		cfg:      cfg,
		detector: detector,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

// Start launches the periodic check. It is a no-op when already running.
// The monitor stops on Stop or when ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.loop(ctx, done)
}

// Stop cancels the periodic check and waits for the running tick to return.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) Warnings() int {
	return int(m.warnings.Load())
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	sig, ok := m.detector.Detect(ctx)
	if !ok || ctx.Err() != nil {
		return
	}

	total := int(m.warnings.Add(1))
	m.logger.Debug("integrity signal",
		zap.String("type", sig.Type),
		zap.Duration("duration", sig.Duration),
		zap.Int("warnings", total),
	)

	if m.cfg.OnWarning != nil {
		m.cfg.OnWarning(total, sig)
	}

	if m.sink == nil {
		return
	}

	ev := interview.EyeTrackingEvent{
		Type:      sig.Type,
		Duration:  sig.Duration.Seconds(),
		Timestamp: m.now().UTC(),
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.SinkTimeout)
	defer cancel()

	if err := m.sink.Report(sendCtx, ev); err != nil {
		m.logger.Warn("integrity event not delivered", zap.String("type", ev.Type), zap.Error(err))
	}
}
