package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var ErrUnavailable = errors.New("camera or microphone unavailable")

type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Track is a single captured device. Enabled is toggled in place; Stop releases the device.
type Track interface {
	Kind() Kind
	Label() string
	Enabled() bool
	SetEnabled(enabled bool)
	Stop() error
}

type Constraints struct {
	Video bool
	Audio bool
}

// Source opens capture devices.
type Source interface {
	Open(ctx context.Context, c Constraints) ([]Track, error)
}

// Controller owns at most one set of open tracks for a session.
type Controller struct {
	mu     sync.Mutex
	source Source
	logger *zap.Logger

	video  bool
	audio  bool
	tracks []Track
}

func NewController(source Source, video, audio bool, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		source: source,
		logger: logger,
		video:  video,
		audio:  audio,
	}
}

// Acquire opens the devices selected by the current enable flags.
// Calling it again while tracks are open is a no-op.
func (c *Controller) Acquire(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tracks != nil {
		return nil
	}

	if c.source == nil {
		return fmt.Errorf("%w: no media source configured", ErrUnavailable)
	}

	if !c.video && !c.audio {
		return fmt.Errorf("%w: both camera and microphone are disabled", ErrUnavailable)
	}

	tracks, err := c.source.Open(ctx, Constraints{Video: c.video, Audio: c.audio})
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if len(tracks) == 0 {
		return fmt.Errorf("%w: no devices opened", ErrUnavailable)
	}

	for _, track := range tracks {
		c.logger.Info("media track acquired",
			zap.String("kind", string(track.Kind())),
			zap.String("label", track.Label()),
		)
	}

	c.tracks = tracks
	return nil
}

// ToggleVideo flips the camera flag. Before acquisition only the flag changes.
func (c *Controller) ToggleVideo() bool {
	return c.toggle(KindVideo)
}

// ToggleAudio flips the microphone flag. Before acquisition only the flag changes.
func (c *Controller) ToggleAudio() bool {
	return c.toggle(KindAudio)
}

func (c *Controller) toggle(kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var enabled bool
	switch kind {
	case KindVideo:
		c.video = !c.video
		enabled = c.video
	case KindAudio:
		c.audio = !c.audio
		enabled = c.audio
	}

	for _, track := range c.tracks {
		if track.Kind() == kind {
			track.SetEnabled(enabled)
		}
	}

	return enabled
}

func (c *Controller) VideoEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video
}

func (c *Controller) AudioEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audio
}

func (c *Controller) Acquired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracks != nil
}

// Release stops every open track. It is safe to call repeatedly.
func (c *Controller) Release() error {
	c.mu.Lock()
	tracks := c.tracks
	c.tracks = nil
	c.mu.Unlock()

	var errs []error
	for _, track := range tracks {
		if err := track.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s track: %w", track.Kind(), err))
		}
	}

	if len(tracks) > 0 {
		c.logger.Info("media released", zap.Int("tracks", len(tracks)))
	}

	return errors.Join(errs...)
}
