package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

const (
	// V4L2 capture nodes.
	DefaultVideoPattern = "/dev/video*"
	// ALSA PCM capture nodes.
	DefaultAudioPattern = "/dev/snd/pcmC*D*c"
)

// DeviceSource opens local device nodes. Holding the open file is what keeps the
// device acquired until the track is stopped.
type DeviceSource struct {
	VideoPattern string
	AudioPattern string
}

func NewDeviceSource(videoPattern, audioPattern string) *DeviceSource {
	if videoPattern == "" {
		videoPattern = DefaultVideoPattern
	}
	if audioPattern == "" {
		audioPattern = DefaultAudioPattern
	}

	return &DeviceSource{VideoPattern: videoPattern, AudioPattern: audioPattern}
}

func (s *DeviceSource) Open(ctx context.Context, c Constraints) ([]Track, error) {
	var tracks []Track

	closeAll := func() {
		for _, t := range tracks {
			_ = t.Stop()
		}
	}

	wanted := []struct {
		enabled bool
		kind    Kind
		pattern string
	}{
		{enabled: c.Video, kind: KindVideo, pattern: s.VideoPattern},
		{enabled: c.Audio, kind: KindAudio, pattern: s.AudioPattern},
	}

	for _, w := range wanted {
		if !w.enabled {
			continue
		}

		if err := ctx.Err(); err != nil {
			closeAll()
			return nil, err
		}

		track, err := openFirst(w.kind, w.pattern)
		if err != nil {
			closeAll()
			return nil, err
		}
		tracks = append(tracks, track)
	}

	return tracks, nil
}

func openFirst(kind Kind, pattern string) (Track, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad %s device pattern %q: %w", kind, pattern, err)
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no %s device matches %s", ErrUnavailable, kind, pattern)
	}
	sort.Strings(matches)

	var errs []error
	for _, path := range matches {
		f, err := os.Open(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return newDeviceTrack(kind, path, f), nil
	}

	return nil, fmt.Errorf("%w: %s devices busy or denied: %w", ErrUnavailable, kind, errors.Join(errs...))
}

type deviceTrack struct {
	kind    Kind
	label   string
	file    *os.File
	enabled atomic.Bool
	once    sync.Once
	stopErr error
}

func newDeviceTrack(kind Kind, label string, file *os.File) *deviceTrack {
	t := &deviceTrack{kind: kind, label: label, file: file}
	t.enabled.Store(true)
	return t
}

func (t *deviceTrack) Kind() Kind { return t.kind }

func (t *deviceTrack) Label() string { return t.label }

func (t *deviceTrack) Enabled() bool { return t.enabled.Load() }

func (t *deviceTrack) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

func (t *deviceTrack) Stop() error {
	t.once.Do(func() {
		t.enabled.Store(false)
		t.stopErr = t.file.Close()
	})
	return t.stopErr
}
