package integrity

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/spigell/interview-runner/internal/interview"
)

const DefaultProbability = 0.05

// Nop never reports anything. It is used when no signal source is wired in.
type Nop struct{}

func (Nop) Detect(context.Context) (Signal, bool) { return Signal{}, false }

// Simulated reports a look-away with a fixed probability per check.
// It is a placeholder for demos and load tests, not a detection method.
type Simulated struct {
	mu          sync.Mutex
	probability float64
	rng         *rand.Rand
}

func NewSimulated(probability float64, rng *rand.Rand) *Simulated {
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Simulated{probability: probability, rng: rng}
}

func (s *Simulated) Detect(context.Context) (Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.probability == 0 || s.rng.Float64() >= s.probability {
		return Signal{}, false
	}

	// 1 to 4 seconds.
	duration := time.Second + time.Duration(s.rng.Int64N(int64(3*time.Second)))

	return Signal{Type: interview.EventLookAway, Duration: duration}, true
}
