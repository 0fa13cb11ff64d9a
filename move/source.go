package move

import (
	"math/rand"
	"sync"
	"time"
)

//go:generate go tool mockgen -source=source.go -destination=mock_source_test.go -package=move

// Source is the randomness Select draws from. *rand.Rand satisfies it.
type Source interface {
	// Intn returns a uniform int in [0,n).
	Intn(n int) int
}

// LockedSource is a Source that is safe to share between goroutines.
type LockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedSource seeds a shared source. A zero seed uses the clock.
func NewLockedSource(seed int64) *LockedSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LockedSource{rng: rand.New(rand.NewSource(seed))}
}

// Intn draws from the shared generator under the lock.
func (s *LockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
