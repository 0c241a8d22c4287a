package attendance

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Recognizer turns captured images into attendance facts. The mock
// implementation fabricates results; a face-recognition service can replace it
// without changing the store's contract.
type Recognizer interface {
	// Enroll registers a student's face photo.
	Enroll(ctx context.Context, studentID, name string, image []byte) error
	// CountPresent returns how many students appear in a classroom photo.
	// enrolled is the number of students currently registered.
	CountPresent(ctx context.Context, image []byte, enrolled int) (int, error)
}

// MockRecognizer never inspects images. It reports every registered student as
// present, or a pseudo-random count in [20, 30) when nobody is registered.
type MockRecognizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockRecognizer creates a mock recognizer seeded from seed.
func NewMockRecognizer(seed uint64) *MockRecognizer {
	return &MockRecognizer{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewDefaultMockRecognizer seeds the mock from the wall clock.
func NewDefaultMockRecognizer() *MockRecognizer {
	return NewMockRecognizer(uint64(time.Now().UnixNano()))
}

// Enroll discards the image.
func (m *MockRecognizer) Enroll(context.Context, string, string, []byte) error {
	return nil
}

// CountPresent implements Recognizer.
func (m *MockRecognizer) CountPresent(_ context.Context, _ []byte, enrolled int) (int, error) {
	if enrolled > 0 {
		return enrolled, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return 20 + m.rnd.IntN(10), nil
}
