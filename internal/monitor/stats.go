package monitor

import (
	"sync"
	"time"
)

const windowSeconds = 5

// RequestRate implements a sliding window (5s) of per-second request counts
type RequestRate struct {
	buckets    [windowSeconds]int
	currentPos int
	lastTick   time.Time
	mu         sync.Mutex
	now        func() time.Time
}

func NewRequestRate() *RequestRate {
	return &RequestRate{
		lastTick: time.Now(),
		now:      time.Now,
	}
}

// Record increments the count for the current second bucket
func (m *RequestRate) Record(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	elapsed := int(now.Sub(m.lastTick).Seconds())
	if elapsed >= 1 {
		if elapsed >= windowSeconds {
			for i := range m.buckets {
				m.buckets[i] = 0
			}
			m.currentPos = 0
		} else {
			// advance and clear skipped buckets
			for i := 0; i < elapsed; i++ {
				m.currentPos = (m.currentPos + 1) % windowSeconds
				m.buckets[m.currentPos] = 0
			}
		}
		m.lastTick = now
	}
	m.buckets[m.currentPos] += count
}

// PerSecond returns the average rate over the window
func (m *RequestRate) PerSecond() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Sub(m.lastTick) > windowSeconds*time.Second {
		return 0.0
	}

	sum := 0
	for _, b := range m.buckets {
		sum += b
	}
	return float64(sum) / windowSeconds
}
