package metrics

import (
	"sync/atomic"
	"time"

	"github.com/mfreeman451/nodeverify/pkg/models"
)

type cyclePoint struct {
	timestamp int64
	elapsed   int64
	class     string
}

// LockFreeRingBuffer is a fixed-size ring of cycle points. Writers claim a
// slot with an atomic increment; readers see at most size points, newest first.
type LockFreeRingBuffer struct {
	points []atomic.Pointer[cyclePoint]
	pos    int64
	size   int64
}

// NewBuffer creates a CycleStore holding up to size points.
func NewBuffer(size int) CycleStore {
	if size <= 0 {
		size = models.DefaultCycleRetention
	}

	return &LockFreeRingBuffer{
		points: make([]atomic.Pointer[cyclePoint], size),
		size:   int64(size),
	}
}

// Add stores a point, overwriting the oldest once the ring is full.
func (b *LockFreeRingBuffer) Add(point models.CyclePoint) {
	pos := atomic.AddInt64(&b.pos, 1) - 1
	idx := pos % b.size

	b.points[idx].Store(&cyclePoint{
		timestamp: point.Timestamp.UnixNano(),
		elapsed:   int64(point.Elapsed),
		class:     point.Class,
	})
}

// GetPoints returns the stored points, newest first.
func (b *LockFreeRingBuffer) GetPoints() []models.CyclePoint {
	pos := atomic.LoadInt64(&b.pos)

	n := pos
	if n > b.size {
		n = b.size
	}

	points := make([]models.CyclePoint, 0, n)

	for i := int64(0); i < n; i++ {
		idx := (pos - i - 1) % b.size

		p := b.points[idx].Load()
		if p == nil {
			continue
		}

		points = append(points, p.toModel())
	}

	return points
}

func (p *cyclePoint) toModel() models.CyclePoint {
	return models.CyclePoint{
		Timestamp: time.Unix(0, p.timestamp),
		Elapsed:   time.Duration(p.elapsed),
		Class:     p.class,
	}
}
