package core

// transfer_limiter.go bounds the number of transfers running at once.
//
// Imports and exports share one pool of slots. A caller that finds every slot
// taken waits up to maxWait before failing with ErrTooManyTransfers.
// WaitForDrain lets shutdown block until running transfers finish.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyTransfers is returned when all transfer slots stay occupied for
// the whole wait period. Clients should retry after a short delay.
var ErrTooManyTransfers = errors.New("too many concurrent transfers, please try again later")

// DefaultMaxConcurrentTransfers is the default limit for parallel transfers.
const DefaultMaxConcurrentTransfers = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// TransferLimiter is a counting semaphore over transfer slots.
type TransferLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active map[Direction]int
}

// NewTransferLimiter creates a limiter allowing maxConcurrent transfers.
// Non-positive arguments select the defaults.
func NewTransferLimiter(maxConcurrent int, maxWait time.Duration) *TransferLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentTransfers
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &TransferLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		active:  make(map[Direction]int, 2),
	}
}

// Acquire takes a slot for a transfer in direction dir. The caller must call
// Release with the same direction when the transfer ends.
func (l *TransferLimiter) Acquire(ctx context.Context, dir Direction) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.track(dir, 1)
		return nil
	case <-timer.C:
		return ErrTooManyTransfers
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *TransferLimiter) Release(dir Direction) {
	l.track(dir, -1)
	<-l.slots
}

func (l *TransferLimiter) track(dir Direction, delta int) {
	l.mu.Lock()
	l.active[dir] += delta
	l.mu.Unlock()
}

// ActiveCount returns the number of running transfers.
func (l *TransferLimiter) ActiveCount() int {
	return len(l.slots)
}

// MaxConcurrent returns the slot count.
func (l *TransferLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// Available returns the number of free slots.
func (l *TransferLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no transfer is running or ctx is done.
func (l *TransferLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of the limiter for monitoring.
type LimiterStatus struct {
	Active        int `json:"active"`
	Imports       int `json:"imports"`
	Exports       int `json:"exports"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *TransferLimiter) Status() LimiterStatus {
	l.mu.Lock()
	imports, exports := l.active[DirectionImport], l.active[DirectionExport]
	l.mu.Unlock()

	return LimiterStatus{
		Active:        imports + exports,
		Imports:       imports,
		Exports:       exports,
		Available:     l.Available(),
		MaxConcurrent: cap(l.slots),
	}
}
