package indexer

import "sync/atomic"

// ImportLock is a non-blocking mutex guarding a single running import
type ImportLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to take the lock without blocking
func (l *ImportLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock. Only the holder may call it.
func (l *ImportLock) Release() {
	l.state.Store(0)
}
