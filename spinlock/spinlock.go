// Package spinlock provides the busy-wait gate that tells the host the
// engine is mid-step.
//
// The gate is a single word inside the shared linear memory. The engine
// raises it before stepping and clears it when done; the host never blocks,
// it polls the word until it reads zero.
package spinlock

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/akmonengine/feathersync/engine"
	"github.com/akmonengine/feathersync/logging"
)

// DefaultWarnThreshold is the wait duration above which Wait logs a warning.
const DefaultWarnThreshold = 2 * time.Millisecond

// yieldEvery spins between scheduler yields, so that a worker goroutine
// sharing the same P can make progress.
const yieldEvery = 64

// Stats describes the waits observed so far.
type Stats struct {
	Waits     uint64
	Contended uint64
	Spins     uint64
	TotalWait time.Duration
	MaxWait   time.Duration
}

type SpinLock struct {
	word *uint32

	warnThreshold time.Duration
	logger        logging.Logger

	stats Stats
}

type Option func(*SpinLock)

func WithWarnThreshold(d time.Duration) Option {
	return func(l *SpinLock) { l.warnThreshold = d }
}

func WithLogger(logger logging.Logger) Option {
	return func(l *SpinLock) { l.logger = logger }
}

// New binds a SpinLock to the word at ptr.
func New(mem *engine.Memory, ptr engine.Ptr, opts ...Option) *SpinLock {
	l := &SpinLock{
		word:          mem.Word(ptr),
		warnThreshold: DefaultWarnThreshold,
		logger:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait returns once the word reads zero. It cannot fail and has no timeout.
// It never backs off: the polling rate stays constant, and every 64 spins
// it hands the processor to the scheduler for one yield before polling
// again, so an engine worker sharing the same P can finish its step.
func (l *SpinLock) Wait() {
	l.stats.Waits++
	if atomic.LoadUint32(l.word) == 0 {
		return
	}

	start := time.Now()
	var spins uint64
	for atomic.LoadUint32(l.word) != 0 {
		spins++
		if spins%yieldEvery == 0 {
			runtime.Gosched()
		}
	}
	elapsed := time.Since(start)

	l.stats.Contended++
	l.stats.Spins += spins
	l.stats.TotalWait += elapsed
	l.stats.MaxWait = max(l.stats.MaxWait, elapsed)

	if l.warnThreshold > 0 && elapsed > l.warnThreshold {
		l.logger.Warn("spinlock wait exceeded threshold", "elapsed", elapsed, "threshold", l.warnThreshold, "spins", spins)
	}
}

// Lock raises the word. Only the engine side calls it.
func (l *SpinLock) Lock() {
	for !atomic.CompareAndSwapUint32(l.word, 0, 1) {
		runtime.Gosched()
	}
}

// Unlock clears the word.
func (l *SpinLock) Unlock() {
	atomic.StoreUint32(l.word, 0)
}

// Locked reports whether the engine is mid-step.
func (l *SpinLock) Locked() bool {
	return atomic.LoadUint32(l.word) != 0
}

// Stats returns the wait counters. Not safe to call from the engine worker.
func (l *SpinLock) Stats() Stats {
	return l.stats
}

func (l *SpinLock) ResetStats() {
	l.stats = Stats{}
}
