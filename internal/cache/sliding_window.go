// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package cache

import (
	"sync"
	"time"
)

// SlidingWindowCounter counts events over a trailing window split into
// fixed buckets. Counts are exact to bucket granularity.
type SlidingWindowCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets []int64
	width   time.Duration // one bucket
	head    int           // bucket receiving new events
	headAt  time.Time     // start of the head bucket
}

// NewSlidingWindowCounter creates a counter over window split into n buckets.
// NewSlidingWindowCounter(time.Hour, 12) gives an hour in 5-minute buckets.
func NewSlidingWindowCounter(window time.Duration, n int) *SlidingWindowCounter {
	return newSlidingWindowCounter(window, n, time.Now)
}

func newSlidingWindowCounter(window time.Duration, n int, now func() time.Time) *SlidingWindowCounter {
	if n <= 0 {
		n = 10
	}
	if window <= 0 {
		window = time.Hour
	}
	return &SlidingWindowCounter{
		now:     now,
		buckets: make([]int64, n),
		width:   window / time.Duration(n),
		headAt:  now(),
	}
}

// Increment adds delta to the current bucket.
func (c *SlidingWindowCounter) Increment(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotate()
	c.buckets[c.head] += delta
}

// Count returns the sum over the window.
func (c *SlidingWindowCounter) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotate()
	var total int64
	for _, v := range c.buckets {
		total += v
	}
	return total
}

// Reset clears the window.
func (c *SlidingWindowCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.buckets)
	c.head = 0
	c.headAt = c.now()
}

// rotate zeroes buckets that fell out of the window. Caller holds mu.
func (c *SlidingWindowCounter) rotate() {
	steps := int(c.now().Sub(c.headAt) / c.width)
	if steps <= 0 {
		return
	}
	if steps >= len(c.buckets) {
		clear(c.buckets)
		c.head = 0
	} else {
		for range steps {
			c.head = (c.head + 1) % len(c.buckets)
			c.buckets[c.head] = 0
		}
	}
	// Advance by whole buckets so the boundaries stay fixed.
	c.headAt = c.headAt.Add(time.Duration(steps) * c.width)
}

// SlidingWindowStore keeps one SlidingWindowCounter per key, such as error
// counts per (user, investment type).
//
//	store := NewSlidingWindowStore(time.Hour, 12, 10000)
//	store.Increment("user-1|epf")
//	n := store.Count("user-1|epf")
type SlidingWindowStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries map[string]*windowEntry
	window  time.Duration
	buckets int
	maxKeys int // 0 = unlimited
}

type windowEntry struct {
	counter *SlidingWindowCounter
	touched time.Time
}

// NewSlidingWindowStore creates a store of per-key counters.
func NewSlidingWindowStore(window time.Duration, buckets, maxKeys int) *SlidingWindowStore {
	return NewSlidingWindowStoreWithClock(window, buckets, maxKeys, time.Now)
}

// NewSlidingWindowStoreWithClock is NewSlidingWindowStore with an injectable clock.
func NewSlidingWindowStoreWithClock(window time.Duration, buckets, maxKeys int, now func() time.Time) *SlidingWindowStore {
	if now == nil {
		now = time.Now
	}
	return &SlidingWindowStore{
		now:     now,
		entries: make(map[string]*windowEntry),
		window:  window,
		buckets: buckets,
		maxKeys: maxKeys,
	}
}

// Increment adds 1 to the counter for key.
func (s *SlidingWindowStore) Increment(key string) {
	s.IncrementBy(key, 1)
}

// IncrementBy adds delta to the counter for key. When the store is full, empty
// counters are dropped first and then the least recently incremented key.
func (s *SlidingWindowStore) IncrementBy(key string, delta int64) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		if s.maxKeys > 0 && len(s.entries) >= s.maxKeys {
			if s.dropInactive() == 0 {
				s.dropStalest()
			}
		}
		e = &windowEntry{counter: newSlidingWindowCounter(s.window, s.buckets, s.now)}
		s.entries[key] = e
	}
	e.touched = s.now()
	s.mu.Unlock()

	e.counter.Increment(delta)
}

// Count returns the windowed count for key.
func (s *SlidingWindowStore) Count(key string) int64 {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return e.counter.Count()
}

// Len returns the number of tracked keys.
func (s *SlidingWindowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CleanupInactive removes counters whose window is empty and returns how
// many were removed.
func (s *SlidingWindowStore) CleanupInactive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropInactive()
}

func (s *SlidingWindowStore) dropInactive() int {
	removed := 0
	for key, e := range s.entries {
		if e.counter.Count() == 0 {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *SlidingWindowStore) dropStalest() {
	var (
		stalest string
		oldest  time.Time
	)
	for key, e := range s.entries {
		if stalest == "" || e.touched.Before(oldest) {
			stalest, oldest = key, e.touched
		}
	}
	delete(s.entries, stalest)
}
