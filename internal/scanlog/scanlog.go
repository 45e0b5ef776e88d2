// Package scanlog keeps the timestamps of the most recent scans.
package scanlog

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Capacity is the number of timestamps retained.
const Capacity = 5

// Store persists the recent-scan list. Load returns the list most recent first.
type Store interface {
	Load(ctx context.Context) ([]time.Time, error)
	Save(ctx context.Context, recent []time.Time) error
}

// Log records scan timestamps into a Store, newest first, truncated to Capacity.
type Log struct {
	mu    sync.Mutex
	store Store
}

// New creates a Log backed by store.
func New(store Store) *Log {
	return &Log{store: store}
}

// Record prepends ts and returns the updated list.
func (l *Log) Record(ctx context.Context, ts time.Time) ([]time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanlog load: %w", err)
	}
	next := make([]time.Time, 0, Capacity)
	next = append(next, ts)
	next = append(next, recent...)
	if len(next) > Capacity {
		next = next[:Capacity]
	}
	if err := l.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("scanlog save: %w", err)
	}
	return next, nil
}

// Recent returns the stored list, most recent first.
func (l *Log) Recent(ctx context.Context) ([]time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanlog load: %w", err)
	}
	if len(recent) > Capacity {
		recent = recent[:Capacity]
	}
	return recent, nil
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.Mutex
	recent []time.Time
}

func (m *Memory) Load(context.Context) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.recent...), nil
}

func (m *Memory) Save(_ context.Context, recent []time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = append([]time.Time(nil), recent...)
	return nil
}
