// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     handler
// Description: Per-user connection quota
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package handler

import (
	"sync"
)

// ConnQuota limits the number of concurrent connections per user.
// Acquire and the matching Release are atomic with respect to each
// other, so concurrent connection attempts cannot oversubscribe a user.
type ConnQuota struct {
	mu     sync.Mutex
	counts map[string]int
	max    int
}

// NewConnQuota creates a quota with the given per-user limit
func NewConnQuota(max int) *ConnQuota {
	return &ConnQuota{
		counts: make(map[string]int),
		max:    max,
	}
}

// Acquire reserves a connection slot for the user. Returns false when
// the user is already at the limit.
func (q *ConnQuota) Acquire(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.counts[userID] >= q.max {
		return false
	}
	q.counts[userID]++
	return true
}

// Release returns a previously acquired slot
func (q *ConnQuota) Release(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.counts[userID] <= 1 {
		delete(q.counts, userID)
		return
	}
	q.counts[userID]--
}

// Count returns the current number of connections for a user
func (q *ConnQuota) Count(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[userID]
}
