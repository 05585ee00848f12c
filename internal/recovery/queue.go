// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package recovery

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/metrics"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// DefaultQueueCap is the per-user intervention limit.
const DefaultQueueCap = 50

var (
	// ErrInterventionNotFound is returned when an intervention ID is unknown for the user.
	ErrInterventionNotFound = errors.New("intervention not found")

	// ErrInterventionResolved is returned when resolving an already resolved intervention.
	ErrInterventionResolved = errors.New("intervention already resolved")
)

// InterventionStore persists each user's queue so it survives restarts.
type InterventionStore interface {
	Save(userID string, items []models.Intervention) error
	LoadAll() (map[string][]models.Intervention, error)
}

type userQueue struct {
	mu    sync.Mutex
	items []models.Intervention
}

// InterventionQueue holds interventions per user, oldest first, capped per
// user. Appending and trimming are atomic per user.
type InterventionQueue struct {
	capacity int
	store    InterventionStore
	now      func() time.Time

	mu    sync.Mutex
	users map[string]*userQueue
}

// NewInterventionQueue creates a queue. store may be nil for memory only;
// when set, previously saved queues are loaded.
func NewInterventionQueue(capacity int, store InterventionStore) (*InterventionQueue, error) {
	if capacity <= 0 {
		capacity = DefaultQueueCap
	}
	q := &InterventionQueue{
		capacity: capacity,
		store:    store,
		now:      time.Now,
		users:    make(map[string]*userQueue),
	}
	if store != nil {
		saved, err := store.LoadAll()
		if err != nil {
			return nil, err
		}
		for userID, items := range saved {
			q.users[userID] = &userQueue{items: items}
		}
	}
	q.updatePendingGauge()
	return q, nil
}

func (q *InterventionQueue) user(userID string) *userQueue {
	q.mu.Lock()
	defer q.mu.Unlock()
	uq, ok := q.users[userID]
	if !ok {
		uq = &userQueue{}
		q.users[userID] = uq
	}
	return uq
}

// Add appends an intervention, assigning ID, status and timestamp when unset,
// and drops the oldest entries beyond the cap.
func (q *InterventionQueue) Add(iv models.Intervention) models.Intervention {
	if iv.ID == "" {
		iv.ID = uuid.New().String()
	}
	if iv.Status == "" {
		iv.Status = models.InterventionPending
	}
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = q.now().UTC()
	}

	uq := q.user(iv.UserID)
	uq.mu.Lock()
	uq.items = append(uq.items, iv)
	if over := len(uq.items) - q.capacity; over > 0 {
		uq.items = append([]models.Intervention(nil), uq.items[over:]...)
	}
	q.persistLocked(iv.UserID, uq)
	uq.mu.Unlock()

	q.updatePendingGauge()
	return iv
}

// List returns every intervention of the user, oldest first.
func (q *InterventionQueue) List(userID string) []models.Intervention {
	uq := q.user(userID)
	uq.mu.Lock()
	defer uq.mu.Unlock()
	return append([]models.Intervention(nil), uq.items...)
}

// Pending returns the user's unresolved interventions, oldest first.
func (q *InterventionQueue) Pending(userID string) []models.Intervention {
	all := q.List(userID)
	out := all[:0]
	for _, iv := range all {
		if iv.Status == models.InterventionPending {
			out = append(out, iv)
		}
	}
	return out
}

// Get returns one intervention of the user.
func (q *InterventionQueue) Get(userID, id string) (models.Intervention, error) {
	for _, iv := range q.List(userID) {
		if iv.ID == id {
			return iv, nil
		}
	}
	return models.Intervention{}, ErrInterventionNotFound
}

// Resolve marks an intervention resolved with the operator's resolution text.
func (q *InterventionQueue) Resolve(userID, id, resolution string) (models.Intervention, error) {
	uq := q.user(userID)
	uq.mu.Lock()

	idx := -1
	for i := range uq.items {
		if uq.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		uq.mu.Unlock()
		return models.Intervention{}, ErrInterventionNotFound
	}
	if uq.items[idx].Status == models.InterventionResolved {
		iv := uq.items[idx]
		uq.mu.Unlock()
		return iv, ErrInterventionResolved
	}

	resolvedAt := q.now().UTC()
	uq.items[idx].Status = models.InterventionResolved
	uq.items[idx].ResolvedAt = &resolvedAt
	uq.items[idx].Resolution = resolution
	iv := uq.items[idx]
	q.persistLocked(userID, uq)
	uq.mu.Unlock()

	q.updatePendingGauge()
	return iv, nil
}

// Users returns the users that have a queue, sorted.
func (q *InterventionQueue) Users() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	users := make([]string, 0, len(q.users))
	for u := range q.users {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// persistLocked saves one user's queue. Must be called with uq.mu held.
func (q *InterventionQueue) persistLocked(userID string, uq *userQueue) {
	if q.store == nil {
		return
	}
	if err := q.store.Save(userID, uq.items); err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("Failed to persist intervention queue")
	}
}

func (q *InterventionQueue) updatePendingGauge() {
	pending := 0
	for _, userID := range q.Users() {
		pending += len(q.Pending(userID))
	}
	metrics.InterventionsPending.Set(float64(pending))
}
