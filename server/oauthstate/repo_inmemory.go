package oauthstate

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// maxAge bounds how long a login can sit between redirect and callback.
const maxAge = 15 * time.Minute

// InMemoryRepo is a thread-safe in-memory implementation of the Repo
// interface. States expire lazily on read.
type InMemoryRepo struct {
	mu     sync.RWMutex
	states map[string]*FlowState
}

// NewInMemoryRepo creates a new in-memory OAuth flow state repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		states: make(map[string]*FlowState),
	}
}

// Upsert stores or updates a flow state.
func (r *InMemoryRepo) Upsert(state string, flowState *FlowState) error {
	if state == "" {
		return errors.New("[Upsert] state cannot be empty")
	}
	if flowState == nil {
		return errors.New("[Upsert] flowState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *flowState
	r.states[state] = &copied
	return nil
}

// Get retrieves a flow state by state parameter. A state older than maxAge is
// removed and reads as not found.
func (r *InMemoryRepo) Get(state string) (*FlowState, error) {
	if state == "" {
		return nil, errors.New("[Get] state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	flowState, exists := r.states[state]
	if !exists {
		return nil, errors.New("[Get] state not found")
	}
	if time.Since(flowState.CreatedAt) > maxAge {
		delete(r.states, state)
		return nil, errors.New("[Get] state expired")
	}

	copied := *flowState
	return &copied, nil
}

// Delete removes a flow state.
func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.New("[Delete] state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}
