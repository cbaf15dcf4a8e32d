// Package feed publishes change notifications for canonical record
// mutations. The engine guarantees the events carry enough detail (changed
// field names, old/new values, requester) for an external audit or feed
// component to build its own log; formatting those logs is not this
// package's concern.
package feed

import (
	"context"
	"sync"
	"time"

	id "civreg/pkg/domain"
)

// Action classifies what happened to the record.
type Action string

const (
	ActionCreated          Action = "record_created"
	ActionUpdated          Action = "record_updated"
	ActionApprovalStaged   Action = "approval_staged"
	ActionApprovalAccepted Action = "approval_accepted"
	ActionApprovalRejected Action = "approval_rejected"
)

// FieldChange is one canonical field transition.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old,omitempty"`
	New   any    `json:"new,omitempty"`
}

// Change is emitted after every canonical-record mutation. Keep it
// transport-agnostic so sinks can fan out.
type Change struct {
	HealthID  string        `json:"health_id"`
	Action    Action        `json:"action"`
	At        time.Time     `json:"at"`
	Requester id.Requester  `json:"requester"`
	Fields    []FieldChange `json:"fields,omitempty"`
	// PendingFields names the fields with staged proposals after this
	// mutation, so feed consumers can track approval backlogs.
	PendingFields []string `json:"pending_fields,omitempty"`
}

// Publisher delivers change notifications to a sink.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Memory buffers changes in process. It backs tests and single-node
// deployments that have no broker configured.
type Memory struct {
	mu      sync.RWMutex
	changes []Change
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, change Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, change)
	return nil
}

// Changes returns a copy of everything published so far.
func (m *Memory) Changes() []Change {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Change{}, m.changes...)
}
