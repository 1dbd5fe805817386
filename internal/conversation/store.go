// Package conversation tracks the multi-step dialogs of each actor and
// advances them one text message at a time.
package conversation

import (
	"sync"

	"earnbot/internal/model"
)

// Namespace separates the user flow family from the administrator one, so
// an administrator can hold a withdrawal and an admin flow at the same time.
type Namespace int

const (
	NamespaceUser Namespace = iota
	NamespaceAdmin
)

func (n Namespace) String() string {
	if n == NamespaceAdmin {
		return "admin"
	}
	return "user"
}

// Flow names a dialog.
type Flow string

const (
	FlowWithdraw      Flow = "withdraw"
	FlowAddBalance    Flow = "add_balance"
	FlowSetBalance    Flow = "set_balance"
	FlowReduceBalance Flow = "reduce_balance"
	FlowTaskPrice     Flow = "task_price"
)

// Namespace returns the family the flow belongs to.
func (f Flow) Namespace() Namespace {
	if f == FlowWithdraw {
		return NamespaceUser
	}
	return NamespaceAdmin
}

// Step is the input a flow is waiting for.
type Step string

const (
	StepMethod Step = "awaiting-method"
	StepNumber Step = "awaiting-number"
	StepAmount Step = "awaiting-amount"
	StepTarget Step = "awaiting-target"
	StepPrice  Step = "awaiting-price"
)

// State is one open flow and the fields collected so far.
type State struct {
	Flow   Flow
	Step   Step
	Method model.Method
	Number string
	// TargetID and PriorBalance are set by the admin balance flows.
	TargetID     int64
	PriorBalance int64
}

type key struct {
	actor int64
	ns    Namespace
}

// Store holds at most one State per actor and namespace.
type Store struct {
	mu     sync.Mutex
	states map[key]State
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{states: make(map[key]State)}
}

// Get returns the open flow of actor in ns.
func (s *Store) Get(actor int64, ns Namespace) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key{actor, ns}]
	return st, ok
}

// Put opens or replaces the flow of actor in the flow's namespace.
func (s *Store) Put(actor int64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key{actor, st.Flow.Namespace()}] = st
}

// Clear closes the flow of actor in ns.
func (s *Store) Clear(actor int64, ns Namespace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key{actor, ns})
}

// ClearAll closes every flow of actor and reports whether any was open.
func (s *Store) ClearAll(actor int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, user := s.states[key{actor, NamespaceUser}]
	_, admin := s.states[key{actor, NamespaceAdmin}]
	delete(s.states, key{actor, NamespaceUser})
	delete(s.states, key{actor, NamespaceAdmin})
	return user || admin
}

// Len returns the number of open flows across all actors.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
