package tenant

import "fmt"

// statusTransitions is the allowed lifecycle transition table.
// Lookup shape follows the nested-map state machine pattern: one read,
// no locking needed since the table is immutable.
var statusTransitions = map[Status]map[Status]struct{}{
	StatusProvisioning: {
		StatusActive:          {},
		StatusPendingDeletion: {},
	},
	StatusActive: {
		StatusInactive:        {},
		StatusSuspended:       {},
		StatusArchived:        {},
		StatusPendingDeletion: {},
	},
	StatusInactive: {
		StatusActive:          {},
		StatusArchived:        {},
		StatusPendingDeletion: {},
	},
	StatusSuspended: {
		StatusActive:          {},
		StatusPendingDeletion: {},
	},
	StatusArchived: {
		StatusPendingDeletion: {},
	},
	StatusPendingDeletion: {},
}

// CanTransition reports whether the lifecycle allows moving from one
// status to another. It does not consider the system-tenant guard.
func CanTransition(from, to Status) bool {
	next, ok := statusTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Transition validates and applies a lifecycle change on the tenant.
// The system tenant can never be suspended or scheduled for deletion.
func (t *Tenant) Transition(to Status) error {
	if t.System && (to == StatusSuspended || to == StatusPendingDeletion) {
		return fmt.Errorf("%w: system tenant cannot move to %s", ErrSystemTenantProtected, to)
	}
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	return nil
}
