package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStorageNotAvailable indicates the storage backend is unavailable.
	ErrStorageNotAvailable = errors.New("audit: storage backend is unavailable")
	// ErrEventValidation indicates event validation failed.
	ErrEventValidation = errors.New("audit: event validation failed")
)

// EventType classifies audit events. Retention differs per type:
// ordinary access is short-lived, security and admin events are kept
// for compliance windows.
type EventType string

const (
	TypeAccess             EventType = "access"
	TypeCrossTenantAttempt EventType = "cross_tenant_attempt"
	TypeAdminOperation     EventType = "admin_operation"
)

// Event is a write-once audit record.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      EventType      `json:"type"`
	TenantID  uuid.UUID      `json:"tenant_id"`
	UserID    string         `json:"user_id,omitempty"`
	UserEmail string         `json:"user_email,omitempty"`
	Action    string         `json:"action"`
	RequestID string         `json:"request_id,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Validate checks the fields required of every event.
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	switch e.Type {
	case TypeAccess, TypeCrossTenantAttempt, TypeAdminOperation:
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrEventValidation, e.Type)
	}
	return nil
}
