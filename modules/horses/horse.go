// Package horses is the rescue-intake domain module. It is the
// exemplar consumer of the tenant isolation machinery: every read and
// write goes through a tenant-guarded store.
package horses

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks a horse through the rescue lifecycle.
type Status string

const (
	StatusIntake         Status = "intake"
	StatusRehabilitation Status = "rehabilitation"
	StatusAvailable      Status = "available"
	StatusAdopted        Status = "adopted"
	StatusSanctuary      Status = "sanctuary"
)

// Horse is a tenant-owned record. The tenant id is stamped by the
// scoped store on insert and never changes afterwards.
type Horse struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Breed     string    `json:"breed,omitempty"`
	Color     string    `json:"color,omitempty"`
	BirthYear int       `json:"birth_year,omitempty"`
	Status    Status    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *Horse) EntityID() uuid.UUID      { return h.ID }
func (h *Horse) TenantID() uuid.UUID      { return h.OwnerID }
func (h *Horse) SetTenantID(id uuid.UUID) { h.OwnerID = id }

func validStatus(s Status) bool {
	switch s {
	case StatusIntake, StatusRehabilitation, StatusAvailable, StatusAdopted, StatusSanctuary:
		return true
	}
	return false
}
