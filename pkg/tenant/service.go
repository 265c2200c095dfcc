package tenant

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Repository is the full durable contract the admin service requires.
// PostgresStore satisfies it.
type Repository interface {
	Store
	SubdomainExists(ctx context.Context, subdomain string) (bool, error)
	Insert(ctx context.Context, t *Tenant) error
	Update(ctx context.Context, t *Tenant) error
	List(ctx context.Context, f ListFilter) ([]Tenant, int, error)
	DueScheduledSuspensions(ctx context.Context, now time.Time) ([]Tenant, error)
}

// AuditRecorder receives administrative operation events. Implementations
// must never fail the calling operation; errors are swallowed and logged
// on the audit side.
type AuditRecorder interface {
	RecordAdmin(ctx context.Context, action string, tenantID uuid.UUID, metadata map[string]any)
}

type noopAudit struct{}

func (noopAudit) RecordAdmin(context.Context, string, uuid.UUID, map[string]any) {}

// Service implements tenant administration: provisioning, lifecycle
// changes, API key rotation and listings. Every mutation invalidates the
// directory cache after the store write commits, so no window exists in
// which a suspended tenant's cache entry still reports active.
type Service struct {
	repo  Repository
	dir   *Directory
	audit AuditRecorder
	log   *slog.Logger
	now   func() time.Time
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithAudit attaches an administrative audit recorder.
func WithAudit(a AuditRecorder) ServiceOption {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the tenant admin service.
func NewService(repo Repository, dir *Directory, opts ...ServiceOption) *Service {
	s := &Service{
		repo:  repo,
		dir:   dir,
		audit: noopAudit{},
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams describes a new tenant.
type CreateParams struct {
	Name         string
	Subdomain    string
	ContactEmail string
	Config       Config
	System       bool
}

// Create provisions a new tenant and returns it together with the
// plaintext API key, which is shown exactly once - only its bcrypt hash
// is stored. Subdomain uniqueness is guaranteed by the store's unique
// index; the existence check here only short-circuits the common case.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Tenant, string, error) {
	sub := strings.ToLower(strings.TrimSpace(p.Subdomain))
	if !IsValidSubdomain(sub) {
		return nil, "", fmt.Errorf("%w: %q", ErrSubdomainInvalid, sub)
	}
	if IsReservedSubdomain(sub) {
		return nil, "", fmt.Errorf("%w: %q", ErrSubdomainReserved, sub)
	}
	if taken, err := s.repo.SubdomainExists(ctx, sub); err != nil {
		return nil, "", err
	} else if taken {
		return nil, "", ErrSubdomainTaken
	}

	apiKey, hash, err := generateAPIKey()
	if err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	t := &Tenant{
		ID:           uuid.New(),
		Name:         p.Name,
		Subdomain:    sub,
		ContactEmail: p.ContactEmail,
		Status:       StatusProvisioning,
		Config:       p.Config,
		APIKeyHash:   hash,
		System:       p.System,
		CreatedAt:    now,
	}
	if err := s.repo.Insert(ctx, t); err != nil {
		return nil, "", err
	}

	s.audit.RecordAdmin(ctx, "tenant.create", t.ID, map[string]any{
		"subdomain": t.Subdomain,
		"name":      t.Name,
	})
	return t, apiKey, nil
}

// CompleteProvisioning moves a provisioning tenant to active.
func (s *Service) CompleteProvisioning(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.change(ctx, id, "tenant.activate", nil, func(t *Tenant) error {
		if err := t.Transition(StatusActive); err != nil {
			return err
		}
		now := s.now().UTC()
		t.ActivatedAt = &now
		return nil
	})
}

// Get returns the full tenant entity.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns a filtered, paginated tenant listing with the total count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Tenant, int, error) {
	return s.repo.List(ctx, f)
}

// UpdateParams carries the mutable tenant attributes. The subdomain is
// intentionally absent: it cannot change.
type UpdateParams struct {
	Name         string
	ContactEmail string
	Config       *Config
}

// Update modifies mutable tenant attributes.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Tenant, error) {
	return s.change(ctx, id, "tenant.update", nil, func(t *Tenant) error {
		if p.Name != "" {
			t.Name = p.Name
		}
		if p.ContactEmail != "" {
			t.ContactEmail = p.ContactEmail
		}
		if p.Config != nil {
			t.Config = *p.Config
		}
		return nil
	})
}

// SuspendParams controls a suspension.
type SuspendParams struct {
	Reason string
	// EffectiveAt schedules the suspension; nil or past means immediate.
	EffectiveAt *time.Time
	// Notify requests a notification to the tenant's contact email.
	// Delivery is handled outside this subsystem; the flag is audited.
	Notify bool
}

// Suspend suspends a tenant immediately, or schedules the suspension
// when EffectiveAt lies in the future. Scheduled suspensions are applied
// by SweepScheduledSuspensions.
func (s *Service) Suspend(ctx context.Context, id uuid.UUID, p SuspendParams) (*Tenant, error) {
	now := s.now().UTC()
	meta := map[string]any{"reason": p.Reason, "notify": p.Notify}

	if p.EffectiveAt != nil && p.EffectiveAt.After(now) {
		meta["effective_at"] = p.EffectiveAt.UTC()
		return s.change(ctx, id, "tenant.suspend_scheduled", meta, func(t *Tenant) error {
			if t.System {
				return ErrSystemTenantProtected
			}
			at := p.EffectiveAt.UTC()
			t.SuspendScheduledAt = &at
			t.SuspensionReason = p.Reason
			return nil
		})
	}

	return s.change(ctx, id, "tenant.suspend", meta, func(t *Tenant) error {
		if err := t.Transition(StatusSuspended); err != nil {
			return err
		}
		t.SuspensionReason = p.Reason
		t.SuspendedAt = &now
		t.SuspendScheduledAt = nil
		return nil
	})
}

// SweepScheduledSuspensions applies all scheduled suspensions that have
// come due. It is intended to be driven by an external scheduler.
func (s *Service) SweepScheduledSuspensions(ctx context.Context) (int, error) {
	due, err := s.repo.DueScheduledSuspensions(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	applied := 0
	for i := range due {
		t := &due[i]
		if _, err := s.Suspend(ctx, t.ID, SuspendParams{Reason: t.SuspensionReason}); err != nil {
			s.log.ErrorContext(ctx, "scheduled suspension failed",
				slog.String("tenant_id", t.ID.String()), slog.Any("error", err))
			continue
		}
		applied++
	}
	return applied, nil
}

// Reactivate returns a suspended or inactive tenant to active.
func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.change(ctx, id, "tenant.reactivate", nil, func(t *Tenant) error {
		if err := t.Transition(StatusActive); err != nil {
			return err
		}
		t.SuspensionReason = ""
		t.SuspendedAt = nil
		t.SuspendScheduledAt = nil
		return nil
	})
}

// SoftDelete marks a tenant for deletion. Data removal happens out of
// band; from this point the tenant no longer resolves as accessible.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.change(ctx, id, "tenant.soft_delete", nil, func(t *Tenant) error {
		if err := t.Transition(StatusPendingDeletion); err != nil {
			return err
		}
		now := s.now().UTC()
		t.DeletedAt = &now
		return nil
	})
}

// RotateAPIKey replaces the tenant's API key, returning the new
// plaintext key exactly once.
func (s *Service) RotateAPIKey(ctx context.Context, id uuid.UUID) (string, error) {
	apiKey, hash, err := generateAPIKey()
	if err != nil {
		return "", err
	}
	_, err = s.change(ctx, id, "tenant.rotate_api_key", nil, func(t *Tenant) error {
		now := s.now().UTC()
		t.APIKeyHash = hash
		t.APIKeyRotatedAt = &now
		return nil
	})
	if err != nil {
		return "", err
	}
	return apiKey, nil
}

// VerifyAPIKey checks a presented API key against the stored hash.
func (s *Service) VerifyAPIKey(ctx context.Context, id uuid.UUID, key string) (bool, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(t.APIKeyHash), []byte(key))
	return err == nil, nil
}

// change loads, mutates, persists, invalidates and audits in order.
// Cache invalidation strictly follows the committed write so a stale
// concurrent read cannot outlive the mutation.
func (s *Service) change(ctx context.Context, id uuid.UUID, action string, meta map[string]any, mutate func(*Tenant) error) (*Tenant, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(t); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	s.dir.Invalidate(ctx, t.ID, t.Subdomain)
	s.audit.RecordAdmin(ctx, action, t.ID, meta)
	return t, nil
}

// generateAPIKey returns a fresh key and its bcrypt hash.
func generateAPIKey() (key, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	key = "rk_" + hex.EncodeToString(raw)
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return key, string(h), nil
}
