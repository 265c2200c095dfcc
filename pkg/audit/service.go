// Package audit records access, cross-tenant, and administrative
// events. Writes are best-effort from the caller's perspective: a
// failed write is logged, never surfaced.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Writer accepts single events; both AsyncWriter and direct storage
// adapters satisfy it.
type Writer interface {
	Store(ctx context.Context, event Event) error
}

// Extractor pulls one identity or transport field from the request
// context.
type Extractor func(ctx context.Context) (string, bool)

// Service is the caller-facing audit emitter. Identity and transport
// fields are populated from the context via the configured extractors.
type Service struct {
	writer    Writer
	log       *slog.Logger
	userID    Extractor
	userEmail Extractor
	requestID Extractor
	clientIP  Extractor
	userAgent Extractor
	now       func() time.Time
}

type Option func(*Service)

func WithUserIDExtractor(fn Extractor) Option    { return func(s *Service) { s.userID = fn } }
func WithUserEmailExtractor(fn Extractor) Option { return func(s *Service) { s.userEmail = fn } }
func WithRequestIDExtractor(fn Extractor) Option { return func(s *Service) { s.requestID = fn } }
func WithClientIPExtractor(fn Extractor) Option  { return func(s *Service) { s.clientIP = fn } }
func WithUserAgentExtractor(fn Extractor) Option { return func(s *Service) { s.userAgent = fn } }

func WithServiceLogger(log *slog.Logger) Option { return func(s *Service) { s.log = log } }

func NewService(writer Writer, opts ...Option) *Service {
	if writer == nil {
		panic("audit: writer cannot be nil")
	}
	s := &Service{
		writer: writer,
		log:    slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordAccess emits an ordinary access event.
func (s *Service) RecordAccess(ctx context.Context, tenantID uuid.UUID, action string, metadata map[string]any) {
	s.emit(ctx, TypeAccess, tenantID, action, metadata)
}

// RecordCrossTenantAttempt emits a security event for a denied
// cross-tenant access. tenantID is the tenant that made the attempt;
// the event never carries the owning tenant's id, so the security feed
// cannot leak who owns the targeted resource.
func (s *Service) RecordCrossTenantAttempt(ctx context.Context, tenantID uuid.UUID, action string, metadata map[string]any) {
	s.emit(ctx, TypeCrossTenantAttempt, tenantID, action, metadata)
}

// RecordAdmin emits an administrative operation event. It satisfies
// the tenant service's AuditRecorder contract.
func (s *Service) RecordAdmin(ctx context.Context, action string, tenantID uuid.UUID, metadata map[string]any) {
	s.emit(ctx, TypeAdminOperation, tenantID, action, metadata)
}

func (s *Service) emit(ctx context.Context, t EventType, tenantID uuid.UUID, action string, metadata map[string]any) {
	event := Event{
		ID:        uuid.New(),
		Type:      t,
		TenantID:  tenantID,
		Action:    action,
		Metadata:  metadata,
		Timestamp: s.now().UTC(),
	}
	event.UserID = s.extract(ctx, s.userID)
	event.UserEmail = s.extract(ctx, s.userEmail)
	event.RequestID = s.extract(ctx, s.requestID)
	event.IP = s.extract(ctx, s.clientIP)
	event.UserAgent = s.extract(ctx, s.userAgent)

	if err := event.Validate(); err != nil {
		s.log.ErrorContext(ctx, "invalid audit event", slog.Any("error", err))
		return
	}
	if err := s.writer.Store(ctx, event); err != nil {
		s.log.ErrorContext(ctx, "failed to write audit event",
			slog.String("type", string(t)),
			slog.String("action", action),
			slog.Any("error", err))
	}
}

func (s *Service) extract(ctx context.Context, fn Extractor) string {
	if fn == nil {
		return ""
	}
	v, _ := fn(ctx)
	return v
}

// SyncWriter writes each event straight through to storage. Used in
// tests and small deployments where batching is not worth a goroutine.
type SyncWriter struct {
	storage Storage
}

func NewSyncWriter(storage Storage) *SyncWriter {
	return &SyncWriter{storage: storage}
}

func (w *SyncWriter) Store(ctx context.Context, event Event) error {
	return w.storage.StoreBatch(ctx, []Event{event})
}
