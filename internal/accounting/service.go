package accounting

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Scope names the entity an operation runs for. ActorID is optional: callers
// without an authenticated user pass only the entity.
type Scope struct {
	EntityID int64
	ActorID  *int64
}

// ForEntity builds a scope without an actor.
func ForEntity(entityID int64) Scope {
	return Scope{EntityID: entityID}
}

func (s Scope) actor() int64 {
	if s.ActorID == nil {
		return 0
	}
	return *s.ActorID
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Locker serialises writers of one entity across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// BalanceCache memoises balance reads. Bump invalidates every key of an entity.
type BalanceCache interface {
	BuildKey(ctx context.Context, entityID int64, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context, entityID int64) error
}

// Metrics observes ledger writes.
type Metrics interface {
	ObservePosting(transactionType string, rows int)
	ObserveAssignment(forex bool)
}

// Service is the ledger core: accounts, balances, posting, assignments and periods.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	settings Settings
	logger   *slog.Logger
	cache    BalanceCache
	locker   Locker
	metrics  Metrics
	validate *validator.Validate
	reads    singleflight.Group
	now      func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort, settings Settings) *Service {
	if settings.AccountLabels == nil {
		settings = DefaultSettings()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		settings: settings,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLogger sets the structured logger.
func (s *Service) WithLogger(logger *slog.Logger) {
	s.logger = logger
}

// WithCache enables cached balance reads.
func (s *Service) WithCache(cache BalanceCache) {
	s.cache = cache
}

// WithLocker enables a cross-process entity lock around writes.
func (s *Service) WithLocker(locker Locker) {
	s.locker = locker
}

// WithMetrics enables write instrumentation.
func (s *Service) WithMetrics(metrics Metrics) {
	s.metrics = metrics
}

// Settings exposes the configuration in use.
func (s *Service) Settings() Settings {
	return s.settings
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// write runs fn in one repository transaction holding the entity lock, then
// invalidates cached balances of the entity.
func (s *Service) write(ctx context.Context, scope Scope, fn func(context.Context, TxRepository) error) error {
	if scope.EntityID == 0 {
		return ErrEntityRequired
	}
	if s.locker != nil {
		release, err := s.locker.Lock(ctx, shared.EntityLockKey(scope.EntityID))
		if err != nil {
			return err
		}
		defer release()
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockEntity(ctx, scope.EntityID); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx, scope.EntityID); err != nil {
			s.log().Warn("balance cache bump", slog.Int64("entity_id", scope.EntityID), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) read(ctx context.Context, scope Scope, fn func(context.Context, TxRepository) error) error {
	if scope.EntityID == 0 {
		return ErrEntityRequired
	}
	return s.repo.WithTx(ctx, fn)
}

func (s *Service) record(ctx context.Context, scope Scope, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		LedgerEntityID: scope.EntityID,
		ActorID:        scope.actor(),
		Action:         action,
		Entity:         entity,
		EntityID:       entityID,
		Meta:           meta,
		At:             s.now(),
	})
	if err != nil {
		s.log().Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
