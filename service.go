package scopekit

import (
	"context"
	"log/slog"

	"github.com/fernandezvara/dbkit"
	"github.com/google/uuid"
)

// Service is the entry point of the permission engine. It owns the
// storage of roles, rules, assignments and resource groups, aggregates
// effective rule sets, and exposes the decision and filter-building
// operations.
//
// Authentication is out of scope: principal and tenant identifiers are
// trusted verbatim, the caller must have verified them upstream.
//
// Error Handling:
// All database operations use dbkit's chainable error wrapping so failed
// operations carry their operation name and database context. Domain
// errors are classified through the sentinel helpers:
//
//	group, err := service.CreateResourceGroup(ctx, tenantID, "vip-tables", scopekit.ResourceTypeTable, "", nil)
//	if err != nil {
//	    if scopekit.IsDuplicateName(err) {
//	        // 409-equivalent
//	    }
//	    if scopekit.IsNotFound(err) {
//	        // 404-equivalent
//	    }
//	}
type Service struct {
	db        dbkit.IDB
	owners    OwnershipResolver
	teams     TeamResolver
	evaluator *Evaluator
	cache     *ruleCache
	metrics   *Metrics
	logger    *slog.Logger
	txMonitor *transactionMonitor
}

// Option configures a Service.
type Option func(*serviceConfig)

type serviceConfig struct {
	cache   CacheConfig
	metrics *Metrics
	logger  *slog.Logger
}

// WithCacheConfig overrides the effective-rule cache configuration.
func WithCacheConfig(config CacheConfig) Option {
	return func(c *serviceConfig) {
		c.cache = config
	}
}

// WithMetrics attaches a Prometheus metrics sink.
func WithMetrics(metrics *Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = metrics
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

// New creates a ScopeKit service.
//
// The ownership and team resolvers are the host application's read-only
// collaborators; group membership is resolved against ScopeKit's own
// tables.
//
// Example:
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := scopekit.New(db, owners, teams,
//	    scopekit.WithMetrics(scopekit.NewMetrics(registry)),
//	)
func New(db dbkit.IDB, owners OwnershipResolver, teams TeamResolver, opts ...Option) *Service {
	cfg := &serviceConfig{
		cache:  DefaultCacheConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Service{
		db:        db,
		owners:    owners,
		teams:     teams,
		cache:     newRuleCache(cfg.cache, cfg.metrics),
		metrics:   cfg.metrics,
		logger:    cfg.logger,
		txMonitor: newTransactionMonitor(),
	}
	s.evaluator = NewEvaluator(owners, teams, s,
		WithEvaluatorLogger(cfg.logger),
		WithEvaluatorMetrics(cfg.metrics),
	)
	return s
}

// Evaluator returns the decision engine, for callers that load rule
// sets themselves.
func (s *Service) Evaluator() *Evaluator {
	return s.evaluator
}

// ============================================================================
// AUDIT LOG
// ============================================================================

// GetAuditLog retrieves audit log entries with optional filters.
func (s *Service) GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]PermissionAuditLog, error) {
	var logs []PermissionAuditLog
	q := s.db.NewSelect().Model(&logs)
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.TenantID != "" {
		q = q.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.TargetPrincipalID != "" {
		q = q.Where("target_principal_id = ?", filter.TargetPrincipalID)
	}
	if filter.RoleID != "" {
		q = q.Where("role_id = ?", filter.RoleID)
	}
	if filter.GroupID != "" {
		q = q.Where("group_id = ?", filter.GroupID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("timestamp <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 100 // Default limit
	}
	q = q.Limit(limit)

	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	q = q.Order("timestamp DESC")
	err := dbkit.WithErr1(q.Scan(ctx), "GetAuditLog").Err()
	if err != nil {
		return nil, err
	}

	return logs, nil
}

func (s *Service) logAudit(ctx context.Context, entry *AuditEntry) error {
	if entry.ActorID == "" {
		audit := GetAuditContext(ctx)
		entry.ActorID = audit.ActorID
		entry.IPAddress = audit.IPAddress
		entry.UserAgent = audit.UserAgent
		entry.RequestID = audit.RequestID
	}
	_, err := s.db.NewInsert().Model(entry.ToModel(uuid.NewString())).Exec(ctx)
	return dbkit.WithErr1(err, "LogAudit").Err()
}

// audit writes an audit row, logging but never failing the parent
// operation.
func (s *Service) audit(ctx context.Context, entry *AuditEntry) {
	if err := s.logAudit(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "audit log write failed",
			slog.String("action", string(entry.Action)),
			slog.Any("error", err),
		)
	}
}
