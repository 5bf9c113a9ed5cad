package scopekit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// HealthService exposes the storage health of a permission service, for
// readiness probes and operational dashboards. Decision correctness
// does not depend on it; an unhealthy database already surfaces as
// ErrDatabase on the affected operations.
type HealthService struct {
	*Service
}

// NewHealthService wraps a service with the health surface.
func NewHealthService(service *Service) *HealthService {
	return &HealthService{Service: service}
}

// Health reports the database status with latency and pool detail. A
// service bound to a transaction handle can only answer with a basic
// reachability check.
func (hs *HealthService) Health(ctx context.Context) dbkit.HealthStatus {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return db.Health(ctx)
	}

	return dbkit.HealthStatus{
		Healthy: hs.IsHealthy(ctx),
		Error:   "Limited health check - not a DBKit instance",
	}
}

// IsHealthy reports whether the rule store is reachable.
func (hs *HealthService) IsHealthy(ctx context.Context) bool {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return db.IsHealthy(ctx)
	}

	var count int
	err := hs.db.NewSelect().Model((*struct{})(nil)).ColumnExpr("1").Limit(1).Scan(ctx, &count)
	return err == nil
}

// GetPoolStats returns connection pool statistics, or zero values when
// the service is bound to a handle without a pool.
func (hs *HealthService) GetPoolStats() dbkit.PoolStats {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return dbkit.PoolStatsFromSQL(db.Stats())
	}

	return dbkit.PoolStats{}
}

// Ping runs a minimal round-trip query against the rule store.
func (hs *HealthService) Ping(ctx context.Context) error {
	var result int
	return hs.db.NewSelect().Model((*struct{})(nil)).ColumnExpr("1").Limit(1).Scan(ctx, &result)
}
