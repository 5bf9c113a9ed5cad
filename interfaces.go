package scopekit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
)

// Database defines the database operations interface for dependency injection
type Database interface {
	dbkit.IDB
}

// AccessChecker is the decision entry point consumed by HTTP guards and
// other callers that only need yes/no answers.
type AccessChecker interface {
	CheckAccess(ctx context.Context, principalID, tenantID string, resourceType ResourceType, action Action, resourceID string) (bool, error)
}

// ListingFilterBuilder compiles a principal's grants into a predicate
// for resource listings.
type ListingFilterBuilder interface {
	BuildListingFilter(ctx context.Context, principalID, tenantID string, resourceType ResourceType, action Action) (*AccessPredicate, error)
}

// RoleManager defines the role and assignment management interface
type RoleManager interface {
	CreateRole(ctx context.Context, tenantID, name, color string, displayOrder int) (*Role, error)
	UpdateRole(ctx context.Context, roleID string, update RoleUpdate) (*Role, error)
	DeleteRole(ctx context.Context, roleID string) error
	GrantPermission(ctx context.Context, roleID string, rule PermissionRule) error
	RevokePermission(ctx context.Context, roleID string, rule PermissionRule) error
	AssignRole(ctx context.Context, principalID, roleID string, expiresAt *time.Time) error
	RemoveRoleAssignment(ctx context.Context, principalID, roleID string) error
}

// GroupRegistry defines the resource group management interface
type GroupRegistry interface {
	CreateResourceGroup(ctx context.Context, tenantID, name string, resourceType ResourceType, description string, metadata map[string]any) (*ResourceGroup, error)
	AddResourceToGroup(ctx context.Context, groupID, resourceID string, resourceType ResourceType) error
	RemoveResourceFromGroup(ctx context.Context, groupID, resourceID string) error
	GetGroupsForResource(ctx context.Context, tenantID string, resourceType ResourceType, resourceID string) ([]string, error)
	GetResourcesForGroup(ctx context.Context, groupID string, page Page) ([]string, error)
}

// TransactionManager defines the transaction management interface. The
// callback receives a service bound to the transaction handle.
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *Service) error) error
	TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context, tx *Service) error) error
	ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx *Service) error) error
}

// MigrationManager defines the migration management interface
type MigrationManager interface {
	Migrations() []dbkit.Migration
}

// HealthMonitor defines the health monitoring interface
type HealthMonitor interface {
	Health(ctx context.Context) dbkit.HealthStatus
	IsHealthy(ctx context.Context) bool
	Ping(ctx context.Context) error
	GetPoolStats() dbkit.PoolStats
}

// TransactionMonitor defines the transaction monitoring interface
type TransactionMonitor interface {
	GetTransactionMetrics() TransactionMetrics
	ResetTransactionMetrics()
	IsTransactionHealthy() bool
}
