package scopekit

import (
	"context"

	"github.com/fernandezvara/dbkit"
	"github.com/google/uuid"
)

// MigrationService provides migration management functionality as an extension to Service
type MigrationService struct {
	*Service
}

// NewMigrationService creates a new migration service extension
func NewMigrationService(service *Service) *MigrationService {
	return &MigrationService{Service: service}
}

// Migrations returns all database migrations required for ScopeKit.
// Use dbkit.Migrate(ctx, service.Migrations()) to run migrations.
// Use dbkit.MigrationStatus(ctx, service.Migrations()) to check status.
func (ms *MigrationService) Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "scopekit-001",
			Description: "Create roles table",
			SQL: `
                CREATE TABLE IF NOT EXISTS roles (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    tenant_id TEXT NOT NULL,
                    name TEXT NOT NULL,
                    color TEXT NOT NULL DEFAULT '',
                    display_order INTEGER NOT NULL DEFAULT 0,
                    created_at TIMESTAMPTZ DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ DEFAULT current_timestamp,
                    UNIQUE (tenant_id, name)
                )`,
		},
		{
			ID:          "scopekit-002",
			Description: "Create role_permissions table",
			SQL: `
                CREATE TABLE IF NOT EXISTS role_permissions (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    role_id UUID NOT NULL REFERENCES roles (id),
                    resource_type TEXT NOT NULL,
                    action TEXT NOT NULL,
                    rule_kind TEXT NOT NULL,
                    scope TEXT,
                    group_id TEXT,
                    resource_id TEXT,
                    rule_key TEXT NOT NULL,
                    created_at TIMESTAMPTZ DEFAULT current_timestamp,
                    UNIQUE (role_id, rule_key)
                );
                CREATE INDEX IF NOT EXISTS idx_role_permissions_role ON role_permissions (role_id)`,
		},
		{
			ID:          "scopekit-003",
			Description: "Create user_role_assignments table",
			SQL: `
                CREATE TABLE IF NOT EXISTS user_role_assignments (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    principal_id TEXT NOT NULL,
                    role_id UUID NOT NULL REFERENCES roles (id),
                    tenant_id TEXT NOT NULL,
                    expires_at TIMESTAMPTZ,
                    created_at TIMESTAMPTZ DEFAULT current_timestamp,
                    UNIQUE (principal_id, role_id)
                );
                CREATE INDEX IF NOT EXISTS idx_assignments_principal_tenant ON user_role_assignments (principal_id, tenant_id);
                CREATE INDEX IF NOT EXISTS idx_assignments_expires ON user_role_assignments (expires_at) WHERE expires_at IS NOT NULL`,
		},
		{
			ID:          "scopekit-004",
			Description: "Create resource_groups table",
			SQL: `
                CREATE TABLE IF NOT EXISTS resource_groups (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    tenant_id TEXT NOT NULL,
                    name TEXT NOT NULL,
                    resource_type TEXT NOT NULL,
                    description TEXT NOT NULL DEFAULT '',
                    parent_group_id UUID,
                    metadata JSONB,
                    created_at TIMESTAMPTZ DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ DEFAULT current_timestamp,
                    UNIQUE (tenant_id, name, resource_type)
                )`,
		},
		{
			ID:          "scopekit-005",
			Description: "Create resource_group_memberships table",
			SQL: `
                CREATE TABLE IF NOT EXISTS resource_group_memberships (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    group_id UUID NOT NULL REFERENCES resource_groups (id),
                    resource_id TEXT NOT NULL,
                    resource_type TEXT NOT NULL,
                    created_at TIMESTAMPTZ DEFAULT current_timestamp,
                    UNIQUE (group_id, resource_id)
                );
                CREATE INDEX IF NOT EXISTS idx_memberships_resource ON resource_group_memberships (resource_id, resource_type)`,
		},
		{
			ID:          "scopekit-006",
			Description: "Create permission_audit_log table",
			SQL: `
                CREATE TABLE IF NOT EXISTS permission_audit_log (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    timestamp TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    actor_id TEXT NOT NULL,
                    action TEXT NOT NULL,
                    tenant_id TEXT NOT NULL,
                    role_id TEXT,
                    group_id TEXT,
                    target_principal_id TEXT,
                    resource_id TEXT,
                    rule_key TEXT,
                    ip_address TEXT,
                    user_agent TEXT,
                    request_id TEXT,
                    metadata JSONB
                );
                CREATE INDEX IF NOT EXISTS idx_audit_tenant_time ON permission_audit_log (tenant_id, timestamp)`,
		},
	}
}

// ImportLegacyGrants converts grants stored in the legacy dotted string
// notation ("edit.team", "view.group:g-1", "manage.id:rec-9") into
// typed rules granted to a role. Unparseable entries abort the import
// before any grant lands.
//
// Example:
//
//	err := migrations.ImportLegacyGrants(ctx, roleID, scopekit.ResourceTypeTable,
//		[]string{"view.all", "edit.team", "delete.own"})
func (ms *MigrationService) ImportLegacyGrants(ctx context.Context, roleID string, resourceType ResourceType, grants []string) error {
	role, err := ms.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	rules := make([]PermissionRule, 0, len(grants))
	for _, raw := range grants {
		rule, err := ParseLegacyGrant(resourceType, raw)
		if err != nil {
			return err
		}
		rules = append(rules, rule)
	}

	ms.cache.purge()
	defer ms.cache.purge()

	err = ms.Transaction(ctx, func(ctx context.Context, tx *Service) error {
		for _, rule := range rules {
			result, err := tx.db.NewInsert().
				Model(newRolePermission(uuid.NewString(), roleID, rule)).
				On("CONFLICT (role_id, rule_key) DO NOTHING").
				Exec(ctx)
			if err := dbkit.WithErr(result, err, "ImportLegacyGrants").Err(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, rule := range rules {
		ms.audit(ctx, &AuditEntry{
			Action:   AuditActionRuleGranted,
			TenantID: role.TenantID,
			RoleID:   roleID,
			RuleKey:  rule.Key(),
		})
	}

	return nil
}
