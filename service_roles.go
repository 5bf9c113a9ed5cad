package scopekit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// ROLE MANAGEMENT
// ============================================================================

// CreateRole creates a role within a tenant. The name must be unique per
// tenant.
//
// Example:
//
//	role, err := service.CreateRole(ctx, tenantID, "Editor", "#0061ff", 10)
func (s *Service) CreateRole(ctx context.Context, tenantID, name, color string, displayOrder int) (*Role, error) {
	if tenantID == "" || name == "" {
		return nil, NewError(ErrConfiguration, "role requires a tenant ID and a name")
	}

	role := &Role{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Name:         name,
		Color:        color,
		DisplayOrder: displayOrder,
	}

	result, err := s.db.NewInsert().Model(role).Exec(ctx)
	err = dbkit.WithErr(result, err, "CreateRole").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return nil, NewError(ErrDuplicateName, "role name already exists in tenant").
				WithTenant(tenantID).
				WithRole(name)
		}
		return nil, err
	}

	s.audit(ctx, &AuditEntry{
		Action:   AuditActionRoleCreated,
		TenantID: tenantID,
		RoleID:   role.ID,
	})

	return role, nil
}

// RoleUpdate carries the mutable role attributes. Nil fields are left
// unchanged; permissions are mutated only through grant/revoke.
type RoleUpdate struct {
	Name         *string
	Color        *string
	DisplayOrder *int
}

// UpdateRole renames, recolors or reorders a role.
func (s *Service) UpdateRole(ctx context.Context, roleID string, update RoleUpdate) (*Role, error) {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	q := s.db.NewUpdate().Model((*Role)(nil)).Where("id = ?", roleID).Set("updated_at = ?", time.Now())
	if update.Name != nil {
		q = q.Set("name = ?", *update.Name)
		role.Name = *update.Name
	}
	if update.Color != nil {
		q = q.Set("color = ?", *update.Color)
		role.Color = *update.Color
	}
	if update.DisplayOrder != nil {
		q = q.Set("display_order = ?", *update.DisplayOrder)
		role.DisplayOrder = *update.DisplayOrder
	}

	result, err := q.Exec(ctx)
	err = dbkit.WithErr(result, err, "UpdateRole").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return nil, NewError(ErrDuplicateName, "role name already exists in tenant").
				WithTenant(role.TenantID).
				WithRole(roleID)
		}
		return nil, err
	}

	s.audit(ctx, &AuditEntry{
		Action:   AuditActionRoleUpdated,
		TenantID: role.TenantID,
		RoleID:   roleID,
	})

	return role, nil
}

// DeleteRole deletes a role, cascading removal of its granted rules and
// role assignments in one transaction.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	// Cached rule sets derived from this role become invalid; drop them
	// around the write so no reader keeps a stale ALLOW.
	s.cache.purge()
	defer s.cache.purge()

	err = s.Transaction(ctx, func(ctx context.Context, tx *Service) error {
		if _, err := tx.db.NewDelete().Table("user_role_assignments").Where("role_id = ?", roleID).Exec(ctx); err != nil {
			return dbkit.WithErr1(err, "DeleteRoleAssignments").Err()
		}
		if _, err := tx.db.NewDelete().Table("role_permissions").Where("role_id = ?", roleID).Exec(ctx); err != nil {
			return dbkit.WithErr1(err, "DeleteRolePermissions").Err()
		}
		result, err := tx.db.NewDelete().Table("roles").Where("id = ?", roleID).Exec(ctx)
		if err != nil {
			return dbkit.WithErr(result, err, "DeleteRole").Err()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, &AuditEntry{
		Action:   AuditActionRoleDeleted,
		TenantID: role.TenantID,
		RoleID:   roleID,
	})

	return nil
}

// GetRole retrieves a role by ID.
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	var role Role
	err := dbkit.WithErr1(s.db.NewSelect().Model(&role).Where("id = ?", roleID).Limit(1).Scan(ctx), "GetRole").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "role does not exist").WithRole(roleID)
		}
		return nil, err
	}
	return &role, nil
}

// ListRoles returns a tenant's roles ordered for display.
func (s *Service) ListRoles(ctx context.Context, tenantID string) ([]Role, error) {
	var roles []Role
	err := dbkit.WithErr1(s.db.NewSelect().Model(&roles).
		Where("tenant_id = ?", tenantID).
		Order("display_order ASC", "name ASC").
		Scan(ctx), "ListRoles").Err()
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// ============================================================================
// PERMISSION GRANTS
// ============================================================================

// GrantPermission grants a rule to a role. Granting a structurally equal
// rule twice is a no-op: rules are immutable, deduplicated by their
// canonical key.
//
// Example:
//
//	rule, _ := scopekit.NewGeneralRule(scopekit.ResourceTypeTable, scopekit.ActionEdit, scopekit.ScopeTeam)
//	err := service.GrantPermission(ctx, roleID, rule)
func (s *Service) GrantPermission(ctx context.Context, roleID string, rule PermissionRule) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	s.cache.purge()
	defer s.cache.purge()

	result, err := s.db.NewInsert().
		Model(newRolePermission(uuid.NewString(), roleID, rule)).
		On("CONFLICT (role_id, rule_key) DO NOTHING").
		Exec(ctx)
	err = dbkit.WithErr(result, err, "GrantPermission").Err()
	if err != nil {
		return NewError(ErrDatabase, "failed to grant permission").
			WithTenant(role.TenantID).
			WithRole(roleID)
	}

	s.audit(ctx, &AuditEntry{
		Action:   AuditActionRuleGranted,
		TenantID: role.TenantID,
		RoleID:   roleID,
		RuleKey:  rule.Key(),
	})

	return nil
}

// RevokePermission removes a granted rule from a role, matching by
// structural equality. Revoking an absent rule returns ErrNotFound.
func (s *Service) RevokePermission(ctx context.Context, roleID string, rule PermissionRule) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	s.cache.purge()
	defer s.cache.purge()

	result, err := s.db.NewDelete().Table("role_permissions").
		Where("role_id = ? AND rule_key = ?", roleID, rule.Key()).
		Exec(ctx)
	err = dbkit.WithErr(result, err, "RevokePermission").Err()
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewError(ErrNotFound, "rule is not granted to this role").
			WithTenant(role.TenantID).
			WithRole(roleID)
	}

	s.audit(ctx, &AuditEntry{
		Action:   AuditActionRuleRevoked,
		TenantID: role.TenantID,
		RoleID:   roleID,
		RuleKey:  rule.Key(),
	})

	return nil
}

// GetRolePermissions returns the rules granted to a role.
func (s *Service) GetRolePermissions(ctx context.Context, roleID string) (*RuleSet, error) {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return nil, err
	}

	var rows []RolePermission
	err := dbkit.WithErr1(s.db.NewSelect().Model(&rows).Where("role_id = ?", roleID).Scan(ctx), "GetRolePermissions").Err()
	if err != nil {
		return nil, err
	}

	rules := NewRuleSet()
	for i := range rows {
		rule, err := rows[i].Rule()
		if err != nil {
			return nil, err
		}
		rules.Add(rule)
	}
	return rules, nil
}

// ============================================================================
// ROLE ASSIGNMENTS
// ============================================================================

// AssignRole assigns a role to a principal, optionally until expiresAt.
// The assignment inherits the role's tenant. Assigning a role the
// principal already holds returns ErrAlreadyAssigned; change an expiry
// by removing and re-assigning, mirroring the revoke/re-grant rule
// lifecycle.
//
// Example:
//
//	until := time.Now().Add(30 * 24 * time.Hour)
//	err := service.AssignRole(ctx, principalID, roleID, &until)
func (s *Service) AssignRole(ctx context.Context, principalID, roleID string, expiresAt *time.Time) error {
	if principalID == "" {
		return NewError(ErrConfiguration, "assignment requires a principal ID")
	}

	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	exists, err := dbkit.Exists[UserRoleAssignment](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("principal_id = ? AND role_id = ?", principalID, roleID)
	})
	if err != nil {
		return dbkit.WithErr1(err, "CheckAssignmentExists").Err()
	}
	if exists {
		return NewError(ErrAlreadyAssigned, "principal already holds this role").
			WithTenant(role.TenantID).
			WithRole(roleID).
			WithPrincipal(principalID)
	}

	s.cache.invalidate(role.TenantID, principalID)
	defer s.cache.invalidate(role.TenantID, principalID)

	assignment := &UserRoleAssignment{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		RoleID:      roleID,
		TenantID:    role.TenantID,
		ExpiresAt:   expiresAt,
	}

	result, err := s.db.NewInsert().Model(assignment).Exec(ctx)
	err = dbkit.WithErr(result, err, "CreateRoleAssignment").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return NewError(ErrAlreadyAssigned, "principal already holds this role").
				WithTenant(role.TenantID).
				WithRole(roleID).
				WithPrincipal(principalID)
		}
		return NewError(ErrDatabase, "failed to create role assignment").
			WithTenant(role.TenantID).
			WithRole(roleID).
			WithPrincipal(principalID)
	}

	s.audit(ctx, &AuditEntry{
		Action:            AuditActionRoleAssigned,
		TenantID:          role.TenantID,
		RoleID:            roleID,
		TargetPrincipalID: principalID,
	})

	return nil
}

// RemoveRoleAssignment removes a principal's role assignment. Removing
// an assignment the principal does not hold returns ErrNotAssigned.
func (s *Service) RemoveRoleAssignment(ctx context.Context, principalID, roleID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	s.cache.invalidate(role.TenantID, principalID)
	defer s.cache.invalidate(role.TenantID, principalID)

	result, err := s.db.NewDelete().Table("user_role_assignments").
		Where("principal_id = ? AND role_id = ?", principalID, roleID).
		Exec(ctx)
	err = dbkit.WithErr(result, err, "RemoveRoleAssignment").Err()
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewError(ErrNotAssigned, "principal does not hold this role").
			WithTenant(role.TenantID).
			WithRole(roleID).
			WithPrincipal(principalID)
	}

	s.audit(ctx, &AuditEntry{
		Action:            AuditActionAssignmentRemoved,
		TenantID:          role.TenantID,
		RoleID:            roleID,
		TargetPrincipalID: principalID,
	})

	return nil
}

// RoleGrant names one principal/role pair for bulk assignment.
type RoleGrant struct {
	PrincipalID string
	RoleID      string
	ExpiresAt   *time.Time
}

// AssignRoles assigns multiple roles in a single transaction using a
// batch insert. More efficient than calling AssignRole in a loop.
func (s *Service) AssignRoles(ctx context.Context, grants []RoleGrant) error {
	if len(grants) == 0 {
		return nil
	}

	s.cache.purge()
	defer s.cache.purge()

	return s.Transaction(ctx, func(ctx context.Context, tx *Service) error {
		assignments := make([]*UserRoleAssignment, 0, len(grants))
		for _, g := range grants {
			role, err := tx.GetRole(ctx, g.RoleID)
			if err != nil {
				return err
			}
			assignments = append(assignments, &UserRoleAssignment{
				ID:          uuid.NewString(),
				PrincipalID: g.PrincipalID,
				RoleID:      g.RoleID,
				TenantID:    role.TenantID,
				ExpiresAt:   g.ExpiresAt,
			})
		}

		_, err := dbkit.BatchInsert(ctx, tx.db, assignments, dbkit.BatchSize)
		err = dbkit.WithErr1(err, "AssignRoles").Err()
		if err != nil {
			return NewError(ErrDatabase, "failed to batch assign roles")
		}

		for _, a := range assignments {
			tx.audit(ctx, &AuditEntry{
				Action:            AuditActionRoleAssigned,
				TenantID:          a.TenantID,
				RoleID:            a.RoleID,
				TargetPrincipalID: a.PrincipalID,
			})
		}

		return nil
	})
}

// ListAssignments returns a principal's role assignments within a
// tenant, including expired rows (callers can inspect ExpiresAt).
func (s *Service) ListAssignments(ctx context.Context, principalID, tenantID string) ([]UserRoleAssignment, error) {
	var assignments []UserRoleAssignment
	err := dbkit.WithErr1(s.db.NewSelect().Model(&assignments).
		Where("principal_id = ? AND tenant_id = ?", principalID, tenantID).
		Order("created_at ASC").
		Scan(ctx), "ListAssignments").Err()
	if err != nil {
		return nil, err
	}
	return assignments, nil
}
