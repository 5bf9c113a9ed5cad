package scopekit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// TestRoleLifecycle tests role CRUD against a real database
func TestRoleLifecycle(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := WithActorID(context.Background(), "admin-1")
	service, _, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	tenantID := uniqueID("tenant")

	role, err := service.CreateRole(ctx, tenantID, "Editor", "#0061ff", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, role.ID)
	assert.Equal(t, tenantID, role.TenantID)

	// Duplicate name in the same tenant is rejected.
	_, err = service.CreateRole(ctx, tenantID, "Editor", "#ff0000", 20)
	require.Error(t, err)
	assert.True(t, IsDuplicateName(err))

	// Same name in another tenant is fine.
	otherTenant := uniqueID("tenant")
	_, err = service.CreateRole(ctx, otherTenant, "Editor", "#0061ff", 10)
	require.NoError(t, err)

	// Update.
	newName := "Senior Editor"
	updated, err := service.UpdateRole(ctx, role.ID, RoleUpdate{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Senior Editor", updated.Name)

	fetched, err := service.GetRole(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "Senior Editor", fetched.Name)

	// Listing is ordered by display order.
	_, err = service.CreateRole(ctx, tenantID, "Admin", "#111111", 1)
	require.NoError(t, err)
	roles, err := service.ListRoles(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "Admin", roles[0].Name)

	// Delete cascades.
	require.NoError(t, service.DeleteRole(ctx, role.ID))
	_, err = service.GetRole(ctx, role.ID)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

// TestGrantRevokePermissions tests the rule grant lifecycle
func TestGrantRevokePermissions(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := WithActorID(context.Background(), "admin-1")
	service, _, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	tenantID := uniqueID("tenant")
	role, err := service.CreateRole(ctx, tenantID, "Clerk", "", 0)
	require.NoError(t, err)

	rule, err := NewGeneralRule(ResourceTypeTable, ActionEdit, ScopeTeam)
	require.NoError(t, err)

	require.NoError(t, service.GrantPermission(ctx, role.ID, rule))

	// Granting a structurally equal rule is a no-op, not an error.
	require.NoError(t, service.GrantPermission(ctx, role.ID, rule))

	rules, err := service.GetRolePermissions(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rules.Len())
	assert.True(t, rules.Contains(rule))

	// Revoke matches by structural equality.
	require.NoError(t, service.RevokePermission(ctx, role.ID, rule))

	rules, err = service.GetRolePermissions(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, rules.Len())

	// Revoking an absent rule reports not found.
	err = service.RevokePermission(ctx, role.ID, rule)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	// Unknown role.
	err = service.GrantPermission(ctx, uniqueID("missing"), rule)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

// TestRoleAssignments tests assignment creation, duplication and removal
func TestRoleAssignments(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := WithActorID(context.Background(), "admin-1")
	service, _, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	tenantID := uniqueID("tenant")
	principalID := uniqueID("user")
	role, err := service.CreateRole(ctx, tenantID, "Clerk", "", 0)
	require.NoError(t, err)

	require.NoError(t, service.AssignRole(ctx, principalID, role.ID, nil))

	err = service.AssignRole(ctx, principalID, role.ID, nil)
	require.Error(t, err)
	assert.True(t, IsAlreadyAssigned(err))

	assignments, err := service.ListAssignments(ctx, principalID, tenantID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Nil(t, assignments[0].ExpiresAt)

	require.NoError(t, service.RemoveRoleAssignment(ctx, principalID, role.ID))

	err = service.RemoveRoleAssignment(ctx, principalID, role.ID)
	require.Error(t, err)
	assert.True(t, IsNotAssigned(err))
}

// TestEffectiveRulesUnion tests rule aggregation across multiple roles
func TestEffectiveRulesUnion(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := WithActorID(context.Background(), "admin-1")
	service, _, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	tenantID := uniqueID("tenant")
	principalID := uniqueID("user")

	viewer, err := service.CreateRole(ctx, tenantID, "Viewer", "", 0)
	require.NoError(t, err)
	editor, err := service.CreateRole(ctx, tenantID, "Editor", "", 0)
	require.NoError(t, err)

	viewAll, _ := NewGeneralRule(ResourceTypeRecord, ActionView, ScopeAll)
	editOwn, _ := NewGeneralRule(ResourceTypeRecord, ActionEdit, ScopeOwn)
	sharedRule, _ := NewGeneralRule(ResourceTypeRecord, ActionView, ScopeAll)

	require.NoError(t, service.GrantPermission(ctx, viewer.ID, viewAll))
	require.NoError(t, service.GrantPermission(ctx, editor.ID, editOwn))
	require.NoError(t, service.GrantPermission(ctx, editor.ID, sharedRule))

	require.NoError(t, service.AssignRole(ctx, principalID, viewer.ID, nil))
	require.NoError(t, service.AssignRole(ctx, principalID, editor.ID, nil))

	rules, err := service.EffectiveRules(ctx, principalID, tenantID)
	require.NoError(t, err)
	// The shared rule appears once.
	assert.Equal(t, 2, rules.Len())
	assert.True(t, rules.Contains(viewAll))
	assert.True(t, rules.Contains(editOwn))
}

// TestEffectiveRulesTenantIsolation tests that assignments in one
// tenant never leak into another
func TestEffectiveRulesTenantIsolation(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := WithActorID(context.Background(), "admin-1")
	service, _, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	tenantA := uniqueID("tenant-a")
	tenantB := uniqueID("tenant-b")
	principalID := uniqueID("user")

	roleA, err := service.CreateRole(ctx, tenantA, "Admin", "", 0)
	require.NoError(t, err)
	manageAll, _ := NewGeneralRule(ResourceTypeTable, ActionManage, ScopeAll)
	require.NoError(t, service.GrantPermission(ctx, roleA.ID, manageAll))
	require.NoError(t, service.AssignRole(ctx, principalID, roleA.ID, nil))

	inA, err := service.EffectiveRules(ctx, principalID, tenantA)
	require.NoError(t, err)
	assert.Equal(t, 1, inA.Len())

	inB, err := service.EffectiveRules(ctx, principalID, tenantB)
	require.NoError(t, err)
	assert.Equal(t, 0, inB.Len())

	allowed, err := service.CheckAccess(ctx, principalID, tenantB, ResourceTypeTable, ActionView, "tbl-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

// TestExpiredAssignmentExcluded tests lazy expiry during aggregation
func TestExpiredAssignmentExcluded(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := WithActorID(context.Background(), "admin-1")
	service, _, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	tenantID := uniqueID("tenant")
	principalID := uniqueID("user")

	role, err := service.CreateRole(ctx, tenantID, "Temp", "", 0)
	require.NoError(t, err)
	viewAll, _ := NewGeneralRule(ResourceTypeRecord, ActionView, ScopeAll)
	require.NoError(t, service.GrantPermission(ctx, role.ID, viewAll))

	past := time.Now().Add(-time.Minute)
	require.NoError(t, service.AssignRole(ctx, principalID, role.ID, &past))

	rules, err := service.EffectiveRules(ctx, principalID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 0, rules.Len(), "expired assignment contributes nothing")

	allowed, err := service.CheckAccess(ctx, principalID, tenantID, ResourceTypeRecord, ActionView, "rec-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

// TestRevokeInvalidatesCache tests that a revoked rule stops granting
// immediately, through the cache
func TestRevokeInvalidatesCache(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := WithActorID(context.Background(), "admin-1")
	service, _, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	tenantID := uniqueID("tenant")
	principalID := uniqueID("user")

	role, err := service.CreateRole(ctx, tenantID, "Viewer", "", 0)
	require.NoError(t, err)
	viewAll, _ := NewGeneralRule(ResourceTypeRecord, ActionView, ScopeAll)
	require.NoError(t, service.GrantPermission(ctx, role.ID, viewAll))
	require.NoError(t, service.AssignRole(ctx, principalID, role.ID, nil))

	allowed, err := service.CheckAccess(ctx, principalID, tenantID, ResourceTypeRecord, ActionView, "rec-1")
	require.NoError(t, err)
	require.True(t, allowed)

	// Revoke and re-check without waiting for any TTL.
	require.NoError(t, service.RevokePermission(ctx, role.ID, viewAll))

	allowed, err = service.CheckAccess(ctx, principalID, tenantID, ResourceTypeRecord, ActionView, "rec-1")
	require.NoError(t, err)
	assert.False(t, allowed, "revocation must take effect immediately")

	// Same for assignment removal.
	require.NoError(t, service.GrantPermission(ctx, role.ID, viewAll))
	allowed, _ = service.CheckAccess(ctx, principalID, tenantID, ResourceTypeRecord, ActionView, "rec-1")
	require.True(t, allowed)

	require.NoError(t, service.RemoveRoleAssignment(ctx, principalID, role.ID))
	allowed, err = service.CheckAccess(ctx, principalID, tenantID, ResourceTypeRecord, ActionView, "rec-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

// TestBulkAssignRoles tests transactional batch assignment
func TestBulkAssignRoles(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := WithActorID(context.Background(), "admin-1")
	service, _, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	tenantID := uniqueID("tenant")
	role, err := service.CreateRole(ctx, tenantID, "Member", "", 0)
	require.NoError(t, err)

	grants := []RoleGrant{
		{PrincipalID: uniqueID("user-a"), RoleID: role.ID},
		{PrincipalID: uniqueID("user-b"), RoleID: role.ID},
		{PrincipalID: uniqueID("user-c"), RoleID: role.ID},
	}
	require.NoError(t, service.AssignRoles(ctx, grants))

	for _, g := range grants {
		assignments, err := service.ListAssignments(ctx, g.PrincipalID, tenantID)
		require.NoError(t, err)
		assert.Len(t, assignments, 1)
	}

	// Empty batch is a no-op.
	require.NoError(t, service.AssignRoles(ctx, nil))
}

// TestAuditLogRecords tests that management operations are audited
func TestAuditLogRecords(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	actorID := uniqueID("admin")
	ctx := WithActorID(context.Background(), actorID)
	ctx = WithIPAddress(ctx, "10.1.2.3")
	ctx = WithRequestID(ctx, "req-audit")

	service, _, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	tenantID := uniqueID("tenant")
	principalID := uniqueID("user")

	role, err := service.CreateRole(ctx, tenantID, "Auditor", "", 0)
	require.NoError(t, err)
	rule, _ := NewGeneralRule(ResourceTypeDocument, ActionView, ScopeAll)
	require.NoError(t, service.GrantPermission(ctx, role.ID, rule))
	require.NoError(t, service.AssignRole(ctx, principalID, role.ID, nil))
	require.NoError(t, service.RemoveRoleAssignment(ctx, principalID, role.ID))

	logs, err := service.GetAuditLog(ctx, NewAuditLogFilter().WithTenant(tenantID))
	require.NoError(t, err)
	require.Len(t, logs, 4)

	actions := make(map[string]bool)
	for _, l := range logs {
		actions[l.Action] = true
		assert.Equal(t, actorID, l.ActorID)
		assert.Equal(t, "10.1.2.3", l.IPAddress)
	}
	assert.True(t, actions[string(AuditActionRoleCreated)])
	assert.True(t, actions[string(AuditActionRuleGranted)])
	assert.True(t, actions[string(AuditActionRoleAssigned)])
	assert.True(t, actions[string(AuditActionAssignmentRemoved)])

	// Filter by action.
	granted, err := service.GetAuditLog(ctx, NewAuditLogFilter().
		WithTenant(tenantID).
		WithAction(AuditActionRuleGranted))
	require.NoError(t, err)
	require.Len(t, granted, 1)
	assert.Equal(t, rule.Key(), granted[0].RuleKey)
}
