package scopekit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// EFFECTIVE RULES
// ============================================================================

// EffectiveRules returns the deduplicated union of the rules granted to
// every role the principal holds in the tenant, skipping expired
// assignments. Results are cached per (tenant, principal); mutations to
// roles, grants or assignments invalidate the cache before the write
// lands.
func (s *Service) EffectiveRules(ctx context.Context, principalID, tenantID string) (*RuleSet, error) {
	if principalID == "" {
		return nil, NewError(ErrNoPrincipalID, "effective rules require a principal ID").WithTenant(tenantID)
	}
	if tenantID == "" {
		return nil, NewError(ErrNoTenantID, "effective rules require a tenant ID").WithPrincipal(principalID)
	}

	if cached, ok := s.cache.get(tenantID, principalID); ok {
		return cached, nil
	}

	var rows []RolePermission
	err := dbkit.WithErr1(s.db.NewSelect().Model(&rows).
		Join("JOIN user_role_assignments AS ura ON ura.role_id = rp.role_id").
		Where("ura.principal_id = ?", principalID).
		Where("ura.tenant_id = ?", tenantID).
		Where("ura.expires_at IS NULL OR ura.expires_at > ?", time.Now()).
		Scan(ctx), "EffectiveRules").Err()
	if err != nil {
		return nil, NewError(ErrDatabase, "failed to load effective rules").
			WithTenant(tenantID).
			WithPrincipal(principalID)
	}

	rules := NewRuleSet()
	for i := range rows {
		rule, err := rows[i].Rule()
		if err != nil {
			// A malformed stored rule must not silently widen or narrow
			// the principal's access.
			return nil, err
		}
		rules.Add(rule)
	}

	s.cache.set(tenantID, principalID, rules)

	return rules, nil
}

// InvalidateRules drops the cached rule set for one principal in one
// tenant. Mutating operations call this themselves; expose it for
// callers that change assignments outside this service.
func (s *Service) InvalidateRules(tenantID, principalID string) {
	s.cache.invalidate(tenantID, principalID)
}

// InvalidateAllRules drops every cached rule set.
func (s *Service) InvalidateAllRules() {
	s.cache.purge()
}

// ============================================================================
// ACCESS CHECKS
// ============================================================================

// CheckAccess answers whether a principal may perform an action on a
// resource. It returns an error only for malformed input or a failure
// loading the principal's rules; resolver failures during evaluation
// deny the matching step and are logged, never surfaced.
//
// Example:
//
//	allowed, err := service.CheckAccess(ctx, userID, tenantID,
//		scopekit.ResourceTypeRecord, scopekit.ActionEdit, recordID)
func (s *Service) CheckAccess(ctx context.Context, principalID, tenantID string, resourceType ResourceType, action Action, resourceID string) (bool, error) {
	return s.Check(ctx, CheckRequest{
		PrincipalID:  principalID,
		TenantID:     tenantID,
		ResourceType: resourceType,
		Action:       action,
		ResourceID:   resourceID,
	})
}

// Check answers a full check request, including creation-time checks
// (empty ResourceID with TargetTeamID set).
func (s *Service) Check(ctx context.Context, req CheckRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}

	rules, err := s.EffectiveRules(ctx, req.PrincipalID, req.TenantID)
	if err != nil {
		return false, err
	}

	return s.evaluator.Evaluate(ctx, req, rules)
}

// ============================================================================
// LISTING FILTERS
// ============================================================================

// BuildListingFilter derives the access predicate for listing resources
// of one type: the filter admits exactly the resources CheckAccess
// would allow for the same principal, tenant, type and action.
//
// Example:
//
//	pred, err := service.BuildListingFilter(ctx, userID, tenantID,
//		scopekit.ResourceTypeTable, scopekit.ActionView)
//	if err != nil {
//		return err
//	}
//	q := db.NewSelect().Model(&tables)
//	pred.ApplyTo(q, scopekit.DefaultPredicateColumns())
func (s *Service) BuildListingFilter(ctx context.Context, principalID, tenantID string, resourceType ResourceType, action Action) (*AccessPredicate, error) {
	if !resourceType.Valid() {
		return nil, NewError(ErrConfiguration, "unknown resource type").WithResource(resourceType, "")
	}
	if !action.Valid() {
		return nil, NewError(ErrConfiguration, "unknown action")
	}

	rules, err := s.EffectiveRules(ctx, principalID, tenantID)
	if err != nil {
		return nil, err
	}

	return BuildAccessPredicate(ctx, rules, principalID, tenantID, resourceType, action, s.teams, s)
}
