package scopekit

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

// OwnershipResolver answers who owns a resource. Implemented by the
// host application; lookups should be fast indexed reads.
type OwnershipResolver interface {
	// Owner returns the principal ID that created/owns the resource, or
	// empty string if it has no owner.
	Owner(ctx context.Context, tenantID string, resourceType ResourceType, resourceID string) (string, error)
}

// TeamResolver answers team membership questions. Implemented by the
// host application.
type TeamResolver interface {
	// PrincipalTeams returns the IDs of every team the principal
	// belongs to within the tenant.
	PrincipalTeams(ctx context.Context, tenantID, principalID string) ([]string, error)

	// ResourceTeam returns the ID of the team the resource belongs to,
	// or empty string if it belongs to none.
	ResourceTeam(ctx context.Context, tenantID string, resourceType ResourceType, resourceID string) (string, error)
}

// GroupResolver answers which resource groups contain a resource.
// The Service satisfies this against the membership table.
type GroupResolver interface {
	GroupsForResource(ctx context.Context, tenantID string, resourceType ResourceType, resourceID string) ([]string, error)
}

// CheckRequest carries the identifying inputs of one access check.
type CheckRequest struct {
	PrincipalID  string
	TenantID     string
	ResourceType ResourceType
	Action       Action

	// ResourceID may be empty only for type-level actions (e.g. CREATE,
	// where no instance exists yet).
	ResourceID string

	// TargetTeamID optionally names the team a new resource is being
	// created into, so TEAM-scoped rules can apply to creation-time
	// checks. Ignored when ResourceID is set.
	TargetTeamID string
}

// Validate checks the request for malformed input. A failure here is a
// caller defect surfaced as ErrConfiguration, never a DENY.
func (r CheckRequest) Validate() error {
	if r.PrincipalID == "" {
		return NewError(ErrConfiguration, "check request requires a principal ID")
	}
	if r.TenantID == "" {
		return NewError(ErrConfiguration, "check request requires a tenant ID")
	}
	if !r.ResourceType.Valid() {
		return NewError(ErrConfiguration, "unknown resource type").WithResource(r.ResourceType, r.ResourceID)
	}
	if !r.Action.Valid() {
		return NewError(ErrConfiguration, "unknown action").WithResource(r.ResourceType, r.ResourceID)
	}
	if r.ResourceID == "" && !r.Action.TypeLevel() {
		// A missing instance ID on an instance-level action is a caller
		// defect; silently applying creation-time semantics would let an
		// OWN or TEAM grant allow the check.
		return NewError(ErrConfiguration, "check request requires a resource ID for this action").
			WithPrincipal(r.PrincipalID).
			WithResource(r.ResourceType, "")
	}
	return nil
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithEvaluatorLogger sets the structured logger used for fail-closed
// denial logging.
func WithEvaluatorLogger(logger *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithEvaluatorMetrics sets the metrics sink for decisions and lookup
// failures.
func WithEvaluatorMetrics(metrics *Metrics) EvaluatorOption {
	return func(e *Evaluator) {
		e.metrics = metrics
	}
}

// Evaluator decides whether a principal may perform an action on a
// resource, given an effective rule set. It holds no mutable state and
// is safe for concurrent use; each call is independent.
type Evaluator struct {
	owners  OwnershipResolver
	teams   TeamResolver
	groups  GroupResolver
	logger  *slog.Logger
	metrics *Metrics
}

// NewEvaluator creates an Evaluator over the given collaborators.
func NewEvaluator(owners OwnershipResolver, teams TeamResolver, groups GroupResolver, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		owners: owners,
		teams:  teams,
		groups: groups,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate walks the scope hierarchy from strongest to weakest and
// returns true on the first matching grant. Matching is OR across every
// scope and every rule; no rule can revoke access granted by another.
//
// DENY is the normal negative result, not an error. Evaluate returns an
// error only for malformed input. A collaborator lookup failure is
// logged, counted, and treated as "this scope does not match": the
// check fails closed, never open.
func (e *Evaluator) Evaluate(ctx context.Context, req CheckRequest, rules *RuleSet) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}

	start := time.Now()
	allowed := e.evaluate(ctx, req, rules)
	e.metrics.recordDecision(req.ResourceType, req.Action, allowed, time.Since(start))
	return allowed, nil
}

func (e *Evaluator) evaluate(ctx context.Context, req CheckRequest, rules *RuleSet) bool {
	if rules == nil || rules.Len() == 0 {
		return false
	}

	// ALL: no lookups needed.
	if rules.HasGeneral(req.ResourceType, req.Action, ScopeAll) {
		return true
	}

	if rules.HasGeneral(req.ResourceType, req.Action, ScopeTeam) && e.matchTeam(ctx, req) {
		return true
	}

	if rules.HasGeneral(req.ResourceType, req.Action, ScopeOwn) && e.matchOwn(ctx, req) {
		return true
	}

	// Group and identifier scopes require an existing resource.
	if req.ResourceID == "" {
		return false
	}

	if e.matchGroups(ctx, req, rules) {
		return true
	}

	return slices.Contains(rules.ResourceIDs(req.ResourceType, req.Action), req.ResourceID)
}

// matchTeam checks whether the resource belongs to a team the principal
// belongs to. For creation-time checks the would-be team is taken from
// TargetTeamID.
func (e *Evaluator) matchTeam(ctx context.Context, req CheckRequest) bool {
	resourceTeam := req.TargetTeamID
	if req.ResourceID != "" {
		var err error
		resourceTeam, err = e.teams.ResourceTeam(ctx, req.TenantID, req.ResourceType, req.ResourceID)
		if err != nil {
			e.denyLookup(ctx, req, "resource_team", err)
			return false
		}
	}
	if resourceTeam == "" {
		return false
	}

	teams, err := e.teams.PrincipalTeams(ctx, req.TenantID, req.PrincipalID)
	if err != nil {
		e.denyLookup(ctx, req, "principal_teams", err)
		return false
	}
	return slices.Contains(teams, resourceTeam)
}

// matchOwn checks whether the principal owns the resource. A
// creation-time check matches trivially: the creator is the would-be
// owner.
func (e *Evaluator) matchOwn(ctx context.Context, req CheckRequest) bool {
	if req.ResourceID == "" {
		return true
	}
	owner, err := e.owners.Owner(ctx, req.TenantID, req.ResourceType, req.ResourceID)
	if err != nil {
		e.denyLookup(ctx, req, "owner", err)
		return false
	}
	return owner != "" && owner == req.PrincipalID
}

// matchGroups checks whether the groups containing the resource
// intersect the groups named by matching group rules.
func (e *Evaluator) matchGroups(ctx context.Context, req CheckRequest, rules *RuleSet) bool {
	permitted := rules.GroupIDs(req.ResourceType, req.Action)
	if len(permitted) == 0 {
		return false
	}
	memberOf, err := e.groups.GroupsForResource(ctx, req.TenantID, req.ResourceType, req.ResourceID)
	if err != nil {
		e.denyLookup(ctx, req, "resource_groups", err)
		return false
	}
	for _, g := range memberOf {
		if slices.Contains(permitted, g) {
			return true
		}
	}
	return false
}

// denyLookup records a collaborator failure. The failing scope is
// treated as not matching so the overall check fails closed.
func (e *Evaluator) denyLookup(ctx context.Context, req CheckRequest, lookup string, err error) {
	e.metrics.recordLookupError(lookup)
	e.logger.ErrorContext(ctx, "permission lookup failed, failing closed",
		slog.String("lookup", lookup),
		slog.String("tenant_id", req.TenantID),
		slog.String("principal_id", req.PrincipalID),
		slog.String("resource_type", string(req.ResourceType)),
		slog.String("resource_id", req.ResourceID),
		slog.String("action", string(req.Action)),
		slog.Any("error", err),
	)
}
