package scopekit

import (
	"context"
	"slices"

	"github.com/uptrace/bun"
)

// GroupMemberLister answers which resources a group contains. The
// Service satisfies this against the membership table; the predicate
// builder uses it to fold group grants into an explicit identifier list.
type GroupMemberLister interface {
	AllResourcesForGroup(ctx context.Context, tenantID, groupID string) ([]string, error)
}

// AccessPredicate is the declarative form of "would the evaluator return
// ALLOW for this resource". It compiles a rule set once so listings can
// filter in the database instead of evaluating per row.
//
// An empty predicate (no ALL grant, no owner, no teams, no identifiers)
// is the contradiction: the listing legitimately returns zero rows,
// which is a normal outcome and never an error.
type AccessPredicate struct {
	// All marks the tautology: an ALL-scope rule matched, nothing is
	// filtered.
	All bool

	// OwnerID, when set, admits rows whose owner column equals it.
	OwnerID string

	// TeamIDs admits rows whose team column is one of these.
	TeamIDs []string

	// ResourceIDs admits rows by identifier. Holds both explicit
	// ResourceID grants and the members of permitted groups.
	ResourceIDs []string
}

// None reports whether the predicate matches nothing.
func (p *AccessPredicate) None() bool {
	return !p.All && p.OwnerID == "" && len(p.TeamIDs) == 0 && len(p.ResourceIDs) == 0
}

// Matches evaluates the predicate in memory against one row's
// authorization columns. Used for tests and for callers that already
// hold the rows.
func (p *AccessPredicate) Matches(resourceID, ownerID, teamID string) bool {
	if p.All {
		return true
	}
	if p.OwnerID != "" && ownerID == p.OwnerID {
		return true
	}
	if teamID != "" && slices.Contains(p.TeamIDs, teamID) {
		return true
	}
	return slices.Contains(p.ResourceIDs, resourceID)
}

// PredicateColumns names the authorization columns of the table a
// predicate is applied to.
type PredicateColumns struct {
	ID      string
	OwnerID string
	TeamID  string
}

// DefaultPredicateColumns returns the conventional column names.
func DefaultPredicateColumns() PredicateColumns {
	return PredicateColumns{ID: "id", OwnerID: "owner_id", TeamID: "team_id"}
}

// ApplyTo appends the predicate to a bun SELECT query as one OR-group.
// The tautology leaves the query untouched; the contradiction appends a
// clause that matches no rows.
func (p *AccessPredicate) ApplyTo(q *bun.SelectQuery, cols PredicateColumns) *bun.SelectQuery {
	if p.All {
		return q
	}
	if p.None() {
		return q.Where("FALSE")
	}
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		if p.OwnerID != "" {
			q = q.WhereOr("? = ?", bun.Ident(cols.OwnerID), p.OwnerID)
		}
		if len(p.TeamIDs) > 0 {
			q = q.WhereOr("? IN (?)", bun.Ident(cols.TeamID), bun.In(p.TeamIDs))
		}
		if len(p.ResourceIDs) > 0 {
			q = q.WhereOr("? IN (?)", bun.Ident(cols.ID), bun.In(p.ResourceIDs))
		}
		return q
	})
}

// BuildAccessPredicate compiles a rule set into an AccessPredicate
// equivalent to per-row evaluation for the given type and action.
//
// Unlike the evaluator's per-check lookups, a collaborator failure here
// is returned as an error: the caller is building a listing and can
// surface the infrastructure failure instead of silently showing an
// empty page.
func BuildAccessPredicate(ctx context.Context, rules *RuleSet, principalID, tenantID string,
	resourceType ResourceType, action Action, teams TeamResolver, members GroupMemberLister) (*AccessPredicate, error) {

	if err := validateVocabulary(resourceType, action); err != nil {
		return nil, err
	}
	if rules == nil || rules.Len() == 0 {
		return &AccessPredicate{}, nil
	}

	if rules.HasGeneral(resourceType, action, ScopeAll) {
		return &AccessPredicate{All: true}, nil
	}

	p := &AccessPredicate{}

	if rules.HasGeneral(resourceType, action, ScopeTeam) {
		teamIDs, err := teams.PrincipalTeams(ctx, tenantID, principalID)
		if err != nil {
			return nil, err
		}
		p.TeamIDs = teamIDs
	}

	if rules.HasGeneral(resourceType, action, ScopeOwn) {
		p.OwnerID = principalID
	}

	ids := make(map[string]bool)
	for _, groupID := range rules.GroupIDs(resourceType, action) {
		resourceIDs, err := members.AllResourcesForGroup(ctx, tenantID, groupID)
		if err != nil {
			return nil, err
		}
		for _, id := range resourceIDs {
			ids[id] = true
		}
	}
	for _, id := range rules.ResourceIDs(resourceType, action) {
		ids[id] = true
	}
	if len(ids) > 0 {
		p.ResourceIDs = make([]string, 0, len(ids))
		for id := range ids {
			p.ResourceIDs = append(p.ResourceIDs, id)
		}
		slices.Sort(p.ResourceIDs)
	}

	return p, nil
}
