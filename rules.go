package scopekit

import (
	"fmt"
	"sort"
	"strings"
)

// RuleKind identifies the variant of a PermissionRule.
type RuleKind int

const (
	// RuleGeneral is a scope-based grant (ALL, TEAM or OWN).
	RuleGeneral RuleKind = iota

	// RuleResourceGroup grants access to members of a resource group.
	// Its scope is implicitly ScopeResourceGroup.
	RuleResourceGroup

	// RuleResourceID grants access to a single resource by identifier.
	// Its scope is implicitly ScopeResourceID.
	RuleResourceID
)

var ruleKindNames = [...]string{"general", "group", "resource"}

// String returns the wire name of the rule kind.
func (k RuleKind) String() string {
	if k < RuleGeneral || k > RuleResourceID {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return ruleKindNames[k]
}

// ParseRuleKind converts a stored kind name back to a RuleKind.
func ParseRuleKind(name string) (RuleKind, error) {
	for i, n := range ruleKindNames {
		if n == name {
			return RuleKind(i), nil
		}
	}
	return 0, NewError(ErrConfiguration, fmt.Sprintf("unknown rule kind %q", name))
}

// PermissionRule is a single grant: (resourceType, action, scope) plus
// an identifier for the group and resource variants. Rules are immutable
// value types built through the New*Rule constructors, which makes the
// illegal combinations (a general rule with a group scope, an untyped
// action) unrepresentable.
type PermissionRule struct {
	kind         RuleKind
	resourceType ResourceType
	action       Action
	scope        Scope  // general rules only; derived for the other kinds
	groupID      string // group rules only
	resourceID   string // resource rules only
}

// NewGeneralRule creates a rule granting action on all resources of the
// type within the given scope. The scope must be ALL, TEAM or OWN; the
// narrower scopes belong to the dedicated rule kinds.
func NewGeneralRule(resourceType ResourceType, action Action, scope Scope) (PermissionRule, error) {
	if err := validateVocabulary(resourceType, action); err != nil {
		return PermissionRule{}, err
	}
	switch scope {
	case ScopeAll, ScopeTeam, ScopeOwn:
	default:
		return PermissionRule{}, NewError(ErrConfiguration,
			fmt.Sprintf("general rule scope must be all, team or own, got %q", scope))
	}
	return PermissionRule{
		kind:         RuleGeneral,
		resourceType: resourceType,
		action:       action,
		scope:        scope,
	}, nil
}

// NewResourceGroupRule creates a rule granting action on every resource
// that is a member of the given group.
func NewResourceGroupRule(resourceType ResourceType, action Action, groupID string) (PermissionRule, error) {
	if err := validateVocabulary(resourceType, action); err != nil {
		return PermissionRule{}, err
	}
	if groupID == "" {
		return PermissionRule{}, NewError(ErrConfiguration, "group rule requires a group ID")
	}
	return PermissionRule{
		kind:         RuleResourceGroup,
		resourceType: resourceType,
		action:       action,
		scope:        ScopeResourceGroup,
		groupID:      groupID,
	}, nil
}

// NewResourceIDRule creates a rule granting action on a single resource.
func NewResourceIDRule(resourceType ResourceType, action Action, resourceID string) (PermissionRule, error) {
	if err := validateVocabulary(resourceType, action); err != nil {
		return PermissionRule{}, err
	}
	if resourceID == "" {
		return PermissionRule{}, NewError(ErrConfiguration, "resource rule requires a resource ID")
	}
	return PermissionRule{
		kind:         RuleResourceID,
		resourceType: resourceType,
		action:       action,
		scope:        ScopeResourceID,
		resourceID:   resourceID,
	}, nil
}

func validateVocabulary(resourceType ResourceType, action Action) error {
	if !resourceType.Valid() {
		return NewError(ErrConfiguration, fmt.Sprintf("unknown resource type %q", resourceType))
	}
	if !action.Valid() {
		return NewError(ErrConfiguration, fmt.Sprintf("unknown action %q", action))
	}
	return nil
}

// Kind returns the rule variant.
func (r PermissionRule) Kind() RuleKind { return r.kind }

// ResourceType returns the resource type the rule applies to.
func (r PermissionRule) ResourceType() ResourceType { return r.resourceType }

// Action returns the action the rule grants.
func (r PermissionRule) Action() Action { return r.action }

// Scope returns the effective scope of the rule. Group and resource
// rules report their implicit scope.
func (r PermissionRule) Scope() Scope { return r.scope }

// GroupID returns the group identifier of a RuleResourceGroup rule,
// empty otherwise.
func (r PermissionRule) GroupID() string { return r.groupID }

// ResourceID returns the resource identifier of a RuleResourceID rule,
// empty otherwise.
func (r PermissionRule) ResourceID() string { return r.resourceID }

// Matches reports whether the rule applies to a request for action on
// resourceType, honoring MANAGE subsumption.
func (r PermissionRule) Matches(resourceType ResourceType, action Action) bool {
	return r.resourceType == resourceType && r.action.Satisfies(action)
}

// Key returns a canonical string identity for the rule. Two rules are
// structurally equal iff their keys are equal; the key is also what the
// storage layer uses for deduplication.
//
// Examples:
//
//	table/edit/team
//	table/manage/group:g-123
//	record/view/resource:rec-9
func (r PermissionRule) Key() string {
	switch r.kind {
	case RuleResourceGroup:
		return fmt.Sprintf("%s/%s/group:%s", r.resourceType, r.action, r.groupID)
	case RuleResourceID:
		return fmt.Sprintf("%s/%s/resource:%s", r.resourceType, r.action, r.resourceID)
	default:
		return fmt.Sprintf("%s/%s/%s", r.resourceType, r.action, r.scope)
	}
}

// String returns the rule key.
func (r PermissionRule) String() string { return r.Key() }

// RuleSet is a principal's effective rule set: the deduplicated union of
// the rules of every currently-valid role assignment. It is derived
// state, never stored.
type RuleSet struct {
	rules map[string]PermissionRule
}

// NewRuleSet creates a RuleSet from the given rules, deduplicating by
// structural equality.
func NewRuleSet(rules ...PermissionRule) *RuleSet {
	rs := &RuleSet{rules: make(map[string]PermissionRule, len(rules))}
	for _, r := range rules {
		rs.Add(r)
	}
	return rs
}

// Add inserts a rule, ignoring structural duplicates.
func (rs *RuleSet) Add(rule PermissionRule) {
	rs.rules[rule.Key()] = rule
}

// Len returns the number of distinct rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Rules returns the rules in a stable (key-sorted) order.
func (rs *RuleSet) Rules() []PermissionRule {
	keys := make([]string, 0, len(rs.rules))
	for k := range rs.rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]PermissionRule, 0, len(keys))
	for _, k := range keys {
		out = append(out, rs.rules[k])
	}
	return out
}

// Contains reports whether a structurally equal rule is present.
func (rs *RuleSet) Contains(rule PermissionRule) bool {
	_, ok := rs.rules[rule.Key()]
	return ok
}

// HasGeneral reports whether any general rule grants action on
// resourceType at exactly the given scope (honoring MANAGE subsumption).
func (rs *RuleSet) HasGeneral(resourceType ResourceType, action Action, scope Scope) bool {
	for _, r := range rs.rules {
		if r.kind == RuleGeneral && r.scope == scope && r.Matches(resourceType, action) {
			return true
		}
	}
	return false
}

// GroupIDs returns the deduplicated group identifiers named by matching
// group rules, sorted for determinism.
func (rs *RuleSet) GroupIDs(resourceType ResourceType, action Action) []string {
	return rs.collectIDs(RuleResourceGroup, resourceType, action)
}

// ResourceIDs returns the deduplicated resource identifiers named by
// matching resource rules, sorted for determinism.
func (rs *RuleSet) ResourceIDs(resourceType ResourceType, action Action) []string {
	return rs.collectIDs(RuleResourceID, resourceType, action)
}

func (rs *RuleSet) collectIDs(kind RuleKind, resourceType ResourceType, action Action) []string {
	seen := make(map[string]bool)
	for _, r := range rs.rules {
		if r.kind != kind || !r.Matches(resourceType, action) {
			continue
		}
		if kind == RuleResourceGroup {
			seen[r.groupID] = true
		} else {
			seen[r.resourceID] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ============================================================================
// LEGACY GRANT MIGRATION
// ============================================================================

// ParseLegacyGrant converts an old-style "action.scope" permission
// string into a typed rule. The legacy grammar is:
//
//	<action>.all
//	<action>.team
//	<action>.own
//	<action>.group:<groupID>
//	<action>.id:<resourceID>
//
// This exists only so stored string grants can be migrated once; the
// evaluation path never parses strings.
func ParseLegacyGrant(resourceType ResourceType, raw string) (PermissionRule, error) {
	action, rest, ok := strings.Cut(raw, ".")
	if !ok || action == "" || rest == "" {
		return PermissionRule{}, NewError(ErrConfiguration,
			fmt.Sprintf("legacy grant %q is not of the form action.scope", raw))
	}

	a, err := ParseAction(action)
	if err != nil {
		return PermissionRule{}, err
	}

	switch {
	case rest == "all":
		return NewGeneralRule(resourceType, a, ScopeAll)
	case rest == "team":
		return NewGeneralRule(resourceType, a, ScopeTeam)
	case rest == "own":
		return NewGeneralRule(resourceType, a, ScopeOwn)
	case strings.HasPrefix(rest, "group:"):
		return NewResourceGroupRule(resourceType, a, strings.TrimPrefix(rest, "group:"))
	case strings.HasPrefix(rest, "id:"):
		return NewResourceIDRule(resourceType, a, strings.TrimPrefix(rest, "id:"))
	}
	return PermissionRule{}, NewError(ErrConfiguration,
		fmt.Sprintf("legacy grant %q has unknown scope %q", raw, rest))
}
