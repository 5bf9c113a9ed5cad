package scopekit

import "fmt"

// Scope is the breadth of resources a permission rule grants access to.
// Scopes are ordered by strength: a lower value is strictly more inclusive.
// The evaluator walks scopes in declaration order and stops at the first
// match, so the cheapest, widest grants are checked first.
type Scope int

const (
	// ScopeAll grants access to every resource of the matching type.
	ScopeAll Scope = iota

	// ScopeTeam grants access to resources belonging to a team the
	// principal is a member of.
	ScopeTeam

	// ScopeOwn grants access to resources the principal owns.
	ScopeOwn

	// ScopeResourceGroup grants access to resources that are members of
	// a named resource group.
	ScopeResourceGroup

	// ScopeResourceID grants access to a single resource by identifier.
	ScopeResourceID
)

var scopeNames = [...]string{"all", "team", "own", "group", "resource"}

// String returns the wire name of the scope.
func (s Scope) String() string {
	if !s.Valid() {
		return fmt.Sprintf("scope(%d)", int(s))
	}
	return scopeNames[s]
}

// Valid reports whether the scope is one of the defined values.
func (s Scope) Valid() bool {
	return s >= ScopeAll && s <= ScopeResourceID
}

// StrongerThan reports whether s is strictly more inclusive than other.
func (s Scope) StrongerThan(other Scope) bool {
	return s < other
}

// ParseScope converts a stored scope name back to a Scope.
// Unknown names are a configuration error, never silently defaulted.
func ParseScope(name string) (Scope, error) {
	for i, n := range scopeNames {
		if n == name {
			return Scope(i), nil
		}
	}
	return 0, NewError(ErrConfiguration, fmt.Sprintf("unknown scope %q", name))
}

// Action is a member of the closed verb vocabulary. Rules and check
// requests only ever carry these values; free-form strings are rejected
// at the boundary.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
	ActionExport Action = "export"
	ActionImport Action = "import"
)

// Actions lists every defined action in a stable order.
func Actions() []Action {
	return []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionManage, ActionExport, ActionImport}
}

// Valid reports whether the action is one of the defined values.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete, ActionManage, ActionExport, ActionImport:
		return true
	}
	return false
}

// Satisfies reports whether a rule carrying action a matches a request
// for the given action. ActionManage subsumes every other action on the
// same resource type; all other actions must match exactly.
func (a Action) Satisfies(requested Action) bool {
	return a == ActionManage || a == requested
}

// TypeLevel reports whether the action targets the resource type rather
// than an existing instance. Only these actions may be checked without
// a resource ID: the instance does not exist yet.
func (a Action) TypeLevel() bool {
	return a == ActionCreate || a == ActionImport
}

// ParseAction converts a stored action name back to an Action.
func ParseAction(name string) (Action, error) {
	a := Action(name)
	if !a.Valid() {
		return "", NewError(ErrConfiguration, fmt.Sprintf("unknown action %q", name))
	}
	return a, nil
}

// ResourceType is a member of the closed set of domain object
// categories. The set is extended by adding constants here, never at
// runtime.
type ResourceType string

const (
	ResourceTypeTable         ResourceType = "table"
	ResourceTypeRecord        ResourceType = "record"
	ResourceTypeDocument      ResourceType = "document"
	ResourceTypeWorkspace     ResourceType = "workspace"
	ResourceTypeTenant        ResourceType = "tenant"
	ResourceTypeUser          ResourceType = "user"
	ResourceTypeRole          ResourceType = "role"
	ResourceTypeResourceGroup ResourceType = "resource_group"
)

// ResourceTypes lists every defined resource type in a stable order.
func ResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceTypeTable, ResourceTypeRecord, ResourceTypeDocument,
		ResourceTypeWorkspace, ResourceTypeTenant, ResourceTypeUser,
		ResourceTypeRole, ResourceTypeResourceGroup,
	}
}

// Valid reports whether the resource type is one of the defined values.
func (rt ResourceType) Valid() bool {
	switch rt {
	case ResourceTypeTable, ResourceTypeRecord, ResourceTypeDocument,
		ResourceTypeWorkspace, ResourceTypeTenant, ResourceTypeUser,
		ResourceTypeRole, ResourceTypeResourceGroup:
		return true
	}
	return false
}

// ParseResourceType converts a stored resource type name back to a
// ResourceType.
func ParseResourceType(name string) (ResourceType, error) {
	rt := ResourceType(name)
	if !rt.Valid() {
		return "", NewError(ErrConfiguration, fmt.Sprintf("unknown resource type %q", name))
	}
	return rt, nil
}
