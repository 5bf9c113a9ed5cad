package scopekit

import "time"

// AuditLogFilter provides options for filtering audit log queries.
type AuditLogFilter struct {
	// Filter by actor who performed the action
	ActorID string

	// Filter by tenant
	TenantID string

	// Filter by target principal of the action
	TargetPrincipalID string

	// Filter by role
	RoleID string

	// Filter by resource group
	GroupID string

	// Filter by action type (see AuditAction constants)
	Action AuditAction

	// Filter by time range
	Since time.Time
	Until time.Time

	// Pagination
	Limit  int
	Offset int
}

// NewAuditLogFilter creates a new AuditLogFilter with default values.
func NewAuditLogFilter() AuditLogFilter {
	return AuditLogFilter{
		Limit: 100,
	}
}

// WithActor sets the actor ID filter.
func (f AuditLogFilter) WithActor(actorID string) AuditLogFilter {
	f.ActorID = actorID
	return f
}

// WithTenant sets the tenant filter.
func (f AuditLogFilter) WithTenant(tenantID string) AuditLogFilter {
	f.TenantID = tenantID
	return f
}

// WithTargetPrincipal sets the target principal filter.
func (f AuditLogFilter) WithTargetPrincipal(principalID string) AuditLogFilter {
	f.TargetPrincipalID = principalID
	return f
}

// WithRole sets the role filter.
func (f AuditLogFilter) WithRole(roleID string) AuditLogFilter {
	f.RoleID = roleID
	return f
}

// WithGroup sets the resource group filter.
func (f AuditLogFilter) WithGroup(groupID string) AuditLogFilter {
	f.GroupID = groupID
	return f
}

// WithAction sets the action filter.
func (f AuditLogFilter) WithAction(action AuditAction) AuditLogFilter {
	f.Action = action
	return f
}

// WithTimeRange sets the time range filter.
func (f AuditLogFilter) WithTimeRange(since, until time.Time) AuditLogFilter {
	f.Since = since
	f.Until = until
	return f
}

// WithSince sets the start time filter.
func (f AuditLogFilter) WithSince(since time.Time) AuditLogFilter {
	f.Since = since
	return f
}

// WithUntil sets the end time filter.
func (f AuditLogFilter) WithUntil(until time.Time) AuditLogFilter {
	f.Until = until
	return f
}

// WithLimit sets the limit for results.
func (f AuditLogFilter) WithLimit(limit int) AuditLogFilter {
	f.Limit = limit
	return f
}

// WithOffset sets the offset for pagination.
func (f AuditLogFilter) WithOffset(offset int) AuditLogFilter {
	f.Offset = offset
	return f
}

// WithPagination sets both limit and offset.
func (f AuditLogFilter) WithPagination(limit, offset int) AuditLogFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}

// Page bounds a paged membership listing.
type Page struct {
	Limit  int
	Offset int
}

// DefaultPage returns the default page bounds.
func DefaultPage() Page {
	return Page{Limit: 100}
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPage().Limit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
