package scopekit

import (
	"time"

	"github.com/uptrace/bun"
)

// Role is an administrator-defined bundle of permission rules within a
// tenant. Roles own their granted rules exclusively; principals share a
// role through assignments.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID           string    `bun:"id,pk,type:uuid"`
	TenantID     string    `bun:"tenant_id,notnull"`
	Name         string    `bun:"name,notnull"` // Unique per tenant
	Color        string    `bun:"color"`
	DisplayOrder int       `bun:"display_order,notnull,default:0"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// RolePermission is the stored form of a PermissionRule granted to a
// role. Rows are immutable: revoke deletes, re-grant inserts. The
// rule_key column carries the canonical rule identity and is unique per
// role, which makes grants idempotent by structural equality.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	ID           string    `bun:"id,pk,type:uuid"`
	RoleID       string    `bun:"role_id,notnull"`
	ResourceType string    `bun:"resource_type,notnull"`
	Action       string    `bun:"action,notnull"`
	RuleKind     string    `bun:"rule_kind,notnull"` // "general", "group", "resource"
	Scope        string    `bun:"scope"`             // general rules only
	GroupID      string    `bun:"group_id"`          // group rules only
	ResourceID   string    `bun:"resource_id"`       // resource rules only
	RuleKey      string    `bun:"rule_key,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Rule reconstructs the typed PermissionRule from a stored row. Rows are
// validated through the rule constructors on write, so a failure here
// means the table was modified out of band.
func (rp *RolePermission) Rule() (PermissionRule, error) {
	rt, err := ParseResourceType(rp.ResourceType)
	if err != nil {
		return PermissionRule{}, err
	}
	action, err := ParseAction(rp.Action)
	if err != nil {
		return PermissionRule{}, err
	}
	kind, err := ParseRuleKind(rp.RuleKind)
	if err != nil {
		return PermissionRule{}, err
	}

	switch kind {
	case RuleResourceGroup:
		return NewResourceGroupRule(rt, action, rp.GroupID)
	case RuleResourceID:
		return NewResourceIDRule(rt, action, rp.ResourceID)
	default:
		scope, err := ParseScope(rp.Scope)
		if err != nil {
			return PermissionRule{}, err
		}
		return NewGeneralRule(rt, action, scope)
	}
}

// newRolePermission builds the stored row for a granted rule.
func newRolePermission(id, roleID string, rule PermissionRule) *RolePermission {
	rp := &RolePermission{
		ID:           id,
		RoleID:       roleID,
		ResourceType: string(rule.ResourceType()),
		Action:       string(rule.Action()),
		RuleKind:     rule.Kind().String(),
		GroupID:      rule.GroupID(),
		ResourceID:   rule.ResourceID(),
		RuleKey:      rule.Key(),
	}
	if rule.Kind() == RuleGeneral {
		rp.Scope = rule.Scope().String()
	}
	return rp
}

// UserRoleAssignment links a principal to a role, optionally until an
// expiry timestamp. Expired assignments are excluded lazily at
// aggregation time; the Sweeper deletes them in the background.
type UserRoleAssignment struct {
	bun.BaseModel `bun:"table:user_role_assignments,alias:ura"`

	ID          string     `bun:"id,pk,type:uuid"`
	PrincipalID string     `bun:"principal_id,notnull"`
	RoleID      string     `bun:"role_id,notnull"`
	TenantID    string     `bun:"tenant_id,notnull"`
	ExpiresAt   *time.Time `bun:"expires_at,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

// Expired reports whether the assignment has lapsed at the given time.
func (a *UserRoleAssignment) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && !a.ExpiresAt.After(now)
}

// ResourceGroup is an administrator-defined, named collection that
// resources of one type can join many-to-many. The optional parent
// pointer is organizational display metadata only; it never contributes
// to permission evaluation.
type ResourceGroup struct {
	bun.BaseModel `bun:"table:resource_groups,alias:rg"`

	ID            string         `bun:"id,pk,type:uuid"`
	TenantID      string         `bun:"tenant_id,notnull"`
	Name          string         `bun:"name,notnull"` // Unique per (tenant, name, resource_type)
	ResourceType  ResourceType   `bun:"resource_type,notnull"`
	Description   string         `bun:"description"`
	ParentGroupID string         `bun:"parent_group_id,nullzero"`
	Metadata      map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt     time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
}

// ResourceGroupMembership records that a resource belongs to a group.
// A resource may belong to any number of groups; the (resource, group)
// pair is unique.
type ResourceGroupMembership struct {
	bun.BaseModel `bun:"table:resource_group_memberships,alias:rgm"`

	ID           string       `bun:"id,pk,type:uuid"`
	ResourceID   string       `bun:"resource_id,notnull"`
	GroupID      string       `bun:"group_id,notnull"`
	ResourceType ResourceType `bun:"resource_type,notnull"`
	CreatedAt    time.Time    `bun:"created_at,notnull,default:current_timestamp"`
}

// PermissionAuditLog records permission and membership mutations for
// compliance and debugging.
type PermissionAuditLog struct {
	bun.BaseModel `bun:"table:permission_audit_log,alias:pal"`

	ID        string    `bun:"id,pk,type:uuid"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp"`

	// Who performed the action
	ActorID string `bun:"actor_id,notnull"`

	// What action was performed
	Action string `bun:"action,notnull"`

	// Target of the action
	TenantID          string `bun:"tenant_id,notnull"`
	RoleID            string `bun:"role_id"`
	TargetPrincipalID string `bun:"target_principal_id"`
	GroupID           string `bun:"group_id"`
	ResourceID        string `bun:"resource_id"`
	RuleKey           string `bun:"rule_key"`

	// Request metadata for forensics
	IPAddress string `bun:"ip_address"`
	UserAgent string `bun:"user_agent"`
	RequestID string `bun:"request_id"`

	// Additional context (JSON)
	Metadata map[string]any `bun:"metadata,type:jsonb"`
}

// AuditAction represents the type of action in the audit log.
type AuditAction string

const (
	AuditActionRuleGranted       AuditAction = "rule_granted"
	AuditActionRuleRevoked       AuditAction = "rule_revoked"
	AuditActionRoleAssigned      AuditAction = "role_assigned"
	AuditActionAssignmentRemoved AuditAction = "assignment_removed"
	AuditActionRoleCreated       AuditAction = "role_created"
	AuditActionRoleUpdated       AuditAction = "role_updated"
	AuditActionRoleDeleted       AuditAction = "role_deleted"
	AuditActionGroupCreated      AuditAction = "group_created"
	AuditActionGroupUpdated      AuditAction = "group_updated"
	AuditActionGroupDeleted      AuditAction = "group_deleted"
	AuditActionMemberAdded       AuditAction = "member_added"
	AuditActionMemberRemoved     AuditAction = "member_removed"
)

// AuditEntry is used to create new audit log entries.
type AuditEntry struct {
	ActorID           string
	Action            AuditAction
	TenantID          string
	RoleID            string
	TargetPrincipalID string
	GroupID           string
	ResourceID        string
	RuleKey           string
	IPAddress         string
	UserAgent         string
	RequestID         string
	Metadata          map[string]any
}

// ToModel converts an AuditEntry to a PermissionAuditLog model.
func (e *AuditEntry) ToModel(id string) *PermissionAuditLog {
	return &PermissionAuditLog{
		ID:                id,
		Timestamp:         time.Now(),
		ActorID:           e.ActorID,
		Action:            string(e.Action),
		TenantID:          e.TenantID,
		RoleID:            e.RoleID,
		TargetPrincipalID: e.TargetPrincipalID,
		GroupID:           e.GroupID,
		ResourceID:        e.ResourceID,
		RuleKey:           e.RuleKey,
		IPAddress:         e.IPAddress,
		UserAgent:         e.UserAgent,
		RequestID:         e.RequestID,
		Metadata:          e.Metadata,
	}
}
