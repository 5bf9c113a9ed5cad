package scopekit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// RESOURCE GROUPS
// ============================================================================

// CreateResourceGroup creates a named collection of resources of one
// type within a tenant. The (tenant, name, resource type) triple must
// be unique. Metadata is optional display data; it never contributes to
// permission evaluation.
//
// Example:
//
//	group, err := service.CreateResourceGroup(ctx, tenantID,
//		"Litigation Files", scopekit.ResourceTypeDocument, "active litigation", nil)
func (s *Service) CreateResourceGroup(ctx context.Context, tenantID, name string, resourceType ResourceType, description string, metadata map[string]any) (*ResourceGroup, error) {
	if tenantID == "" || name == "" {
		return nil, NewError(ErrConfiguration, "resource group requires a tenant ID and a name")
	}
	if !resourceType.Valid() {
		return nil, NewError(ErrConfiguration, "unknown resource type").WithTenant(tenantID)
	}

	group := &ResourceGroup{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Name:         name,
		ResourceType: resourceType,
		Description:  description,
		Metadata:     metadata,
	}

	result, err := s.db.NewInsert().Model(group).Exec(ctx)
	err = dbkit.WithErr(result, err, "CreateResourceGroup").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return nil, NewError(ErrDuplicateName, "group name already exists in tenant").
				WithTenant(tenantID)
		}
		return nil, err
	}

	s.audit(ctx, &AuditEntry{
		Action:   AuditActionGroupCreated,
		TenantID: tenantID,
		GroupID:  group.ID,
	})

	return group, nil
}

// GroupUpdate carries the mutable group attributes. Nil fields are left
// unchanged; the resource type is fixed at creation.
type GroupUpdate struct {
	Name        *string
	Description *string
	Metadata    map[string]any
}

// UpdateGroup renames or redescribes a resource group.
func (s *Service) UpdateGroup(ctx context.Context, groupID string, update GroupUpdate) (*ResourceGroup, error) {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	q := s.db.NewUpdate().Model((*ResourceGroup)(nil)).Where("id = ?", groupID).Set("updated_at = ?", time.Now())
	if update.Name != nil {
		q = q.Set("name = ?", *update.Name)
		group.Name = *update.Name
	}
	if update.Description != nil {
		q = q.Set("description = ?", *update.Description)
		group.Description = *update.Description
	}
	if update.Metadata != nil {
		q = q.Set("metadata = ?", update.Metadata)
		group.Metadata = update.Metadata
	}

	result, err := q.Exec(ctx)
	err = dbkit.WithErr(result, err, "UpdateGroup").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return nil, NewError(ErrDuplicateName, "group name already exists in tenant").
				WithTenant(group.TenantID).
				WithGroup(groupID)
		}
		return nil, err
	}

	s.audit(ctx, &AuditEntry{
		Action:   AuditActionGroupUpdated,
		TenantID: group.TenantID,
		GroupID:  groupID,
	})

	return group, nil
}

// DeleteGroup deletes a resource group and its memberships. Rules that
// reference the deleted group stop matching anything; revoke them
// separately if the grants should disappear from role listings too.
func (s *Service) DeleteGroup(ctx context.Context, groupID string) error {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}

	err = s.Transaction(ctx, func(ctx context.Context, tx *Service) error {
		if _, err := tx.db.NewDelete().Table("resource_group_memberships").Where("group_id = ?", groupID).Exec(ctx); err != nil {
			return dbkit.WithErr1(err, "DeleteGroupMemberships").Err()
		}
		result, err := tx.db.NewDelete().Table("resource_groups").Where("id = ?", groupID).Exec(ctx)
		if err != nil {
			return dbkit.WithErr(result, err, "DeleteGroup").Err()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, &AuditEntry{
		Action:   AuditActionGroupDeleted,
		TenantID: group.TenantID,
		GroupID:  groupID,
	})

	return nil
}

// GetGroup retrieves a resource group by ID.
func (s *Service) GetGroup(ctx context.Context, groupID string) (*ResourceGroup, error) {
	var group ResourceGroup
	err := dbkit.WithErr1(s.db.NewSelect().Model(&group).Where("id = ?", groupID).Limit(1).Scan(ctx), "GetGroup").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "resource group does not exist").WithGroup(groupID)
		}
		return nil, err
	}
	return &group, nil
}

// ListGroups returns a tenant's resource groups, optionally filtered to
// one resource type (pass an empty type for all).
func (s *Service) ListGroups(ctx context.Context, tenantID string, resourceType ResourceType) ([]ResourceGroup, error) {
	var groups []ResourceGroup
	q := s.db.NewSelect().Model(&groups).
		Where("tenant_id = ?", tenantID).
		Order("name ASC")
	if resourceType != "" {
		q = q.Where("resource_type = ?", resourceType)
	}

	err := dbkit.WithErr1(q.Scan(ctx), "ListGroups").Err()
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// ============================================================================
// GROUP MEMBERSHIP
// ============================================================================

// AddResourceToGroup adds a resource to a group. The resource's type
// must match the group's declared type. Adding a resource already in
// the group is a no-op.
func (s *Service) AddResourceToGroup(ctx context.Context, groupID, resourceID string, resourceType ResourceType) error {
	if resourceID == "" {
		return NewError(ErrConfiguration, "membership requires a resource ID").WithGroup(groupID)
	}

	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.ResourceType != resourceType {
		return NewError(ErrConfiguration, "resource type does not match the group's type").
			WithTenant(group.TenantID).
			WithGroup(groupID).
			WithResource(resourceType, resourceID)
	}

	membership := &ResourceGroupMembership{
		ID:           uuid.NewString(),
		GroupID:      groupID,
		ResourceID:   resourceID,
		ResourceType: resourceType,
	}

	result, err := s.db.NewInsert().Model(membership).
		On("CONFLICT (group_id, resource_id) DO NOTHING").
		Exec(ctx)
	err = dbkit.WithErr(result, err, "AddResourceToGroup").Err()
	if err != nil {
		return NewError(ErrDatabase, "failed to add resource to group").
			WithTenant(group.TenantID).
			WithGroup(groupID).
			WithResource(resourceType, resourceID)
	}

	s.audit(ctx, &AuditEntry{
		Action:     AuditActionMemberAdded,
		TenantID:   group.TenantID,
		GroupID:    groupID,
		ResourceID: resourceID,
	})

	return nil
}

// RemoveResourceFromGroup removes a resource from a group. Removing a
// resource that is not a member is a no-op.
func (s *Service) RemoveResourceFromGroup(ctx context.Context, groupID, resourceID string) error {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}

	result, err := s.db.NewDelete().Table("resource_group_memberships").
		Where("group_id = ? AND resource_id = ?", groupID, resourceID).
		Exec(ctx)
	err = dbkit.WithErr(result, err, "RemoveResourceFromGroup").Err()
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil
	}

	s.audit(ctx, &AuditEntry{
		Action:     AuditActionMemberRemoved,
		TenantID:   group.TenantID,
		GroupID:    groupID,
		ResourceID: resourceID,
	})

	return nil
}

// GetGroupsForResource returns the IDs of every group in the tenant
// containing the resource. Implements the resolver the evaluator uses
// for group-scoped rules.
func (s *Service) GetGroupsForResource(ctx context.Context, tenantID string, resourceType ResourceType, resourceID string) ([]string, error) {
	var groupIDs []string
	err := dbkit.WithErr1(s.db.NewSelect().Model((*ResourceGroupMembership)(nil)).
		Column("rgm.group_id").
		Join("JOIN resource_groups AS rg ON rg.id = rgm.group_id").
		Where("rg.tenant_id = ?", tenantID).
		Where("rgm.resource_id = ?", resourceID).
		Where("rgm.resource_type = ?", resourceType).
		Scan(ctx, &groupIDs), "GetGroupsForResource").Err()
	if err != nil {
		return nil, NewError(ErrDatabase, "failed to resolve group memberships").
			WithTenant(tenantID).
			WithResource(resourceType, resourceID)
	}
	return groupIDs, nil
}

// GroupsForResource satisfies GroupResolver.
func (s *Service) GroupsForResource(ctx context.Context, tenantID string, resourceType ResourceType, resourceID string) ([]string, error) {
	return s.GetGroupsForResource(ctx, tenantID, resourceType, resourceID)
}

// GetResourcesForGroup returns the IDs of the resources in a group,
// paged and ordered for stable iteration.
func (s *Service) GetResourcesForGroup(ctx context.Context, groupID string, page Page) ([]string, error) {
	page = page.normalize()

	var resourceIDs []string
	err := dbkit.WithErr1(s.db.NewSelect().Model((*ResourceGroupMembership)(nil)).
		Column("rgm.resource_id").
		Where("rgm.group_id = ?", groupID).
		Order("rgm.resource_id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Scan(ctx, &resourceIDs), "GetResourcesForGroup").Err()
	if err != nil {
		return nil, NewError(ErrDatabase, "failed to list group resources").WithGroup(groupID)
	}
	return resourceIDs, nil
}

// AllResourcesForGroup satisfies GroupMemberLister for listing-filter
// construction. Unlike GetResourcesForGroup it is unpaged: the
// predicate needs the full membership, and enforces the tenant.
func (s *Service) AllResourcesForGroup(ctx context.Context, tenantID, groupID string) ([]string, error) {
	var resourceIDs []string
	err := dbkit.WithErr1(s.db.NewSelect().Model((*ResourceGroupMembership)(nil)).
		Column("rgm.resource_id").
		Join("JOIN resource_groups AS rg ON rg.id = rgm.group_id").
		Where("rg.tenant_id = ?", tenantID).
		Where("rgm.group_id = ?", groupID).
		Scan(ctx, &resourceIDs), "AllResourcesForGroup").Err()
	if err != nil {
		return nil, NewError(ErrDatabase, "failed to expand group membership").
			WithTenant(tenantID).
			WithGroup(groupID)
	}
	return resourceIDs, nil
}

// CountGroupMembers returns the number of resources in a group.
func (s *Service) CountGroupMembers(ctx context.Context, groupID string) (int, error) {
	return dbkit.Count[ResourceGroupMembership](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("group_id = ?", groupID)
	})
}
