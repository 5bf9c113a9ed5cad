package scopekit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewGeneralRule tests the general rule constructor
func TestNewGeneralRule(t *testing.T) {
	tests := []struct {
		name    string
		rt      ResourceType
		action  Action
		scope   Scope
		wantErr bool
	}{
		{name: "Edit team-wide", rt: ResourceTypeTable, action: ActionEdit, scope: ScopeTeam},
		{name: "View everything", rt: ResourceTypeRecord, action: ActionView, scope: ScopeAll},
		{name: "Delete own", rt: ResourceTypeDocument, action: ActionDelete, scope: ScopeOwn},
		{name: "Group scope rejected", rt: ResourceTypeTable, action: ActionEdit, scope: ScopeResourceGroup, wantErr: true},
		{name: "Resource scope rejected", rt: ResourceTypeTable, action: ActionEdit, scope: ScopeResourceID, wantErr: true},
		{name: "Unknown resource type", rt: ResourceType("invoice"), action: ActionEdit, scope: ScopeTeam, wantErr: true},
		{name: "Unknown action", rt: ResourceTypeTable, action: Action("approve"), scope: ScopeTeam, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := NewGeneralRule(tt.rt, tt.action, tt.scope)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsConfiguration(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, RuleGeneral, rule.Kind())
			assert.Equal(t, tt.rt, rule.ResourceType())
			assert.Equal(t, tt.action, rule.Action())
			assert.Equal(t, tt.scope, rule.Scope())
			assert.Empty(t, rule.GroupID())
			assert.Empty(t, rule.ResourceID())
		})
	}
}

// TestNewResourceGroupRule tests the group rule constructor
func TestNewResourceGroupRule(t *testing.T) {
	rule, err := NewResourceGroupRule(ResourceTypeDocument, ActionView, "g-123")
	require.NoError(t, err)
	assert.Equal(t, RuleResourceGroup, rule.Kind())
	assert.Equal(t, ScopeResourceGroup, rule.Scope())
	assert.Equal(t, "g-123", rule.GroupID())

	_, err = NewResourceGroupRule(ResourceTypeDocument, ActionView, "")
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))

	_, err = NewResourceGroupRule(ResourceType("bogus"), ActionView, "g-123")
	require.Error(t, err)
}

// TestNewResourceIDRule tests the resource rule constructor
func TestNewResourceIDRule(t *testing.T) {
	rule, err := NewResourceIDRule(ResourceTypeRecord, ActionView, "rec-9")
	require.NoError(t, err)
	assert.Equal(t, RuleResourceID, rule.Kind())
	assert.Equal(t, ScopeResourceID, rule.Scope())
	assert.Equal(t, "rec-9", rule.ResourceID())

	_, err = NewResourceIDRule(ResourceTypeRecord, ActionView, "")
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

// TestRuleKey tests the canonical key format
func TestRuleKey(t *testing.T) {
	general, _ := NewGeneralRule(ResourceTypeTable, ActionEdit, ScopeTeam)
	assert.Equal(t, "table/edit/team", general.Key())

	group, _ := NewResourceGroupRule(ResourceTypeTable, ActionManage, "g-123")
	assert.Equal(t, "table/manage/group:g-123", group.Key())

	byID, _ := NewResourceIDRule(ResourceTypeRecord, ActionView, "rec-9")
	assert.Equal(t, "record/view/resource:rec-9", byID.Key())
}

// TestRuleMatches tests type/action matching with MANAGE subsumption
func TestRuleMatches(t *testing.T) {
	edit, _ := NewGeneralRule(ResourceTypeTable, ActionEdit, ScopeTeam)
	assert.True(t, edit.Matches(ResourceTypeTable, ActionEdit))
	assert.False(t, edit.Matches(ResourceTypeTable, ActionView))
	assert.False(t, edit.Matches(ResourceTypeRecord, ActionEdit))

	manage, _ := NewGeneralRule(ResourceTypeTable, ActionManage, ScopeAll)
	for _, action := range Actions() {
		assert.True(t, manage.Matches(ResourceTypeTable, action))
		assert.False(t, manage.Matches(ResourceTypeRecord, action),
			"manage must not cross resource types")
	}
}

// TestRuleSetDeduplication tests structural dedupe on Add
func TestRuleSetDeduplication(t *testing.T) {
	a, _ := NewGeneralRule(ResourceTypeTable, ActionEdit, ScopeTeam)
	b, _ := NewGeneralRule(ResourceTypeTable, ActionEdit, ScopeTeam)
	c, _ := NewGeneralRule(ResourceTypeTable, ActionEdit, ScopeOwn)

	rs := NewRuleSet(a, b, c)
	assert.Equal(t, 2, rs.Len())
	assert.True(t, rs.Contains(a))
	assert.True(t, rs.Contains(c))

	rs.Add(b)
	assert.Equal(t, 2, rs.Len())
}

// TestRuleSetLookups tests the scoped query helpers
func TestRuleSetLookups(t *testing.T) {
	editTeam, _ := NewGeneralRule(ResourceTypeTable, ActionEdit, ScopeTeam)
	manageAll, _ := NewGeneralRule(ResourceTypeRecord, ActionManage, ScopeAll)
	groupA, _ := NewResourceGroupRule(ResourceTypeDocument, ActionView, "g-a")
	groupB, _ := NewResourceGroupRule(ResourceTypeDocument, ActionView, "g-b")
	byID, _ := NewResourceIDRule(ResourceTypeDocument, ActionManage, "doc-1")

	rs := NewRuleSet(editTeam, manageAll, groupA, groupB, byID)

	assert.True(t, rs.HasGeneral(ResourceTypeTable, ActionEdit, ScopeTeam))
	assert.False(t, rs.HasGeneral(ResourceTypeTable, ActionEdit, ScopeAll))
	// MANAGE satisfies every requested action at its own scope.
	assert.True(t, rs.HasGeneral(ResourceTypeRecord, ActionDelete, ScopeAll))

	assert.Equal(t, []string{"g-a", "g-b"}, rs.GroupIDs(ResourceTypeDocument, ActionView))
	assert.Nil(t, rs.GroupIDs(ResourceTypeDocument, ActionDelete))

	// MANAGE by ID satisfies view on that resource.
	assert.Equal(t, []string{"doc-1"}, rs.ResourceIDs(ResourceTypeDocument, ActionView))
	assert.Nil(t, rs.ResourceIDs(ResourceTypeRecord, ActionView))
}

// TestRuleSetRulesOrder tests the deterministic iteration order
func TestRuleSetRulesOrder(t *testing.T) {
	a, _ := NewGeneralRule(ResourceTypeTable, ActionView, ScopeAll)
	b, _ := NewGeneralRule(ResourceTypeRecord, ActionEdit, ScopeOwn)
	c, _ := NewResourceIDRule(ResourceTypeDocument, ActionView, "doc-1")

	rs := NewRuleSet(c, a, b)
	rules := rs.Rules()
	require.Len(t, rules, 3)

	for i := 0; i < len(rules)-1; i++ {
		assert.Less(t, rules[i].Key(), rules[i+1].Key())
	}
}

// TestParseLegacyGrant tests migration of dotted string grants
func TestParseLegacyGrant(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string // canonical key
		wantErr  bool
	}{
		{name: "All scope", raw: "view.all", expected: "table/view/all"},
		{name: "Team scope", raw: "edit.team", expected: "table/edit/team"},
		{name: "Own scope", raw: "delete.own", expected: "table/delete/own"},
		{name: "Group scope", raw: "view.group:g-7", expected: "table/view/group:g-7"},
		{name: "ID scope", raw: "manage.id:tbl-3", expected: "table/manage/resource:tbl-3"},
		{name: "Missing dot", raw: "view", wantErr: true},
		{name: "Empty action", raw: ".all", wantErr: true},
		{name: "Empty scope", raw: "view.", wantErr: true},
		{name: "Unknown action", raw: "approve.all", wantErr: true},
		{name: "Unknown scope", raw: "view.everyone", wantErr: true},
		{name: "Empty group ID", raw: "view.group:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := ParseLegacyGrant(ResourceTypeTable, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsConfiguration(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rule.Key())
		})
	}
}
