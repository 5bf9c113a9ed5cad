// Package scopekit provides a scope-hierarchical, resource-group-aware
// permission engine for multi-tenant applications.
//
// ScopeKit answers one question, "may this principal perform this action
// on this resource?", against a closed vocabulary of resource types and
// actions and an ordered ladder of scopes. It is identity-agnostic: the
// host application authenticates principals and resolves ownership and
// team membership; ScopeKit stores roles, rules, assignments and
// resource groups, and decides.
//
// # Core Concepts
//
// Scope: how far a grant reaches, strongest first: all > team > own >
// resource group > resource ID. The first three are relational (they
// depend on who owns the resource or which team it belongs to); the
// last two name explicit targets.
//
// Rule: an immutable (resource type, action, reach) triple. General
// rules carry a relational scope ("edit tables, team-wide"); group
// rules name a resource group ("manage documents in group g-1"); ID
// rules name a single resource ("view record rec-9").
//
// Action: a closed verb set (view, create, edit, delete, manage,
// export, import). MANAGE satisfies every other action on the same
// resource type; no other subsumption exists.
//
// Role: a named, tenant-owned bag of rules. Principals hold roles
// through assignments, optionally time-limited. A principal's effective
// rules are the deduplicated union across all of their unexpired
// assignments in the tenant; rules only ever grant, so more roles never
// mean less access.
//
// # Key Features
//
//   - Tenant isolation: roles, groups and decisions never cross tenants
//   - OR-only evaluation: any matching rule allows, nothing denies
//   - Resource groups: grant against named collections instead of IDs
//   - Listing filters: turn a rule set into a query predicate that
//     admits exactly what the checker would allow
//   - Fail-closed: a failed ownership/team/group lookup denies that
//     step and is logged, never converted into access
//   - Cached effective rules with explicit invalidation on every change
//   - Detailed audit logging of every management operation
//   - DBKit integration: uses your existing database connection
//
// # Basic Usage
//
//	// 1. Connect and migrate (at application startup)
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := scopekit.New(db, owners, teams)
//	db.Migrate(ctx, scopekit.NewMigrationService(service).Migrations())
//
//	// 2. Define a role and its rules
//	role, _ := service.CreateRole(ctx, tenantID, "Editor", "#0061ff", 10)
//	rule, _ := scopekit.NewGeneralRule(scopekit.ResourceTypeTable, scopekit.ActionEdit, scopekit.ScopeTeam)
//	service.GrantPermission(ctx, role.ID, rule)
//
//	// 3. Assign it
//	service.AssignRole(ctx, userID, role.ID, nil)
//
//	// 4. Decide
//	allowed, err := service.CheckAccess(ctx, userID, tenantID,
//	    scopekit.ResourceTypeTable, scopekit.ActionEdit, tableID)
//
//	// 5. Filter listings
//	pred, _ := service.BuildListingFilter(ctx, userID, tenantID,
//	    scopekit.ResourceTypeTable, scopekit.ActionView)
//	pred.ApplyTo(query, scopekit.DefaultPredicateColumns())
//
// # Middleware Usage
//
//	mw := scopekit.NewMiddleware(service)
//
//	router.Use(mw.InjectAuditContext())
//	router.With(mw.RequireAccess(scopekit.ResourceTypeRecord, scopekit.ActionDelete,
//	    scopekit.ResourceFromParam("recordID"))).
//	    Delete("/records/{recordID}", deleteRecordHandler)
//
// # Creation-Time Checks
//
// CREATE has no resource yet, so a check may carry an empty resource
// ID. OWN-scoped rules match (the creator would be the owner) and
// TEAM-scoped rules match when the request names a target team the
// principal belongs to. Group and ID rules need an existing resource
// and never match a creation check.
//
// # Audit Log
//
// Every management operation is logged with the actor, the tenant, the
// affected role/group/principal and the canonical rule key, plus
// request metadata (IP, user agent, request ID) when the audit context
// is populated.
package scopekit
