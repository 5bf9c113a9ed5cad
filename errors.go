package scopekit

import (
	"errors"
	"fmt"
)

// Sentinel errors for ScopeKit operations.
var (
	// ErrConfiguration is returned when an unknown ResourceType, Action
	// or Scope reaches the engine. This is a caller defect and is never
	// converted into an ALLOW or DENY decision.
	ErrConfiguration = errors.New("scopekit: configuration error")

	// ErrDuplicateName is returned when creating a role or resource
	// group whose name already exists within its uniqueness boundary.
	ErrDuplicateName = errors.New("scopekit: duplicate name")

	// ErrNotFound is returned when a management operation references a
	// role, group or assignment that does not exist.
	ErrNotFound = errors.New("scopekit: not found")

	// ErrAlreadyAssigned is returned when assigning a role the
	// principal already holds.
	ErrAlreadyAssigned = errors.New("scopekit: role already assigned")

	// ErrNotAssigned is returned when removing a role assignment the
	// principal does not hold.
	ErrNotAssigned = errors.New("scopekit: role not assigned")

	// ErrNoPrincipalID is returned when a principal ID is required but
	// not found in context.
	ErrNoPrincipalID = errors.New("scopekit: no principal ID in context")

	// ErrNoTenantID is returned when a tenant ID is required but not
	// found in context.
	ErrNoTenantID = errors.New("scopekit: no tenant ID in context")

	// ErrNoActorID is returned when an actor ID is not found in context
	// for an audited management operation.
	ErrNoActorID = errors.New("scopekit: no actor ID in context")

	// ErrDatabase is returned when a storage operation fails.
	ErrDatabase = errors.New("scopekit: database error")

	// ErrAccessDenied is used by the HTTP middleware to signal a denied
	// check to its error handler. Check results everywhere else are a
	// plain boolean decision, never an error.
	ErrAccessDenied = errors.New("scopekit: access denied")
)

// Error wraps a sentinel error with additional context.
type Error struct {
	Err          error  // Underlying sentinel error
	Message      string // Additional context
	TenantID     string // Tenant involved (if applicable)
	PrincipalID  string // Principal involved (if applicable)
	RoleID       string // Role involved (if applicable)
	GroupID      string // Resource group involved (if applicable)
	ResourceID   string // Resource involved (if applicable)
	ResourceType string // Resource type involved (if applicable)
	ActorID      string // Actor who triggered the error (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithTenant adds tenant information to the error.
func (e *Error) WithTenant(tenantID string) *Error {
	e.TenantID = tenantID
	return e
}

// WithPrincipal adds principal information to the error.
func (e *Error) WithPrincipal(principalID string) *Error {
	e.PrincipalID = principalID
	return e
}

// WithRole adds role information to the error.
func (e *Error) WithRole(roleID string) *Error {
	e.RoleID = roleID
	return e
}

// WithGroup adds resource group information to the error.
func (e *Error) WithGroup(groupID string) *Error {
	e.GroupID = groupID
	return e
}

// WithResource adds resource information to the error.
func (e *Error) WithResource(resourceType ResourceType, resourceID string) *Error {
	e.ResourceType = string(resourceType)
	e.ResourceID = resourceID
	return e
}

// WithActor adds actor information to the error.
func (e *Error) WithActor(actorID string) *Error {
	e.ActorID = actorID
	return e
}

// IsConfiguration checks if an error is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsDuplicateName checks if an error is a name collision.
func IsDuplicateName(err error) bool {
	return errors.Is(err, ErrDuplicateName)
}

// IsNotFound checks if an error references a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyAssigned checks if an error is a duplicate role assignment.
func IsAlreadyAssigned(err error) bool {
	return errors.Is(err, ErrAlreadyAssigned)
}

// IsNotAssigned checks if an error is a missing role assignment.
func IsNotAssigned(err error) bool {
	return errors.Is(err, ErrNotAssigned)
}

// IsAccessDenied checks if an error marks a denied middleware check.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}
