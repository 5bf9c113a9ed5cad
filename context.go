package scopekit

import (
	"context"
)

// Context keys for ScopeKit values.
type contextKey string

const (
	contextKeyPrincipalID contextKey = "scopekit:principal_id"
	contextKeyTenantID    contextKey = "scopekit:tenant_id"
	contextKeyActorID     contextKey = "scopekit:actor_id"
	contextKeyIPAddress   contextKey = "scopekit:ip_address"
	contextKeyUserAgent   contextKey = "scopekit:user_agent"
	contextKeyRequestID   contextKey = "scopekit:request_id"
)

// WithPrincipalID adds a principal ID to the context.
// This is the authenticated actor being checked for access. The value is
// expected to come from an already-verified token; ScopeKit never
// inspects credentials itself.
func WithPrincipalID(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, contextKeyPrincipalID, principalID)
}

// GetPrincipalID retrieves the principal ID from context.
// Returns empty string if not set.
func GetPrincipalID(ctx context.Context) string {
	if v := ctx.Value(contextKeyPrincipalID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithTenantID adds a tenant ID to the context.
// Every check and management operation is evaluated inside exactly one
// tenant; there is no ambient cross-tenant state.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKeyTenantID, tenantID)
}

// GetTenantID retrieves the tenant ID from context.
// Returns empty string if not set.
func GetTenantID(ctx context.Context) string {
	if v := ctx.Value(contextKeyTenantID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithActorID adds an actor ID to the context.
// This is the user performing a management operation (for audit
// purposes). Often the same as the principal ID, but can differ for
// administrative actions.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, contextKeyActorID, actorID)
}

// GetActorID retrieves the actor ID from context.
// Falls back to the principal ID if the actor ID is not explicitly set.
func GetActorID(ctx context.Context) string {
	if v := ctx.Value(contextKeyActorID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return GetPrincipalID(ctx)
}

// WithIPAddress adds the client IP address to the context (for audit).
func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKeyIPAddress, ip)
}

// GetIPAddress retrieves the IP address from context.
func GetIPAddress(ctx context.Context) string {
	if v := ctx.Value(contextKeyIPAddress); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithUserAgent adds the user agent to the context (for audit).
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, contextKeyUserAgent, ua)
}

// GetUserAgent retrieves the user agent from context.
func GetUserAgent(ctx context.Context) string {
	if v := ctx.Value(contextKeyUserAgent); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context (for audit and
// correlation).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(contextKeyRequestID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AuditContext holds all audit-related information from context.
type AuditContext struct {
	ActorID   string
	IPAddress string
	UserAgent string
	RequestID string
}

// GetAuditContext extracts all audit information from context.
func GetAuditContext(ctx context.Context) AuditContext {
	return AuditContext{
		ActorID:   GetActorID(ctx),
		IPAddress: GetIPAddress(ctx),
		UserAgent: GetUserAgent(ctx),
		RequestID: GetRequestID(ctx),
	}
}

// WithAuditContext adds all audit information to context at once.
func WithAuditContext(ctx context.Context, ac AuditContext) context.Context {
	if ac.ActorID != "" {
		ctx = WithActorID(ctx, ac.ActorID)
	}
	if ac.IPAddress != "" {
		ctx = WithIPAddress(ctx, ac.IPAddress)
	}
	if ac.UserAgent != "" {
		ctx = WithUserAgent(ctx, ac.UserAgent)
	}
	if ac.RequestID != "" {
		ctx = WithRequestID(ctx, ac.RequestID)
	}
	return ctx
}
