package scopekit

import (
	"net/http"
)

// Middleware provides HTTP middleware for permission checking. It only
// needs the AccessChecker surface, so handlers can be tested against a
// stub without a database.
type Middleware struct {
	checker      AccessChecker
	getPrincipal func(*http.Request) string
	getTenant    func(*http.Request) string
	errorHandler func(http.ResponseWriter, *http.Request, error)
}

// MiddlewareOption configures the Middleware.
type MiddlewareOption func(*Middleware)

// NewMiddleware creates a new Middleware instance.
//
// Example:
//
//	mw := scopekit.NewMiddleware(service,
//	    scopekit.WithPrincipalExtractor(func(r *http.Request) string {
//	        return r.Header.Get("X-User-ID")
//	    }),
//	)
func NewMiddleware(checker AccessChecker, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		checker:      checker,
		getPrincipal: defaultGetPrincipal,
		getTenant:    defaultGetTenant,
		errorHandler: defaultErrorHandler,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithPrincipalExtractor sets a custom function to extract the principal ID from a request.
func WithPrincipalExtractor(fn func(*http.Request) string) MiddlewareOption {
	return func(m *Middleware) {
		m.getPrincipal = fn
	}
}

// WithTenantExtractor sets a custom function to extract the tenant ID from a request.
func WithTenantExtractor(fn func(*http.Request) string) MiddlewareOption {
	return func(m *Middleware) {
		m.getTenant = fn
	}
}

// WithMiddlewareErrorHandler sets a custom error handler for middleware.
func WithMiddlewareErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) MiddlewareOption {
	return func(m *Middleware) {
		m.errorHandler = fn
	}
}

func defaultGetPrincipal(r *http.Request) string {
	return GetPrincipalID(r.Context())
}

func defaultGetTenant(r *http.Request) string {
	return GetTenantID(r.Context())
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	if IsAccessDenied(err) || IsNotFound(err) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if IsConfiguration(err) {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// ResourceExtractor extracts the target resource ID from an HTTP
// request. Returning an empty ID with a nil error is valid for
// creation-time checks.
type ResourceExtractor func(*http.Request) (string, error)

// ResourceFromParam creates a ResourceExtractor that reads the resource
// ID from a URL path parameter. Routers that predate request.PathValue
// can wrap their own parameter lookup in a custom ResourceExtractor.
//
// Example:
//
//	// For route /records/{recordID}
//	mw.RequireAccess(scopekit.ResourceTypeRecord, scopekit.ActionEdit,
//	    scopekit.ResourceFromParam("recordID"))
func ResourceFromParam(paramName string) ResourceExtractor {
	return func(r *http.Request) (string, error) {
		resourceID := r.PathValue(paramName)
		if resourceID == "" {
			return "", NewError(ErrConfiguration, "resource ID not found in request")
		}
		return resourceID, nil
	}
}

// ResourceFromQuery creates a ResourceExtractor that reads the resource
// ID from a query parameter.
//
// Example:
//
//	// For route /api/export?table_id=tbl_123
//	mw.RequireAccess(scopekit.ResourceTypeTable, scopekit.ActionExport,
//	    scopekit.ResourceFromQuery("table_id"))
func ResourceFromQuery(queryParam string) ResourceExtractor {
	return func(r *http.Request) (string, error) {
		resourceID := r.URL.Query().Get(queryParam)
		if resourceID == "" {
			return "", NewError(ErrConfiguration, "resource ID not found in query")
		}
		return resourceID, nil
	}
}

// ResourceFromHeader creates a ResourceExtractor that reads the
// resource ID from a header.
func ResourceFromHeader(headerName string) ResourceExtractor {
	return func(r *http.Request) (string, error) {
		resourceID := r.Header.Get(headerName)
		if resourceID == "" {
			return "", NewError(ErrConfiguration, "resource ID not found in header")
		}
		return resourceID, nil
	}
}

// StaticResource creates a ResourceExtractor that always returns the
// same resource ID. Useful for singleton resources.
func StaticResource(resourceID string) ResourceExtractor {
	return func(r *http.Request) (string, error) {
		return resourceID, nil
	}
}

// NoResource creates a ResourceExtractor for type-level checks such as
// creation, where no concrete resource exists yet.
func NoResource() ResourceExtractor {
	return func(r *http.Request) (string, error) {
		return "", nil
	}
}

// RequireAccess creates middleware that requires permission to perform
// an action on the resource the extractor names. The check runs against
// the principal and tenant extracted from the request; a failed lookup
// or a DENY both end in 403.
//
// Example:
//
//	router.With(mw.RequireAccess(scopekit.ResourceTypeRecord, scopekit.ActionDelete,
//	    scopekit.ResourceFromParam("recordID"))).
//	    Delete("/records/{recordID}", deleteRecordHandler)
func (m *Middleware) RequireAccess(resourceType ResourceType, action Action, extractor ResourceExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			principalID := m.getPrincipal(r)
			if principalID == "" {
				m.errorHandler(w, r, ErrNoPrincipalID)
				return
			}
			tenantID := m.getTenant(r)
			if tenantID == "" {
				m.errorHandler(w, r, ErrNoTenantID)
				return
			}

			resourceID, err := extractor(r)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			allowed, err := m.checker.CheckAccess(ctx, principalID, tenantID, resourceType, action, resourceID)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}
			if !allowed {
				m.errorHandler(w, r, NewError(ErrAccessDenied, "missing required permission").
					WithTenant(tenantID).
					WithPrincipal(principalID).
					WithResource(resourceType, resourceID))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// InjectAuditContext creates middleware that extracts audit information
// from the request and adds it to the context for use in mutating
// operations.
//
// Example:
//
//	router.Use(mw.InjectAuditContext())
func (m *Middleware) InjectAuditContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := r.Header.Get("X-Forwarded-For")
			if ip == "" {
				ip = r.Header.Get("X-Real-IP")
			}
			if ip == "" {
				ip = r.RemoteAddr
			}
			ctx = WithIPAddress(ctx, ip)

			ctx = WithUserAgent(ctx, r.UserAgent())

			if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
				ctx = WithRequestID(ctx, requestID)
			}

			if principalID := m.getPrincipal(r); principalID != "" {
				ctx = WithActorID(ctx, principalID)
				ctx = WithPrincipalID(ctx, principalID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
