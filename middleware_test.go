package scopekit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubChecker is an AccessChecker with canned decisions per resource ID.
type stubChecker struct {
	allow map[string]bool
	err   error
	calls []string
}

func (s *stubChecker) CheckAccess(ctx context.Context, principalID, tenantID string, resourceType ResourceType, action Action, resourceID string) (bool, error) {
	s.calls = append(s.calls, fmt.Sprintf("%s/%s/%s/%s/%s", principalID, tenantID, resourceType, action, resourceID))
	if s.err != nil {
		return false, s.err
	}
	return s.allow[resourceID], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithIdentity(method, target string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	ctx := WithPrincipalID(r.Context(), "u1")
	ctx = WithTenantID(ctx, "t1")
	return r.WithContext(ctx)
}

// TestMiddlewareRequireAccessAllowed tests the happy path
func TestMiddlewareRequireAccessAllowed(t *testing.T) {
	checker := &stubChecker{allow: map[string]bool{"rec-1": true}}
	mw := NewMiddleware(checker)

	handler := mw.RequireAccess(ResourceTypeRecord, ActionEdit, ResourceFromQuery("record_id"))(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithIdentity(http.MethodPost, "/records?record_id=rec-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, checker.calls, 1)
	assert.Equal(t, "u1/t1/record/edit/rec-1", checker.calls[0])
}

// TestMiddlewareRequireAccessDenied tests 403 on DENY
func TestMiddlewareRequireAccessDenied(t *testing.T) {
	checker := &stubChecker{allow: map[string]bool{}}
	mw := NewMiddleware(checker)

	handler := mw.RequireAccess(ResourceTypeRecord, ActionDelete, ResourceFromQuery("record_id"))(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithIdentity(http.MethodDelete, "/records?record_id=rec-1"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// TestMiddlewareMissingIdentity tests that absent principal or tenant
// never reaches the checker
func TestMiddlewareMissingIdentity(t *testing.T) {
	checker := &stubChecker{allow: map[string]bool{"rec-1": true}}
	mw := NewMiddleware(checker)

	handler := mw.RequireAccess(ResourceTypeRecord, ActionView, ResourceFromQuery("record_id"))(okHandler())

	// No identity at all.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records?record_id=rec-1", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, checker.calls)

	// Principal without tenant.
	r := httptest.NewRequest(http.MethodGet, "/records?record_id=rec-1", nil)
	r = r.WithContext(WithPrincipalID(r.Context(), "u1"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, checker.calls)
}

// TestMiddlewareCheckerError tests 500 on infrastructure failure, not
// a silent 403 or 200
func TestMiddlewareCheckerError(t *testing.T) {
	checker := &stubChecker{err: NewError(ErrDatabase, "connection lost")}
	mw := NewMiddleware(checker)

	handler := mw.RequireAccess(ResourceTypeRecord, ActionView, ResourceFromQuery("record_id"))(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithIdentity(http.MethodGet, "/records?record_id=rec-1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// TestMiddlewareExtractorFailure tests 400 when the resource cannot be
// located in the request
func TestMiddlewareExtractorFailure(t *testing.T) {
	checker := &stubChecker{}
	mw := NewMiddleware(checker)

	handler := mw.RequireAccess(ResourceTypeRecord, ActionView, ResourceFromQuery("record_id"))(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithIdentity(http.MethodGet, "/records"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, checker.calls)
}

// TestMiddlewareNoResource tests creation-time checks through NoResource
func TestMiddlewareNoResource(t *testing.T) {
	checker := &stubChecker{allow: map[string]bool{"": true}}
	mw := NewMiddleware(checker)

	handler := mw.RequireAccess(ResourceTypeRecord, ActionCreate, NoResource())(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithIdentity(http.MethodPost, "/records"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, checker.calls, 1)
	assert.Equal(t, "u1/t1/record/create/", checker.calls[0])
}

// TestMiddlewareCustomExtractors tests header-based identity and
// resource extraction
func TestMiddlewareCustomExtractors(t *testing.T) {
	checker := &stubChecker{allow: map[string]bool{"doc-7": true}}
	mw := NewMiddleware(checker,
		WithPrincipalExtractor(func(r *http.Request) string { return r.Header.Get("X-User-ID") }),
		WithTenantExtractor(func(r *http.Request) string { return r.Header.Get("X-Tenant-ID") }),
	)

	handler := mw.RequireAccess(ResourceTypeDocument, ActionView, ResourceFromHeader("X-Document-ID"))(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/documents", nil)
	r.Header.Set("X-User-ID", "u9")
	r.Header.Set("X-Tenant-ID", "t9")
	r.Header.Set("X-Document-ID", "doc-7")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, checker.calls, 1)
	assert.Equal(t, "u9/t9/document/view/doc-7", checker.calls[0])
}

// TestMiddlewareCustomErrorHandler tests the error handler override
func TestMiddlewareCustomErrorHandler(t *testing.T) {
	checker := &stubChecker{}
	mw := NewMiddleware(checker,
		WithMiddlewareErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "teapot", http.StatusTeapot)
		}),
	)

	handler := mw.RequireAccess(ResourceTypeRecord, ActionView, ResourceFromQuery("record_id"))(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithIdentity(http.MethodGet, "/records?record_id=rec-1"))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

// TestMiddlewareInjectAuditContext tests request metadata propagation
func TestMiddlewareInjectAuditContext(t *testing.T) {
	mw := NewMiddleware(&stubChecker{})

	var captured AuditContext
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetAuditContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := mw.InjectAuditContext()(inner)

	r := httptest.NewRequest(http.MethodPost, "/roles", nil)
	r = r.WithContext(WithPrincipalID(r.Context(), "admin-1"))
	r.Header.Set("X-Forwarded-For", "203.0.113.5")
	r.Header.Set("User-Agent", "test-client/1.0")
	r.Header.Set("X-Request-ID", "req-77")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, "admin-1", captured.ActorID)
	assert.Equal(t, "203.0.113.5", captured.IPAddress)
	assert.Equal(t, "test-client/1.0", captured.UserAgent)
	assert.Equal(t, "req-77", captured.RequestID)
}

// TestResourceFromParam tests path parameter extraction
func TestResourceFromParam(t *testing.T) {
	extract := ResourceFromParam("recordID")

	mux := http.NewServeMux()
	var got string
	mux.HandleFunc("GET /records/{recordID}", func(w http.ResponseWriter, r *http.Request) {
		id, err := extract(r)
		require.NoError(t, err)
		got = id
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/rec-42", nil))
	assert.Equal(t, "rec-42", got)

	// Missing parameter is a configuration error.
	_, err := extract(httptest.NewRequest(http.MethodGet, "/records", nil))
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

// TestStaticResource tests the fixed extractor
func TestStaticResource(t *testing.T) {
	extract := StaticResource("singleton")
	id, err := extract(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "singleton", id)
}
