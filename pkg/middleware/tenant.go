package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/bops-digital/bops/pkg/composables"
)

const (
	TenantHeader  = "X-Local-Authority"
	UserHeader    = "X-User-Id"
	APIUserHeader = "X-Api-User-Id"
	APIUserName   = "X-Api-User-Name"
)

// TenantID resolves the local authority from the request header. Requests
// without a parseable tenant pass through unscoped; handlers reject them.
func TenantID() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get(TenantHeader); raw != "" {
				if tenantID, err := uuid.Parse(raw); err == nil {
					r = r.WithContext(composables.WithTenantID(r.Context(), tenantID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Actor records who is acting: a back-office user or an API client posting
// on behalf of the applicant. Audit rows attribute every mutation to one of
// the two.
func Actor() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := composables.Actor{Name: r.Header.Get(APIUserName)}
			if raw := r.Header.Get(UserHeader); raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					actor.UserID = id
				}
			}
			if raw := r.Header.Get(APIUserHeader); raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					actor.APIUserID = id
				}
			}
			if actor.UserID != uuid.Nil || actor.APIUserID != uuid.Nil {
				r = r.WithContext(composables.WithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}
