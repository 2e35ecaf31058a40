package admin

import (
	"context"
	"net/http"

	"github.com/banana-studio/banana-api/internal/middleware"
	"github.com/banana-studio/banana-api/internal/pkg/errorhandler"
	"github.com/banana-studio/banana-api/internal/pkg/response"
)

type grantKey struct{}

// WithGrant stores a resolved grant in ctx.
func WithGrant(ctx context.Context, grant Grant) context.Context {
	return context.WithValue(ctx, grantKey{}, grant)
}

// GrantFromContext returns the grant stored by RequirePrivilege.
func GrantFromContext(ctx context.Context) (Grant, bool) {
	grant, ok := ctx.Value(grantKey{}).(Grant)
	return grant, ok
}

// RequirePrivilege admits callers whose privilege is at least minimum. It must run
// after middleware.Auth. A failed lookup is a server error, not a denial.
func RequirePrivilege(authz Authorizer, minimum Privilege) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			grant, err := authz.Resolve(ctx, middleware.GetUserID(ctx))
			if err != nil {
				errorhandler.Internal(ctx, w, err, "resolve admin privilege")
				return
			}

			if grant.Privilege < minimum {
				if minimum >= SuperAdmin {
					response.Forbidden(w, "Super administrator privilege required")
				} else {
					response.Forbidden(w, "Administrator privilege required")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithGrant(ctx, grant)))
		})
	}
}
