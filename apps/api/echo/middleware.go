package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizroom/core"
)

// revocationMiddleware rejects tokens revoked on logout or refresh.
func (a *Authenticator) revocationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		if claims.Id != "" {
			revoked, err := a.blacklist.IsRevoked(ctx.Request().Context(), claims.Id)
			if err != nil {
				return errors.Wrap(err, "checking token revocation")
			}
			if revoked {
				return errTokenRevoked
			}
		}
		return next(ctx)
	}
}

// roleMiddleware only lets users holding one of `roles` through. Admins always pass.
func (a *Authenticator) roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := a.getContextUser(ctx)
			if err != nil {
				return err
			}
			if !usr.HasRole() {
				return errRoleRequired
			}
			if usr.IsAdmin() || core.ContainsString(roles, usr.Role) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// withMiddleware returns a new chain made of `chain` followed by `extra`.
func withMiddleware(chain []echo.MiddlewareFunc, extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	res := make([]echo.MiddlewareFunc, 0, len(chain)+len(extra))
	return append(append(res, chain...), extra...)
}
