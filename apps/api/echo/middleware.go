package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/smartlearn/core/entitlement"
)

// sessionMiddleware only lets through tokens issued to the identity currently logged in.
// Must run after the JWT middleware.
func sessionMiddleware(store *entitlement.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			usr, ok, err := store.Current(ctx.Request().Context())
			if err != nil {
				return errors.Wrap(err, "loading session")
			}
			if !ok || usr.ID != claims.Subject {
				return errNoSession
			}
			ctx.Set(contextIdentityKey, usr)
			return next(ctx)
		}
	}
}

// adminMiddleware must run after sessionMiddleware.
func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextIdentity(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context identity")
			}
			if usr.IsAdmin() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
