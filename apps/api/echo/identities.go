package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/smartlearn/core/entitlement"
	"github.com/trezcool/smartlearn/core/identity"
)

type identityApi struct {
	store *entitlement.Store
}

func registerIdentityAPI(g *echo.Group, jwt, session echo.MiddlewareFunc, store *entitlement.Store) {
	api := identityApi{store: store}

	g.GET("/identities", api.query, jwt, session, adminMiddleware())
}

func (api *identityApi) query(ctx echo.Context) error {
	filter := new(identity.Filter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []identity.Identity{})
	}

	users, err := api.store.Identities(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying identities")
	}
	if users == nil {
		users = []identity.Identity{}
	}
	return ctx.JSON(http.StatusOK, users)
}
