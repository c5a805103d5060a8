package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/entitlement"
)

var redirects = map[entitlement.Decision]string{
	entitlement.RedirectLogin:   "/login",
	entitlement.RedirectPayment: "/payment",
}

type AccessResponse struct {
	Decision entitlement.Decision `json:"decision"`
	Redirect string               `json:"redirect,omitempty"`
}

type accessApi struct {
	store *entitlement.Store
}

func registerAccessAPI(g *echo.Group, store *entitlement.Store) {
	api := accessApi{store: store}

	ag := g.Group("/access")
	ag.GET("/:kind", api.gate)
	ag.GET("/:kind/:id", api.gate)
}

func (api *accessApi) gate(ctx echo.Context) error {
	kind, ok := entitlement.ParseResourceKind(ctx.Param("kind"))
	if !ok {
		return errHttpNotFound
	}
	res := entitlement.Resource{Kind: kind, ID: core.CleanString(ctx.Param("id"))}
	if kind.NeedsID() && res.ID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "id", Error: "this field is required"})
	}

	decision, err := api.store.Gate(ctx.Request().Context(), res)
	if err != nil {
		return errors.Wrap(err, "evaluating access")
	}
	return ctx.JSON(http.StatusOK, AccessResponse{Decision: decision, Redirect: redirects[decision]})
}
