package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/entitlement"
	"github.com/trezcool/smartlearn/core/identity"
)

type (
	SubscribeRequest struct {
		Plan   string `json:"plan" validate:"required,plan"`
		Method string `json:"method" validate:"required,paymethod"`
		Phone  string `json:"phone" validate:"required,mwphone"`
	}

	BuyBooksRequest struct {
		BookIDs []string `json:"bookIds" validate:"required,min=1,dive,required"`
	}

	SuccessResponse struct {
		Success bool `json:"success"`
	}
)

func (r *SubscribeRequest) Validate(validate *validator.Validate) error {
	r.Plan = strings.ToUpper(core.CleanString(r.Plan))
	r.Method = strings.ToUpper(core.CleanString(r.Method))
	r.Phone = core.CleanString(r.Phone)
	return validate.Struct(r)
}

func (r *BuyBooksRequest) Validate(validate *validator.Validate) error {
	for i, id := range r.BookIDs {
		r.BookIDs[i] = core.CleanString(id)
	}
	return validate.Struct(r)
}

type entitlementApi struct {
	store    *entitlement.Store
	validate *validator.Validate
}

func registerEntitlementAPI(g *echo.Group, jwt echo.MiddlewareFunc, store *entitlement.Store, validate *validator.Validate) {
	api := entitlementApi{store: store, validate: validate}

	ag := g.Group("", jwt, api.sessionRequired)
	ag.POST("/subscriptions", api.subscribe)
	ag.POST("/live-sessions/:id/unlock", api.unlockLiveSession)
	ag.POST("/books/:id/purchase", api.buyBook)
	ag.POST("/books/purchase", api.buyBooks)
}

// sessionRequired answers 401 {"success": false} when the token does not belong to the Session.
func (api *entitlementApi) sessionRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		usr, ok, err := api.store.Current(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "loading session")
		}
		if !ok || usr.ID != claims.Subject {
			return ctx.JSON(http.StatusUnauthorized, SuccessResponse{Success: false})
		}
		return next(ctx)
	}
}

// result maps a purchase outcome to the response: a false outcome past the session check is a declined payment.
func result(ctx echo.Context, ok bool, err error, doing string) error {
	if err != nil {
		return errors.Wrap(err, doing)
	}
	if !ok {
		return ctx.JSON(http.StatusPaymentRequired, SuccessResponse{Success: false})
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// Handlers

func (api *entitlementApi) subscribe(ctx echo.Context) error {
	var data SubscribeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubscribeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ok, err := api.store.Subscribe(ctx.Request().Context(), identity.Plan(data.Plan), data.Method, data.Phone)
	return result(ctx, ok, err, "subscribing")
}

func (api *entitlementApi) unlockLiveSession(ctx echo.Context) error {
	ok, err := api.store.UnlockLiveSession(ctx.Request().Context(), ctx.Param("id"))
	return result(ctx, ok, err, "unlocking live session")
}

func (api *entitlementApi) buyBook(ctx echo.Context) error {
	ok, err := api.store.BuyBook(ctx.Request().Context(), ctx.Param("id"))
	return result(ctx, ok, err, "buying book")
}

func (api *entitlementApi) buyBooks(ctx echo.Context) error {
	var data BuyBooksRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BuyBooksRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ok, err := api.store.BuyBooks(ctx.Request().Context(), data.BookIDs)
	return result(ctx, ok, err, "buying books")
}
