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
	LoginRequest struct {
		Email string `json:"email" validate:"required,email"`
		Role  string `json:"role" validate:"omitempty,oneof=STUDENT TEACHER ADMIN"`
	}

	SessionResponse struct {
		Token    string            `json:"token"`
		Identity identity.Identity `json:"identity"`
	}
)

func (r *LoginRequest) Validate(validate *validator.Validate) error {
	r.Email = identity.NormalizeEmail(r.Email)
	r.Role = strings.ToUpper(core.CleanString(r.Role))
	return validate.Struct(r)
}

type sessionApi struct {
	auth     *authenticator
	store    *entitlement.Store
	validate *validator.Validate
}

func registerSessionAPI(
	g *echo.Group,
	jwt, session echo.MiddlewareFunc,
	auth *authenticator,
	store *entitlement.Store,
	validate *validator.Validate,
) {
	api := sessionApi{auth: auth, store: store, validate: validate}

	sg := g.Group("/session")

	// un-authed endpoints
	sg.POST("/login", api.login)
	sg.POST("/google", api.loginWithGoogle)
	sg.POST("/signup", api.signUp)
	sg.POST("/logout", api.logout)

	// authed endpoints
	ag := sg.Group("", jwt, session)
	ag.GET("", api.retrieve)
	ag.POST("/refresh", api.refresh)
}

// Handlers

func (api *sessionApi) respond(ctx echo.Context, code int, usr identity.Identity) error {
	token, err := api.auth.issue(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(code, SessionResponse{Token: token, Identity: usr})
}

func (api *sessionApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.store.Login(ctx.Request().Context(), data.Email, identity.Role(data.Role))
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	return api.respond(ctx, http.StatusOK, usr)
}

func (api *sessionApi) loginWithGoogle(ctx echo.Context) error {
	usr, err := api.store.LoginWithProvider(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "logging in with provider")
	}
	return api.respond(ctx, http.StatusOK, usr)
}

func (api *sessionApi) signUp(ctx echo.Context) error {
	var data identity.NewIdentity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewIdentity")
	}

	usr, err := api.store.SignUp(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	return api.respond(ctx, http.StatusCreated, usr)
}

func (api *sessionApi) logout(ctx echo.Context) error {
	if err := api.store.Logout(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	usr, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *sessionApi) refresh(ctx echo.Context) error {
	usr, ok, err := api.store.Refresh(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "refreshing session")
	}
	if !ok {
		return errNoSession
	}
	return api.respond(ctx, http.StatusOK, usr)
}
