package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/smartlearn/core/tutor"
)

type (
	AskRequest struct {
		Question string `json:"question" validate:"required"`
		Context  string `json:"context"`
	}

	SummaryRequest struct {
		Title       string `json:"title" validate:"required"`
		Description string `json:"description"`
	}

	AnswerResponse struct {
		Answer string `json:"answer"`
	}

	SummaryResponse struct {
		Summary string `json:"summary"`
	}
)

type tutorApi struct {
	svc      *tutor.Service
	validate *validator.Validate
}

func registerTutorAPI(g *echo.Group, jwt, session echo.MiddlewareFunc, svc *tutor.Service, validate *validator.Validate) {
	api := tutorApi{svc: svc, validate: validate}

	tg := g.Group("/tutor", jwt, session)
	tg.POST("/ask", api.ask)
	tg.POST("/summary", api.summary)
}

func (api *tutorApi) ask(ctx echo.Context) error {
	var data AskRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AskRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, AnswerResponse{Answer: api.svc.Ask(ctx.Request().Context(), data.Question, data.Context)})
}

func (api *tutorApi) summary(ctx echo.Context) error {
	var data SummaryRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SummaryRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SummaryResponse{Summary: api.svc.Summarize(ctx.Request().Context(), data.Title, data.Description)})
}
