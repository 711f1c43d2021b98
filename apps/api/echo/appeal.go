package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/appeal"
	"github.com/zuberi/fizikia/core/submission"
)

type appealApi struct {
	svc      appeal.ServiceInterface
	validate *validator.Validate
}

func registerAppealAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := appealApi{
		svc:      deps.AppealSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/appeals", jwt)
	ag.POST("", api.open)
	ag.GET("", api.query)

	dg := ag.Group("/:id")
	dg.GET("", api.retrieve)
	dg.POST("/messages", api.addMessage)
	dg.POST("/resolve", api.resolve, staffMiddleware())
	dg.POST("/reopen", api.reopen, staffMiddleware())
}

// Handlers

func (api *appealApi) open(ctx echo.Context) error {
	var data appeal.NewAppeal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAppeal")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	ap, err := api.svc.Open(claims.Subject, data)
	if err != nil {
		switch errors.Cause(err) {
		case submission.ErrAnswerNotFound:
			return errHttpNotFound
		case appeal.ErrNotAnswerOwner:
			return errHttpForbidden
		}
		return errors.Wrap(err, "opening appeal")
	}
	return ctx.JSON(http.StatusCreated, ap)
}

func (api *appealApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	page := bindPagination(ctx)
	filter := new(appeal.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, core.NewPaginatedData([]appeal.GradeAppeal{}, 0, page))
	}
	filter.Clean()
	if !claims.IsStaff {
		// students only see their own appeals
		filter.AppealerID = claims.Subject
	}

	ordering := new(Ordering)
	ordering.Bind(ctx, "status", "created_at", "updated_at", "resolved_at")

	appeals, total, err := api.svc.Query(filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying appeals")
	}
	if appeals == nil {
		appeals = []appeal.GradeAppeal{}
	}
	return ctx.JSON(http.StatusOK, core.NewPaginatedData(appeals, total, page))
}

func (api *appealApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	ap, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == appeal.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding appeal by ID")
	}
	if !ap.IsParticipant(claims.Subject) && !claims.IsStaff {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, ap)
}

func (api *appealApi) addMessage(ctx echo.Context) error {
	var data appeal.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	ap, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == appeal.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding appeal by ID")
	}
	if !ap.IsParticipant(claims.Subject) && !claims.IsStaff {
		return errHttpNotFound
	}

	msg, err := api.svc.AddMessage(ap.ID, claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "adding appeal message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *appealApi) resolve(ctx echo.Context) error {
	var data appeal.ResolveInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResolveInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	ap, err := api.svc.Resolve(ctx.Param("id"), claims.Subject, data)
	if err != nil {
		if errors.Cause(err) == appeal.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "resolving appeal")
	}
	return ctx.JSON(http.StatusOK, ap)
}

func (api *appealApi) reopen(ctx echo.Context) error {
	ap, err := api.svc.Reopen(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == appeal.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "reopening appeal")
	}
	return ctx.JSON(http.StatusOK, ap)
}
