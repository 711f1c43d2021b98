package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/schedmail"
)

type scheduledEmailApi struct {
	svc      schedmail.ServiceInterface
	validate *validator.Validate
}

func registerScheduledEmailAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := scheduledEmailApi{
		svc:      deps.SchedmailSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/admin/scheduled-emails", jwt, staffMiddleware())
	ag.POST("", api.schedule)
	ag.GET("", api.query, adminMiddleware())

	dg := ag.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update)
	dg.DELETE("", api.cancel)
}

// Handlers

func (api *scheduledEmailApi) schedule(ctx echo.Context) error {
	var data schedmail.NewScheduledEmail
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScheduledEmail")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	em, err := api.svc.Schedule(data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "scheduling email")
	}
	return ctx.JSON(http.StatusCreated, em)
}

func (api *scheduledEmailApi) query(ctx echo.Context) error {
	page := bindPagination(ctx)
	filter := new(schedmail.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, core.NewPaginatedData([]schedmail.ScheduledEmail{}, 0, page))
	}
	filter.Clean()

	ordering := new(Ordering)
	ordering.Bind(ctx, "send_at", "status", "created_at")

	emails, total, err := api.svc.Query(filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying scheduled emails")
	}
	if emails == nil {
		emails = []schedmail.ScheduledEmail{}
	}
	return ctx.JSON(http.StatusOK, core.NewPaginatedData(emails, total, page))
}

func (api *scheduledEmailApi) retrieve(ctx echo.Context) error {
	em, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == schedmail.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding scheduled email by ID")
	}
	return ctx.JSON(http.StatusOK, em)
}

func (api *scheduledEmailApi) update(ctx echo.Context) error {
	var data schedmail.UpdateScheduledEmail
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateScheduledEmail")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	em, err := api.svc.Update(ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == schedmail.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating scheduled email")
	}
	return ctx.JSON(http.StatusOK, em)
}

func (api *scheduledEmailApi) cancel(ctx echo.Context) error {
	em, err := api.svc.Cancel(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == schedmail.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "cancelling scheduled email")
	}
	return ctx.JSON(http.StatusOK, em)
}
