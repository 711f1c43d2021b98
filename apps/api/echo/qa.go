package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/qa"
)

type qaApi struct {
	svc      qa.ServiceInterface
	validate *validator.Validate
}

func registerQaAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := qaApi{
		svc:      deps.QASvc,
		validate: deps.Validate,
	}

	g.POST("/qa", api.log, jwt)
	g.GET("/admin/qa-history", api.query, jwt, adminMiddleware())
}

// Handlers

func (api *qaApi) log(ctx echo.Context) error {
	var data qa.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rec, err := api.svc.Log(claims.Subject, claims.Username, data)
	if err != nil {
		return errors.Wrap(err, "logging Q&A record")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *qaApi) query(ctx echo.Context) error {
	page := bindPagination(ctx)
	filter := new(qa.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, core.NewPaginatedData([]qa.Record{}, 0, page))
	}
	filter.Clean()

	ordering := new(Ordering)
	ordering.Bind(ctx, "created_at", "username")

	records, total, err := api.svc.Query(filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying Q&A history")
	}
	if records == nil {
		records = []qa.Record{}
	}
	return ctx.JSON(http.StatusOK, core.NewPaginatedData(records, total, page))
}
