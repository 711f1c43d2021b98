package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core/simulation"
)

type simulationApi struct {
	registry *simulation.Registry
}

func registerSimulationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := simulationApi{registry: deps.SimRegistry}

	sg := g.Group("/simulations", jwt)
	sg.GET("", api.query)
	sg.GET("/:slug", api.retrieve)
	sg.POST("/:slug/run", api.run)
}

// Handlers

func (api *simulationApi) query(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.registry.List())
}

func (api *simulationApi) retrieve(ctx echo.Context) error {
	m, err := api.registry.Get(ctx.Param("slug"))
	if err != nil {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, m.Describe())
}

func (api *simulationApi) run(ctx echo.Context) error {
	var data RunRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RunRequest")
	}

	m, err := api.registry.Get(ctx.Param("slug"))
	if err != nil {
		return errHttpNotFound
	}

	series, err := m.Run(data.Params)
	if err != nil {
		return errors.Wrap(err, "running simulation")
	}

	resp := RunResponse{Series: series}
	if data.Challenge != nil {
		res, err := simulation.EvaluateChallenge(m.Describe(), series, *data.Challenge)
		if err != nil {
			return errors.Wrap(err, "evaluating challenge")
		}
		resp.Challenge = &res
	}
	return ctx.JSON(http.StatusOK, resp)
}

// Custom request & response types

type (
	RunRequest struct {
		Params    map[string]float64 `json:"params"`
		Challenge *simulation.Guess  `json:"challenge,omitempty"`
	}

	RunResponse struct {
		simulation.Series
		Challenge *simulation.Result `json:"challenge,omitempty"`
	}
)
