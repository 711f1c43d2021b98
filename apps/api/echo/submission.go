package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/assignment"
	"github.com/zuberi/fizikia/core/submission"
)

type submissionApi struct {
	svc      submission.ServiceInterface
	validate *validator.Validate
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := submissionApi{
		svc:      deps.SubmissionSvc,
		validate: deps.Validate,
	}

	// per-assignment endpoints
	ag := g.Group("/assignments/:id", jwt)
	ag.PUT("/draft", api.saveDraft)
	ag.POST("/submit", api.submitFinal)
	ag.GET("/submissions", api.query, staffMiddleware())
	ag.GET("/submissions/mine", api.mine)

	sg := g.Group("/submissions", jwt)
	sg.GET("/:id", api.retrieve)

	ans := g.Group("/answers", jwt)
	ans.POST("/:id/grade", api.grade, staffMiddleware())
}

// Handlers

func (api *submissionApi) saveDraft(ctx echo.Context) error {
	var data submission.SubmissionInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmissionInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sub, err := api.svc.SaveDraft(ctx.Param("id"), claims.Subject, data)
	if err != nil {
		if errors.Cause(err) == assignment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "saving draft")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) submitFinal(ctx echo.Context) error {
	var data submission.SubmissionInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmissionInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sub, err := api.svc.SubmitFinal(ctx.Param("id"), claims.Subject, data)
	if err != nil {
		if errors.Cause(err) == assignment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "submitting")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *submissionApi) query(ctx echo.Context) error {
	page := bindPagination(ctx)
	filter := new(submission.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, core.NewPaginatedData([]submission.Submission{}, 0, page))
	}
	filter.AssignmentID = ctx.Param("id")

	ordering := new(Ordering)
	ordering.Bind(ctx, "score", "submitted_at", "graded_at", "created_at")

	subs, total, err := api.svc.Query(filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return ctx.JSON(http.StatusOK, core.NewPaginatedData(subs, total, page))
}

func (api *submissionApi) mine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	subs, err := api.svc.GetMine(ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "finding submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sub, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == submission.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding submission by ID")
	}
	// owners and staff only; keep IDs unguessable for everyone else
	if sub.UserID != claims.Subject && !claims.IsStaff {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) grade(ctx echo.Context) error {
	var data submission.GradeAnswerInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeAnswerInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sub, err := api.svc.GradeAnswer(ctx.Param("id"), claims.Subject, data)
	if err != nil {
		if errors.Cause(err) == submission.ErrAnswerNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "grading answer")
	}
	return ctx.JSON(http.StatusOK, sub)
}
