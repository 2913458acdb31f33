package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/annolab/concord/internal/domain/round"
	"github.com/annolab/concord/internal/domain/schema"
	"github.com/annolab/concord/internal/domain/task"
)

// CreateRoundRequest is the request body for POST /api/v1/projects/:project/rounds.
type CreateRoundRequest struct {
	Group     schema.GroupName `json:"dimension_group"`
	Threshold *float64         `json:"threshold,omitempty"`
	CreatedBy string           `json:"created_by,omitempty"`
}

// RoundResponse is the response body for GET /api/v1/rounds/:id.
type RoundResponse struct {
	Round    *round.Round    `json:"round"`
	Progress *round.Progress `json:"progress"`
}

// RaterRequest is the request body for task actions keyed only by rater.
type RaterRequest struct {
	RaterID string `json:"rater_id"`
}

// SubmitTaskRequest is the request body for POST /api/v1/tasks/:id/submit.
type SubmitTaskRequest struct {
	RaterID string        `json:"rater_id"`
	Fields  schema.Fields `json:"fields"`
	Persist bool          `json:"persist,omitempty"`
	Comment string        `json:"comment,omitempty"`
}

func (s *Server) handleAgreement(c echo.Context) error {
	report, err := s.rounds.ComputeAgreement(c.Request().Context(), c.Param("project"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleCreateRound(c echo.Context) error {
	var req CreateRoundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	threshold := s.config.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	result, err := s.rounds.CreateRound(c.Request().Context(), round.CreateRequest{
		ProjectID: c.Param("project"),
		Group:     req.Group,
		Threshold: threshold,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		return httpError(err)
	}
	if result.RoundID == "" {
		// Nothing scored below the threshold, no round materialized
		return c.JSON(http.StatusOK, result)
	}
	return c.JSON(http.StatusCreated, result)
}

func (s *Server) handleListRounds(c echo.Context) error {
	rounds, err := s.rounds.List(c.Request().Context(), c.Param("project"))
	if err != nil {
		return httpError(err)
	}
	if rounds == nil {
		rounds = []round.Round{}
	}
	return c.JSON(http.StatusOK, rounds)
}

func (s *Server) handleGetRound(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	r, err := s.rounds.Get(ctx, id)
	if err != nil {
		return httpError(err)
	}
	progress, err := s.rounds.Progress(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, RoundResponse{Round: r, Progress: progress})
}

func (s *Server) handleCompleteRound(c echo.Context) error {
	if err := s.rounds.Complete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCancelRound(c echo.Context) error {
	if err := s.rounds.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteRound(c echo.Context) error {
	if err := s.rounds.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListTasks(c echo.Context) error {
	views, err := s.tasks.ListForRater(c.Request().Context(), c.Param("rater"), round.TaskListOptions{
		ProjectID: c.QueryParam("project"),
		RoundID:   c.QueryParam("round"),
		Group:     schema.GroupName(c.QueryParam("dimension_group")),
	})
	if err != nil {
		return httpError(err)
	}
	if views == nil {
		views = []task.View{}
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleStartTask(c echo.Context) error {
	var req RaterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.tasks.Start(c.Request().Context(), c.Param("id"), req.RaterID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSubmitTask(c echo.Context) error {
	var req SubmitTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, err := s.tasks.Submit(c.Request().Context(), task.SubmitRequest{
		TaskID:  c.Param("id"),
		RaterID: req.RaterID,
		Fields:  req.Fields,
		Persist: req.Persist,
		Comment: req.Comment,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleSkipTask(c echo.Context) error {
	var req RaterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.tasks.Skip(c.Request().Context(), c.Param("id"), req.RaterID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReassignTask(c echo.Context) error {
	var req RaterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.tasks.Reassign(c.Request().Context(), c.Param("id"), req.RaterID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleUnitAnnotations returns the current answer per rater, or the full
// version history of one rater when ?rater= is given.
func (s *Server) handleUnitAnnotations(c echo.Context) error {
	ctx := c.Request().Context()
	unitID := c.Param("id")

	if raterID := c.QueryParam("rater"); raterID != "" {
		history, err := s.annotations.History(ctx, unitID, raterID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, history)
	}

	latest, err := s.annotations.LatestForUnit(ctx, unitID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, latest)
}

func (s *Server) handleUnitAudit(c echo.Context) error {
	entries, err := s.annotations.AuditTrail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}
