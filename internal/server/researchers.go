package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/entity"
	"github.com/joseph-ayodele/cv-ingest/internal/repository"
)

const maxListLimit = 500

type ListResearchersResponse struct {
	Researchers []entity.ResearcherSummary `json:"researchers"`
	Count       int                        `json:"count"`
}

func (s *Server) handleListResearchers(c echo.Context) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	rows, err := s.deps.Researchers.List(c.Request().Context(), f)
	if err != nil {
		common.LoggerFrom(c.Request().Context(), s.logger).Error("http.researchers.list_failed", "error", err)
		return toHTTPError(err)
	}
	if rows == nil {
		rows = []entity.ResearcherSummary{}
	}
	return c.JSON(http.StatusOK, ListResearchersResponse{Researchers: rows, Count: len(rows)})
}

func (s *Server) handleGetResearcher(c echo.Context) error {
	id, err := researcherID(c)
	if err != nil {
		return err
	}
	r, err := s.deps.Researchers.Get(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (s *Server) handleDeleteResearcher(c echo.Context) error {
	id, err := researcherID(c)
	if err != nil {
		return err
	}
	if err := s.deps.Researchers.Delete(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	common.LoggerFrom(c.Request().Context(), s.logger).Info("http.researchers.deleted", "researcher_id", id.String())
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleExport(c echo.Context) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	f.Limit, f.Offset = 0, 0
	out, err := s.deps.Exporter.ExportResearchersXLSX(c.Request().Context(), f)
	if err != nil {
		common.LoggerFrom(c.Request().Context(), s.logger).Error("http.export.failed", "error", err)
		return toHTTPError(err)
	}
	name := fmt.Sprintf("researchers-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", out)
}

func researcherID(c echo.Context) (uuid.UUID, error) {
	v := common.NewValidator().Field("id", c.Param("id"), common.UUID)
	if v.HasErrors() {
		return uuid.Nil, errInvalidArg(v.ErrorMessage())
	}
	return uuid.MustParse(c.Param("id")), nil
}

func listFilter(c echo.Context) (repository.ListFilter, error) {
	f := repository.ListFilter{
		Query: strings.TrimSpace(c.QueryParam("q")),
		Sort:  strings.ToLower(strings.TrimSpace(c.QueryParam("sort"))),
	}
	switch f.Sort {
	case "", "newest", "oldest", "name":
	default:
		return f, errInvalidArg("sort must be one of newest, oldest, name")
	}

	var err error
	if f.Limit, err = intParam(c, "limit"); err != nil {
		return f, err
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset, err = intParam(c, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errInvalidArg(name + " must be a non-negative integer")
	}
	return n, nil
}
