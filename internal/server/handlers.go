package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gyeh/claimcheck/internal/insurer"
	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/store"
)

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.opts.Version,
	})
}

func (s *Server) bindSubmission(c echo.Context) (*model.ClaimSubmission, error) {
	var sub model.ClaimSubmission
	if err := c.Bind(&sub); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid claim body: "+err.Error())
	}
	return &sub, nil
}

func (s *Server) prevalidate(c echo.Context) error {
	sub, err := s.bindSubmission(c)
	if err != nil {
		return err
	}
	out, err := s.opts.Claims.Prevalidate(c.Request().Context(), sub)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) validate(c echo.Context) error {
	sub, err := s.bindSubmission(c)
	if err != nil {
		return err
	}
	out, err := s.opts.Claims.Validate(c.Request().Context(), sub)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) listClaims(c echo.Context) error {
	f := store.ListFilter{
		PatientID: c.QueryParam("patient_id"),
		Status:    c.QueryParam("status"),
	}
	var err error
	if f.Limit, err = intParam(c, "limit"); err != nil {
		return err
	}
	if f.Offset, err = intParam(c, "offset"); err != nil {
		return err
	}
	list, err := s.opts.Claims.ListClaims(c.Request().Context(), f)
	if err != nil {
		return err
	}
	if list == nil {
		list = []store.StoredClaim{}
	}
	return c.JSON(http.StatusOK, map[string]any{"claims": list, "count": len(list)})
}

func (s *Server) listPatients(c echo.Context) error {
	limit, err := intParam(c, "limit")
	if err != nil {
		return err
	}
	offset, err := intParam(c, "offset")
	if err != nil {
		return err
	}
	list, err := s.opts.Claims.ListPatients(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	if list == nil {
		list = []store.Patient{}
	}
	return c.JSON(http.StatusOK, map[string]any{"patients": list, "count": len(list)})
}

// insurerClaims relays the insurer's claim bundle unchanged.
func (s *Server) insurerClaims(c echo.Context) error {
	opts := insurer.ListOptions{
		Status:            c.QueryParam("status"),
		PatientIdentifier: c.QueryParam("patient_id"),
	}
	var err error
	if opts.Page, err = intParam(c, "page"); err != nil {
		return err
	}
	if opts.PageSize, err = intParam(c, "page_size"); err != nil {
		return err
	}
	raw, err := s.opts.Claims.InsurerClaims(c.Request().Context(), opts)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (s *Server) reload(c echo.Context) error {
	if s.opts.Reloader == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "reload not available")
	}
	info, err := s.opts.Reloader.Reload(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a non-negative integer")
	}
	return n, nil
}
