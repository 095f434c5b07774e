package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gyeh/claimcheck/internal/adjudicate"
	"github.com/gyeh/claimcheck/internal/claims"
	"github.com/gyeh/claimcheck/internal/insurer"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Rule      string `json:"rule,omitempty"`
	ItemCode  string `json:"item_code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps an error to its HTTP status and body.
func statusFor(err error) (int, errorBody) {
	var aerr *adjudicate.Error
	if errors.As(err, &aerr) {
		body := errorBody{Error: aerr.Error(), Kind: string(aerr.Kind), Rule: aerr.Rule, ItemCode: aerr.ItemCode}
		switch aerr.Kind {
		case adjudicate.KindPatientNotFound:
			return http.StatusNotFound, body
		case adjudicate.KindNoRemainingBalance, adjudicate.KindNoUnitsRemainingInWindow:
			return http.StatusUnprocessableEntity, body
		default:
			return http.StatusBadRequest, body
		}
	}

	var herr *echo.HTTPError
	if errors.As(err, &herr) {
		msg := http.StatusText(herr.Code)
		if m, ok := herr.Message.(string); ok {
			msg = m
		}
		return herr.Code, errorBody{Error: msg}
	}

	if errors.Is(err, claims.ErrInsurerDisabled) {
		return http.StatusServiceUnavailable, errorBody{Error: err.Error()}
	}
	var serr *insurer.StatusError
	if errors.As(err, &serr) {
		return http.StatusBadGateway, errorBody{Error: "insurer request failed"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal server error"}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := statusFor(err)
	body.RequestID, _ = c.Get("request_id").(string)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("request_id", body.RequestID).Msg("request failed")
	}
	if jerr := c.JSON(status, body); jerr != nil {
		s.log.Error().Err(jerr).Msg("write error response")
	}
}
