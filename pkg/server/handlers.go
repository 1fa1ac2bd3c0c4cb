package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"cohort-retention/pkg/cohort"
	"cohort-retention/pkg/export"
	"cohort-retention/pkg/models"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message:   msg,
			Code:      code,
			RequestID: c.GetString(requestIDKey),
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondFailure maps engine errors to HTTP statuses.
func respondFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cohort.ErrInvalidParams):
		RespondError(c, http.StatusBadRequest, "invalid_params", err)
	case errors.Is(err, cohort.ErrEmptyInput):
		RespondError(c, http.StatusUnprocessableEntity, "no_data", err)
	case errors.Is(err, cohort.ErrEmptyScope):
		RespondError(c, http.StatusNotFound, "empty_scope", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /v1/retention?granularity=week&max_age=8&year=2023&bucket=2023-01&week=2&drop_age_zero=true
func (s *Server) Retention(c *gin.Context) {
	p, err := s.params(c, s.opts.Defaults)
	if err != nil {
		respondFailure(c, err)
		return
	}
	table, err := s.source(c.Request.Context())
	if err != nil {
		respondFailure(c, fmt.Errorf("loading orders: %w", err))
		return
	}
	report, err := s.engine.Retention(c.Request.Context(), table, p)
	if err != nil {
		respondFailure(c, err)
		return
	}
	RespondOK(c, export.NewReportDoc(report))
}

// GET /v1/weekday?max_age=31&year=2023
func (s *Server) Weekday(c *gin.Context) {
	defaults := s.opts.Defaults
	defaults.Granularity = models.Day
	if s.opts.WeekdayMaxAge > 0 {
		defaults.MaxAge = s.opts.WeekdayMaxAge
	}
	p, err := s.params(c, defaults)
	if err != nil {
		respondFailure(c, err)
		return
	}
	table, err := s.source(c.Request.Context())
	if err != nil {
		respondFailure(c, fmt.Errorf("loading orders: %w", err))
		return
	}
	report, err := s.engine.Weekday(c.Request.Context(), table, p)
	if err != nil {
		respondFailure(c, err)
		return
	}
	RespondOK(c, export.NewWeekdayReportDoc(report))
}

// GET /v1/repeat-purchasers?year=2023
func (s *Server) RepeatPurchasers(c *gin.Context) {
	year := s.opts.Defaults.Scope.Year
	if err := intQuery(c, "year", &year); err != nil {
		respondFailure(c, err)
		return
	}
	table, err := s.source(c.Request.Context())
	if err != nil {
		respondFailure(c, fmt.Errorf("loading orders: %w", err))
		return
	}
	months, err := s.engine.RepeatPurchasers(c.Request.Context(), table, year)
	if err != nil {
		respondFailure(c, err)
		return
	}
	RespondOK(c, export.NewRepeatDoc(year, months, cohort.Seasonal(months)))
}

// GET /v1/purchase-distribution
func (s *Server) PurchaseDistribution(c *gin.Context) {
	table, err := s.source(c.Request.Context())
	if err != nil {
		respondFailure(c, fmt.Errorf("loading orders: %w", err))
		return
	}
	dist, err := s.engine.PurchaseDistribution(c.Request.Context(), table)
	if err != nil {
		respondFailure(c, err)
		return
	}
	RespondOK(c, gin.H{"buckets": export.NewDistributionDoc(dist)})
}

// params overlays query parameters on defaults and validates the result.
func (s *Server) params(c *gin.Context, defaults models.Params) (models.Params, error) {
	p := defaults
	if g := c.Query("granularity"); g != "" {
		p.Granularity = models.Granularity(strings.ToLower(g))
	}
	if err := intQuery(c, "max_age", &p.MaxAge); err != nil {
		return p, err
	}
	if err := intQuery(c, "year", &p.Scope.Year); err != nil {
		return p, err
	}
	if err := intQuery(c, "week", &p.Scope.WeekOfMonth); err != nil {
		return p, err
	}
	if b, ok := c.GetQuery("bucket"); ok {
		p.Scope.Bucket = b
	}
	if v, ok := c.GetQuery("drop_age_zero"); ok {
		drop, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("%w: drop_age_zero=%q", cohort.ErrInvalidParams, v)
		}
		p.DropAgeZero = drop
	}
	return p, cohort.Validate(p)
}

func intQuery(c *gin.Context, name string, dst *int) error {
	v, ok := c.GetQuery(name)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", cohort.ErrInvalidParams, name, v)
	}
	*dst = n
	return nil
}
