// Package server exposes the retention analyses as a JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cohort-retention/pkg/calculator"
	"cohort-retention/pkg/logger"
	"cohort-retention/pkg/models"

	"github.com/gin-gonic/gin"
)

// Source returns the current order snapshot. It is called once per request.
type Source func(ctx context.Context) (models.OrderTable, error)

type Options struct {
	Addr          string
	Defaults      models.Params
	WeekdayMaxAge int
}

type Server struct {
	engine *calculator.Engine
	source Source
	opts   Options
	log    *logger.Logger
	router *gin.Engine
	srv    *http.Server
}

func New(engine *calculator.Engine, source Source, opts Options, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{engine: engine, source: source, opts: opts, log: log}
	s.router = s.routes()
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(s.log))

	router.GET("/healthz", HealthCheck)
	v1 := router.Group("/v1")
	{
		v1.GET("/retention", s.Retention)
		v1.GET("/weekday", s.Weekday)
		v1.GET("/repeat-purchasers", s.RepeatPurchasers)
		v1.GET("/purchase-distribution", s.PurchaseDistribution)
	}
	return router
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops. A graceful Stop is not an error.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.opts.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
