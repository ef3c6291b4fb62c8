// Package server exposes the comparison engine over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/regdiff/internal/extract/adapters"
	"github.com/ppiankov/regdiff/internal/metrics"
	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/pipeline"
)

const shutdownTimeout = 10 * time.Second

// Comparer runs a comparison on segmented inputs
type Comparer interface {
	CompareSections(ctx context.Context, oldSrc, newSrc pipeline.Source, opts ...pipeline.CompareOption) (*model.Report, error)
}

// CompareRequest is the body of POST /v1/compare. Old and new are section
// mappings in the structured input format; key order is kept.
type CompareRequest struct {
	Old     json.RawMessage `json:"old" binding:"required"`
	New     json.RawMessage `json:"new" binding:"required"`
	Options CompareOptions  `json:"options"`
}

// CompareOptions overrides validation settings for one request
type CompareOptions struct {
	StrictMode     *bool `json:"strict_mode,omitempty"`
	IncludeNonTrue *bool `json:"include_non_true,omitempty"`
}

// CompareResponse is the body returned by POST /v1/compare
type CompareResponse struct {
	RunID      string                `json:"run_id"`
	Changes    []model.Change        `json:"changes"`
	Summaries  []model.ChangeSummary `json:"summaries,omitempty"`
	Score      model.Score           `json:"score"`
	Matching   model.MatchStats      `json:"matching"`
	Validation model.ValidationStats `json:"validation"`
	Digests    Digests               `json:"digests"`
}

// Digests are the content ids of the inputs and of the change list
type Digests struct {
	Old     string `json:"old"`
	New     string `json:"new"`
	Changes string `json:"changes"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Server serves compare, health and metrics endpoints
type Server struct {
	comparer Comparer
	recorder *metrics.Recorder
	cfg      model.ServerConfig
	logger   *slog.Logger
	router   *gin.Engine
}

// New creates the server and its routes. recorder may be nil, in which case
// /metrics is not registered.
func New(comparer Comparer, recorder *metrics.Recorder, cfg model.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		comparer: comparer,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		router:   gin.New(),
	}
	s.router.Use(gin.Recovery(), s.requestLogger(), s.limitBody())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.recorder != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.recorder.Registry(), promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/v1")
	v1.POST("/compare", s.handleCompare)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCompare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	oldSecs, err := decodeSections(req.Old)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "old: " + err.Error(), Code: "INVALID_SECTIONS"})
		return
	}
	newSecs, err := decodeSections(req.New)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "new: " + err.Error(), Code: "INVALID_SECTIONS"})
		return
	}

	var opts []pipeline.CompareOption
	if req.Options.StrictMode != nil {
		opts = append(opts, pipeline.StrictMode(*req.Options.StrictMode))
	}
	if req.Options.IncludeNonTrue != nil {
		opts = append(opts, pipeline.IncludeNonTrue(*req.Options.IncludeNonTrue))
	}

	report, err := s.comparer.CompareSections(c.Request.Context(),
		pipeline.Source{Meta: model.DocumentMeta{Ref: "old", Format: "structured"}, Sections: oldSecs},
		pipeline.Source{Meta: model.DocumentMeta{Ref: "new", Format: "structured"}, Sections: newSecs},
		opts...)
	if err != nil {
		s.logger.Error("compare failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "COMPARE_FAILED"})
		return
	}

	c.JSON(http.StatusOK, CompareResponse{
		RunID:      report.RunID,
		Changes:    report.Changes,
		Summaries:  report.Summaries,
		Score:      report.Score,
		Matching:   report.Matching,
		Validation: report.Validation,
		Digests: Digests{
			Old:     report.Old.Digest,
			New:     report.New.Digest,
			Changes: report.ChangesDigest,
		},
	})
}

// decodeSections reads a JSON section mapping through the YAML node decoder
// so that key order survives as section position
func decodeSections(raw json.RawMessage) (model.Sections, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(compact.Bytes(), &node); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	return adapters.DecodeSections(&node)
}

func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.MaxBodyBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
