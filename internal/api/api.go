// Package api exposes the aggregator and the appraisal helpers over HTTP.
//
//	@title			appraise API
//	@version		1.0
//	@description	Multi-source antique price aggregation.
//	@BasePath		/api
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	_ "github.com/FranksOps/appraise/internal/api/docs"
	"github.com/FranksOps/appraise/internal/appraisal"
	"github.com/FranksOps/appraise/internal/llm"
	"github.com/FranksOps/appraise/internal/market"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Prefixes under which every function route is mounted. The second keeps
// existing browser clients working unchanged.
var Prefixes = []string{"/api/", "/.netlify/functions/"}

const maxBodyBytes = 12 << 20

type Aggregator interface {
	Respond(ctx context.Context, query string) market.Response
}

type Estimator interface {
	Estimate(ctx context.Context, req appraisal.EstimateRequest) (appraisal.Estimate, error)
}

type Identifier interface {
	Identify(ctx context.Context, imageData string) (appraisal.Identification, error)
}

// Options wires the handlers to their collaborators. A nil Estimator or
// Identifier makes its route answer 503.
type Options struct {
	Aggregator Aggregator
	Estimator  Estimator
	Identifier Identifier
	Logger     *slog.Logger
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	// Swagger mounts the API docs under /swagger/.
	Swagger bool
}

// Server holds the HTTP handlers.
type Server struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
	mux    *http.ServeMux
}

// New builds the server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		opts:   opts,
		logger: opts.Logger,
		now:    time.Now,
		mux:    http.NewServeMux(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	for _, p := range Prefixes {
		s.mux.HandleFunc("GET "+p+"market-aggregate", cors("GET, OPTIONS", s.handleMarketAggregate))
		s.mux.HandleFunc("OPTIONS "+p+"market-aggregate", cors("GET, OPTIONS", preflight))
		s.mux.HandleFunc("POST "+p+"ai-pricing", cors("POST, OPTIONS", s.handleAIPricing))
		s.mux.HandleFunc("OPTIONS "+p+"ai-pricing", cors("POST, OPTIONS", preflight))
		s.mux.HandleFunc("POST "+p+"vision", cors("POST, OPTIONS", s.handleVision))
		s.mux.HandleFunc("OPTIONS "+p+"vision", cors("POST, OPTIONS", preflight))
		s.mux.HandleFunc("GET "+p+"health", s.handleHealth)
	}
	if s.opts.Metrics != nil {
		s.mux.Handle("GET /metrics", s.opts.Metrics)
	}
	if s.opts.Swagger {
		s.mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

func cors(methods string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Allow-Methods", methods)
		next(w, r)
	}
}

func preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg})
}

// handleMarketAggregate godoc
//
//	@Summary		Aggregate market prices
//	@Description	Queries every configured source concurrently. Always answers 200; failed sources appear as link-only entries.
//	@Tags			market
//	@Produce		json
//	@Param			query	query		string	false	"search terms"	default(antique)
//	@Success		200		{object}	market.Response
//	@Router			/market-aggregate [get]
func (s *Server) handleMarketAggregate(w http.ResponseWriter, r *http.Request) {
	query := market.NormalizeQuery(r.URL.Query().Get("query"))
	s.writeJSON(w, http.StatusOK, s.opts.Aggregator.Respond(r.Context(), query))
}

// handleAIPricing godoc
//
//	@Summary	Model-estimated price ranges
//	@Tags		appraisal
//	@Accept		json
//	@Produce	json
//	@Param		item	body		appraisal.EstimateRequest	true	"item description"
//	@Success	200		{object}	appraisal.Estimate
//	@Failure	400		{object}	errorBody
//	@Failure	503		{object}	errorBody
//	@Router		/ai-pricing [post]
func (s *Server) handleAIPricing(w http.ResponseWriter, r *http.Request) {
	var req appraisal.EstimateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ItemName) == "" {
		s.writeError(w, http.StatusBadRequest, "itemName missing")
		return
	}
	if s.opts.Estimator == nil {
		s.writeError(w, http.StatusServiceUnavailable, "OPENAI_API_KEY not configured")
		return
	}

	est, err := s.opts.Estimator.Estimate(r.Context(), req)
	if err != nil {
		status, msg := s.upstreamError(err, "OPENAI_API_KEY not configured", "OpenAI failed")
		s.logger.Error("ai pricing failed", "item", req.ItemName, "err", err)
		s.writeError(w, status, msg)
		return
	}
	s.writeJSON(w, http.StatusOK, est)
}

type visionRequest struct {
	ImageData string `json:"imageData"`
}

// handleVision godoc
//
//	@Summary	Identify an item from a photo
//	@Tags		appraisal
//	@Accept		json
//	@Produce	json
//	@Param		image	body		visionRequest	true	"base64 image, optionally a data URL"
//	@Success	200		{object}	appraisal.Identification
//	@Failure	400		{object}	errorBody
//	@Failure	503		{object}	errorBody
//	@Router		/vision [post]
func (s *Server) handleVision(w http.ResponseWriter, r *http.Request) {
	var req visionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ImageData == "" {
		s.writeError(w, http.StatusBadRequest, "imageData missing")
		return
	}
	if s.opts.Identifier == nil {
		s.writeError(w, http.StatusServiceUnavailable, "VISION_API_KEY not configured")
		return
	}

	id, err := s.opts.Identifier.Identify(r.Context(), req.ImageData)
	if err != nil {
		if errors.Is(err, appraisal.ErrInvalidImage) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status, msg := s.upstreamError(err, "VISION_API_KEY not configured", "Vision failed")
		s.logger.Error("vision failed", "err", err)
		s.writeError(w, status, msg)
		return
	}
	s.writeJSON(w, http.StatusOK, id)
}

// upstreamError maps a model client error onto a status and message.
func (s *Server) upstreamError(err error, notConfigured, prefix string) (int, string) {
	var se *llm.StatusError
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable, notConfigured
	case errors.As(err, &se):
		return se.Code, fmt.Sprintf("%s: %d", prefix, se.Code)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, prefix + ": timed out"
	default:
		return http.StatusInternalServerError, prefix + ": " + err.Error()
	}
}

type healthBody struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// handleHealth godoc
//
//	@Summary	Liveness check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	healthBody
//	@Router		/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthBody{
		OK:      true,
		Message: "Functions are running",
		Time:    s.now().UTC().Format(time.RFC3339),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("request body exceeds %d bytes", tooBig.Limit)
		}
		return errors.New("invalid JSON body")
	}
	return nil
}
