// Package api exposes the facilitator over HTTP with gin. Routing, status
// code mapping and request hygiene live here; all payment decisions are
// delegated to the facilitator service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/a402-foundation/a402-facilitator/internal/config"
	"github.com/a402-foundation/a402-facilitator/internal/facilitator"
	"github.com/a402-foundation/a402-facilitator/internal/metrics"
	"github.com/a402-foundation/a402-facilitator/internal/settle"
	"github.com/a402-foundation/a402-facilitator/internal/validate"
)

// Server is the HTTP front of the facilitator.
type Server struct {
	service *facilitator.Service
	metrics *metrics.Registry
	log     *logrus.Logger
	engine  *gin.Engine
}

// NewServer builds the gin engine with all routes and middleware attached.
func NewServer(service *facilitator.Service, reg *metrics.Registry, ratePerMin int, log *logrus.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		service: service,
		metrics: reg,
		log:     log,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())
	engine.Use(reg.RequestTimer())
	engine.Use(rateLimiter(ratePerMin))

	engine.GET("/", s.handleInfo)
	engine.GET("/health", s.handleHealth)
	engine.GET("/list", s.handleList)
	engine.GET("/metrics", reg.Handler())
	engine.POST("/verify", s.handleVerify)
	engine.POST("/settle", s.handleSettle)

	s.engine = engine
	return s
}

// Handler returns the http.Handler for serving or testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// rateLimiter smooths request admission to the configured per-minute rate.
// Leaky bucket: excess requests are delayed rather than rejected.
func rateLimiter(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(*gin.Context) {}
	}
	rl := ratelimit.New(perMinute, ratelimit.Per(time.Minute))
	return func(c *gin.Context) {
		rl.Take()
		c.Next()
	}
}

func (s *Server) handleVerify(c *gin.Context) {
	req, ok := s.readPaymentRequest(c, func(detail string) any {
		return facilitator.VerifyResponse{IsValid: false, InvalidReason: detail}
	})
	if !ok {
		return
	}

	resp, reason, err := s.service.Verify(c.Request.Context(), req)
	if err != nil {
		var unknown config.ErrUnknownNetwork
		if errors.As(err, &unknown) {
			c.JSON(http.StatusBadRequest, facilitator.VerifyResponse{
				IsValid:       false,
				InvalidReason: unknown.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, facilitator.VerifyResponse{
			IsValid:       false,
			InvalidReason: "Verification failed",
		})
		return
	}
	if reason == validate.ReasonMalformedPayload {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSettle(c *gin.Context) {
	req, ok := s.readPaymentRequest(c, func(detail string) any {
		return facilitator.SettleResponse{Success: false, ErrorReason: detail}
	})
	if !ok {
		return
	}

	resp, reason, err := s.service.Settle(c.Request.Context(), req)
	if err != nil {
		var unknown config.ErrUnknownNetwork
		switch {
		case errors.As(err, &unknown):
			c.JSON(http.StatusBadRequest, facilitator.SettleResponse{
				Success:     false,
				ErrorReason: unknown.Error(),
			})
		case errors.Is(err, settle.ErrSettlementInFlight):
			c.JSON(http.StatusConflict, facilitator.SettleResponse{
				Success:     false,
				ErrorReason: err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, facilitator.SettleResponse{
				Success:     false,
				ErrorReason: "Settlement failed",
			})
		}
		return
	}
	if reason == validate.ReasonMalformedPayload {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// readPaymentRequest validates the envelope and decodes the body. On
// failure it writes a 400 built by errBody and reports false.
func (s *Server) readPaymentRequest(c *gin.Context, errBody func(detail string) any) (facilitator.VerifyRequest, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errBody("failed to read request body"))
		return facilitator.VerifyRequest{}, false
	}
	if err := validateEnvelope(body); err != nil {
		c.JSON(http.StatusBadRequest, errBody(err.Error()))
		return facilitator.VerifyRequest{}, false
	}
	var req facilitator.VerifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, errBody("invalid JSON body"))
		return facilitator.VerifyRequest{}, false
	}
	return req, true
}

func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Info())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Health())
}

func (s *Server) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.List(c.Request.Context()))
}
