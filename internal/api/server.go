// Package api exposes the sweep service over HTTP and streams batch
// snapshots over a websocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	holdingsDomain "github.com/fd1az/token-sweeper/business/holdings/domain"
	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/asset"
	"github.com/fd1az/token-sweeper/internal/logger"
	"github.com/fd1az/token-sweeper/internal/metrics"
)

// Sweeper is the part of the sweep service the API drives.
type Sweeper interface {
	Start(ctx context.Context, req domain.SweepRequest) error
	Current() domain.BatchStatus
	HoldingsRequest(ctx context.Context, target common.Address) (domain.SweepRequest, error)
	Subscribe() (<-chan domain.BatchStatus, func())
}

// Denylist lists and extends the token denylist.
type Denylist interface {
	List() []common.Address
	Add(ctx context.Context, token common.Address) (bool, error)
}

// Holdings returns the cached significant-holdings snapshot.
type Holdings interface {
	Snapshot(ctx context.Context, owner common.Address) (*holdingsDomain.Snapshot, error)
}

// Account reports the session address, or the zero address without a key.
type Account interface {
	Address() common.Address
}

// Config holds the API settings.
type Config struct {
	Port          int
	ChainID       uint64
	DefaultTarget string
}

// Server is the HTTP API.
type Server struct {
	cfg      Config
	sweeper  Sweeper
	denylist Denylist
	holdings Holdings
	account  Account
	registry *asset.Registry
	logger   logger.LoggerInterface

	router *gin.Engine
	server *http.Server

	// baseCtx outlives requests; batches started over HTTP run on it.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer creates the API server. holdings may be nil, which disables the
// holdings endpoint and "all" sweeps.
func NewServer(cfg Config, sweeper Sweeper, denylist Denylist, holdings Holdings, account Account, registry *asset.Registry, log logger.LoggerInterface) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		sweeper:    sweeper,
		denylist:   denylist,
		holdings:   holdings,
		account:    account,
		registry:   registry,
		logger:     log,
		router:     gin.New(),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the gin engine.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the API in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(context.Background(), "api server stopped", "error", err, "port", s.cfg.Port)
		}
	}()

	s.logger.Info(context.Background(), "api server started", "port", s.cfg.Port)
	return nil
}

// Stop cancels background batches and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.cancelBase()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error(c.Request.Context(), "panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			apperror.New(apperror.CodeInternalError).ToResponse())
	}))
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/sweeps", s.startSweep)
		v1.GET("/sweeps/current", s.currentSweep)
		v1.GET("/sweeps/stream", s.streamSweeps)

		v1.GET("/denylist", s.listDenylist)
		v1.POST("/denylist", s.addDenylist)

		v1.GET("/holdings", s.listHoldings)
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString("request_id"),
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			s.logger.Error(ctx, "request completed", args...)
		case status >= 400:
			s.logger.Warn(ctx, "request completed", args...)
		default:
			s.logger.Debug(ctx, "request completed", args...)
		}
	}
}

// sweepRequest is the POST /api/v1/sweeps body. Tokens, Amounts and
// Symbols are parallel; All replaces them with the holdings snapshot.
type sweepRequest struct {
	Tokens  []string `json:"tokens"`
	Amounts []string `json:"amounts"`
	Symbols []string `json:"symbols"`
	Target  string   `json:"target"`
	All     bool     `json:"all"`
}

func (s *Server) startSweep(c *gin.Context) {
	var body sweepRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, apperror.New(apperror.CodeInvalidRequest, apperror.WithCause(err)))
		return
	}

	target, err := s.resolveTarget(body.Target)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req domain.SweepRequest
	if body.All {
		if s.holdings == nil {
			s.writeError(c, apperror.New(apperror.CodeInvalidState,
				apperror.WithStatusCode(http.StatusNotImplemented),
				apperror.WithMessage("holdings are not configured")))
			return
		}
		req, err = s.sweeper.HoldingsRequest(c.Request.Context(), target)
	} else {
		req, err = buildRequest(body, target)
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(c, err)
		return
	}

	if err := s.sweeper.Start(s.baseCtx, req); err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "sweep started over api",
		"tokens", len(req.Tokens),
		"target", target.Hex(),
	)
	c.JSON(http.StatusAccepted, s.sweeper.Current())
}

// buildRequest parses the explicit token list and drops entries equal to
// the target.
func buildRequest(body sweepRequest, target common.Address) (domain.SweepRequest, error) {
	if len(body.Tokens) == 0 {
		return domain.SweepRequest{}, apperror.New(apperror.CodeInvalidRequest,
			apperror.WithContext("tokens is empty"))
	}
	if len(body.Tokens) != len(body.Amounts) {
		return domain.SweepRequest{}, apperror.New(apperror.CodeInvalidRequest,
			apperror.WithContext(fmt.Sprintf("%d tokens but %d amounts", len(body.Tokens), len(body.Amounts))))
	}
	if len(body.Symbols) != 0 && len(body.Symbols) != len(body.Tokens) {
		return domain.SweepRequest{}, apperror.New(apperror.CodeInvalidRequest,
			apperror.WithContext(fmt.Sprintf("%d tokens but %d symbols", len(body.Tokens), len(body.Symbols))))
	}

	req := domain.SweepRequest{Target: target}
	for i, raw := range body.Tokens {
		raw = strings.TrimSpace(raw)
		if !common.IsHexAddress(raw) {
			return domain.SweepRequest{}, apperror.New(apperror.CodeInvalidRequest,
				apperror.WithContext(fmt.Sprintf("token %d %q is not an address", i, raw)))
		}
		token := common.HexToAddress(raw)
		if token == target {
			continue
		}
		req.Tokens = append(req.Tokens, token)
		req.Amounts = append(req.Amounts, strings.TrimSpace(body.Amounts[i]))
		if len(body.Symbols) != 0 {
			req.Symbols = append(req.Symbols, body.Symbols[i])
		}
	}
	return req, nil
}

func (s *Server) resolveTarget(ref string) (common.Address, error) {
	if strings.TrimSpace(ref) == "" {
		ref = s.cfg.DefaultTarget
	}
	addr, err := s.registry.Resolve(s.cfg.ChainID, ref)
	if err != nil {
		return common.Address{}, apperror.New(apperror.CodeUnknownTarget,
			apperror.WithCause(err),
			apperror.WithContext(ref))
	}
	return addr, nil
}

func (s *Server) currentSweep(c *gin.Context) {
	c.JSON(http.StatusOK, s.sweeper.Current())
}

func (s *Server) listDenylist(c *gin.Context) {
	tokens := s.denylist.List()
	c.JSON(http.StatusOK, gin.H{
		"tokens": tokens,
		"count":  len(tokens),
	})
}

func (s *Server) addDenylist(c *gin.Context) {
	var body struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, apperror.New(apperror.CodeInvalidRequest, apperror.WithCause(err)))
		return
	}
	if !common.IsHexAddress(body.Token) {
		s.writeError(c, apperror.New(apperror.CodeInvalidRequest,
			apperror.WithContext(fmt.Sprintf("%q is not an address", body.Token))))
		return
	}
	token := common.HexToAddress(body.Token)

	added, err := s.denylist.Add(c.Request.Context(), token)
	if err != nil && !added {
		s.writeError(c, err)
		return
	}

	resp := gin.H{"token": token, "added": added}
	if err != nil {
		// Membership holds for this process even when the write failed.
		s.logger.Warn(c.Request.Context(), "denylist entry not persisted", "token", token.Hex(), "error", err)
		resp["warning"] = "token denylisted but not persisted"
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

func (s *Server) listHoldings(c *gin.Context) {
	if s.holdings == nil {
		s.writeError(c, apperror.New(apperror.CodeInvalidState,
			apperror.WithStatusCode(http.StatusNotImplemented),
			apperror.WithMessage("holdings are not configured")))
		return
	}

	owner := s.account.Address()
	if owner == (common.Address{}) {
		s.writeError(c, apperror.New(apperror.CodeNoWallet))
		return
	}

	snapshot, err := s.holdings.Snapshot(c.Request.Context(), owner)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) writeError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(apperror.CodeInternalError, "", err)
	}
	if appErr.TraceID == "" {
		apperror.WithTrace(c.Request.Context())(appErr)
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "error", err, "path", c.Request.URL.Path)
	}
	c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
}
