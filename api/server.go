package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"papertrader/backtest"
	"papertrader/broker"
	"papertrader/config"
	"papertrader/market"
	"papertrader/notify"
	"papertrader/trading"
)

// Server HTTP 控制面。核心引擎保持单线程；这里对每个回测请求
// 启动独立的 runner/账户实例，互不共享。
type Server struct {
	settings *config.Settings
	store    *config.Store
	trading  *trading.Service
	brokers  *broker.Service
	provider market.Provider
	notifier notify.Sender
	log      zerolog.Logger

	runsMu sync.RWMutex
	runs   map[string]*runState

	engine *gin.Engine
}

func NewServer(
	settings *config.Settings,
	store *config.Store,
	tradingSvc *trading.Service,
	brokerSvc *broker.Service,
	provider market.Provider,
	notifier notify.Sender,
	log zerolog.Logger,
) *Server {
	if settings.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		settings: settings,
		store:    store,
		trading:  tradingSvc,
		brokers:  brokerSvc,
		provider: provider,
		notifier: notifier,
		log:      log,
		runs:     make(map[string]*runState),
	}
	s.engine = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health/ping", s.handlePing)

		v1.GET("/instruments", s.handleListInstruments)
		v1.POST("/instruments", s.requireAuth(), s.handleUpsertInstrument)

		v1.POST("/orders", s.requireAuth(), s.handleCreateOrder)
		v1.GET("/accounts/primary", s.handlePrimaryAccount)

		v1.POST("/backtests", s.requireAuth(), s.handleRunBacktest)
		v1.GET("/backtests", s.handleListBacktests)
		v1.GET("/backtests/:id", s.handleGetBacktest)
		v1.GET("/backtests/:id/stream", s.handleStreamBacktest)

		v1.POST("/webhooks/:source", s.handleWebhook)

		v1.GET("/brokers/status", s.handleBrokerStatus)
		v1.GET("/brokers/credentials", s.requireAuth(), s.handleGetBrokerCredentials)
		v1.PUT("/brokers/credentials", s.requireAuth(), s.handleSaveBrokerCredentials)
		v1.GET("/brokers/totp", s.requireAuth(), s.handleBrokerTOTP)
	}
	return r
}

// Handler 暴露底层 handler，测试用 httptest 直接打。
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 阻塞式启动。
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.settings.APIPort)
	s.log.Info().Str("addr", addr).Msg("api server listening")
	return s.engine.Run(addr)
}

// corsMiddleware 按配置的来源回 CORS 头并处理预检请求。
func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowed := make(map[string]bool, len(s.settings.AllowedOrigins))
	for _, origin := range s.settings.AllowedOrigins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Webhook-Token")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requireAuth JWT Bearer 校验。未配置密钥时放行（本地开发模式），
// 生产环境由 main 的密钥强度检查兜底。
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.settings.JWTSecret == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(s.settings.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// abortError 统一错误出口：ErrNotFound → 404，其余 → 500。
func (s *Server) abortError(c *gin.Context, err error) {
	if errors.Is(err, config.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// runState 一次进行中/已结束回测的内存侧状态。
type runState struct {
	mu       sync.RWMutex
	id       string
	status   string // running / completed / failed
	progress backtest.Progress
	metrics  *backtest.Metrics
	err      string
}

func (rs *runState) snapshot() (string, backtest.Progress, *backtest.Metrics, string) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.status, rs.progress, rs.metrics, rs.err
}
