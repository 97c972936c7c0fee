package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"papertrader/backtest"
	"papertrader/config"
)

// BacktestRequest 回测请求体。
type BacktestRequest struct {
	StrategyID     string               `json:"strategy_id" binding:"required"`
	Symbols        []string             `json:"symbols" binding:"required"`
	Start          time.Time            `json:"start" binding:"required"`
	End            time.Time            `json:"end" binding:"required"`
	InitialCapital float64              `json:"initial_capital"`
	Legs           []backtest.LegConfig `json:"legs,omitempty"`
}

// handleRunBacktest 登记运行并异步执行，立即返回 202。
// 每次运行都有独立的 runner/引擎/账户，互不共享（核心单线程约定）。
func (s *Server) handleRunBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := backtest.Config{
		StrategyID:     req.StrategyID,
		Symbols:        req.Symbols,
		Start:          req.Start,
		End:            req.End,
		InitialCapital: req.InitialCapital,
		Legs:           req.Legs,
	}

	id := "BT-" + uuid.NewString()
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		s.abortError(c, err)
		return
	}

	now := time.Now().UTC()
	if err := s.store.InsertBacktestRun(config.BacktestRunRecord{
		ID:         id,
		StrategyID: cfg.StrategyID,
		Status:     "running",
		ConfigJSON: string(cfgJSON),
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		s.abortError(c, err)
		return
	}

	rs := &runState{id: id, status: "running"}
	s.runsMu.Lock()
	s.runs[id] = rs
	s.runsMu.Unlock()

	go s.executeBacktest(rs, cfg)

	c.JSON(http.StatusAccepted, gin.H{"backtest_id": id, "status": "running"})
}

func (s *Server) executeBacktest(rs *runState, cfg backtest.Config) {
	runner := backtest.NewRunner(s.provider, s.log)
	runner.OnProgress = func(p backtest.Progress) {
		rs.mu.Lock()
		rs.progress = p
		rs.mu.Unlock()
	}

	result, err := runner.Run(context.Background(), cfg)
	if err != nil {
		rs.mu.Lock()
		rs.status = "failed"
		rs.err = err.Error()
		rs.mu.Unlock()
		if dbErr := s.store.UpdateBacktestRun(rs.id, "failed", "", err.Error()); dbErr != nil {
			s.log.Error().Err(dbErr).Str("backtest_id", rs.id).Msg("persist failed run")
		}
		s.log.Error().Err(err).Str("backtest_id", rs.id).Msg("backtest failed")
		return
	}

	metrics := backtest.CalculateMetrics(result)
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		s.log.Error().Err(err).Str("backtest_id", rs.id).Msg("marshal metrics")
		metricsJSON = []byte("{}")
	}

	rs.mu.Lock()
	rs.status = "completed"
	rs.metrics = &metrics
	rs.mu.Unlock()

	if err := s.store.UpdateBacktestRun(rs.id, "completed", string(metricsJSON), ""); err != nil {
		s.log.Error().Err(err).Str("backtest_id", rs.id).Msg("persist completed run")
	}

	if err := s.notifier.Send(fmt.Sprintf(
		"backtest %s (%s) done: return %.2f%%, max drawdown %.2f%%, %d trades",
		rs.id, cfg.StrategyID, metrics.TotalReturn*100, metrics.MaxDrawdownPct, metrics.TradeCount,
	)); err != nil {
		s.log.Warn().Err(err).Msg("backtest notification failed")
	}

	s.log.Info().
		Str("backtest_id", rs.id).
		Float64("total_return", metrics.TotalReturn).
		Int("trades", metrics.TradeCount).
		Msg("backtest completed")
}

func (s *Server) handleGetBacktest(c *gin.Context) {
	id := c.Param("id")
	rec, err := s.store.GetBacktestRun(id)
	if err != nil {
		s.abortError(c, err)
		return
	}

	resp := gin.H{
		"backtest_id": rec.ID,
		"strategy_id": rec.StrategyID,
		"status":      rec.Status,
		"created_at":  rec.CreatedAt,
		"updated_at":  rec.UpdatedAt,
	}
	if rec.MetricsJSON != "" {
		var metrics backtest.Metrics
		if err := json.Unmarshal([]byte(rec.MetricsJSON), &metrics); err == nil {
			resp["metrics"] = metrics
		}
	}
	if rec.Error != "" {
		resp["error"] = rec.Error
	}

	s.runsMu.RLock()
	if rs, ok := s.runs[id]; ok {
		_, progress, _, _ := rs.snapshot()
		resp["progress"] = progress
	}
	s.runsMu.RUnlock()

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListBacktests(c *gin.Context) {
	records, err := s.store.ListBacktestRuns(50)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backtests": records})
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 浏览器侧来源已由 CORS 中间件约束，这里不重复校验
	CheckOrigin: func(*http.Request) bool { return true },
}

const streamInterval = 500 * time.Millisecond

// handleStreamBacktest 以 websocket 周期推送运行进度，
// 运行结束（或连接写失败）后关闭。
func (s *Server) handleStreamBacktest(c *gin.Context) {
	id := c.Param("id")

	s.runsMu.RLock()
	rs, ok := s.runs[id]
	s.runsMu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "backtest not running"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		status, progress, metrics, errMsg := rs.snapshot()
		payload := gin.H{
			"backtest_id": id,
			"status":      status,
			"progress":    progress,
		}
		if metrics != nil {
			payload["metrics"] = metrics
		}
		if errMsg != "" {
			payload["error"] = errMsg
		}

		if err := conn.WriteJSON(payload); err != nil {
			return
		}
		if status != "running" {
			return
		}
		<-ticker.C
	}
}
