package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"papertrader/broker"
	"papertrader/config"
	"papertrader/market"
	"papertrader/trading"
)

func (s *Server) handleListInstruments(c *gin.Context) {
	records, err := s.store.ListInstruments()
	if err != nil {
		s.abortError(c, err)
		return
	}
	if records == nil {
		records = []config.InstrumentRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"instruments": records})
}

func (s *Server) handleUpsertInstrument(c *gin.Context) {
	var rec config.InstrumentRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if rec.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	rec.Symbol = market.Normalize(rec.Symbol)
	if rec.Exchange == "" {
		rec.Exchange = "NSE"
	}
	if rec.Segment == "" {
		rec.Segment = "EQ"
	}
	if rec.TickSize == 0 {
		rec.TickSize = 0.05
	}

	if err := s.store.UpsertInstrument(rec); err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req trading.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Symbol = market.Normalize(req.Symbol)

	resp := s.trading.SubmitOrder(req)
	c.JSON(http.StatusCreated, resp)
}

// handlePrimaryAccount 账户只读快照；经由交易服务的锁拷贝，
// 不直接碰非并发安全的账户对象。
func (s *Server) handlePrimaryAccount(c *gin.Context) {
	state := s.trading.AccountSnapshot()

	positions := make([]gin.H, 0, len(state.Positions))
	for _, pos := range state.Positions {
		positions = append(positions, gin.H{
			"symbol":    pos.Symbol,
			"quantity":  pos.Quantity,
			"avg_price": pos.AvgPrice,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"cash_balance": state.CashBalance,
		"margin_used":  state.MarginUsed,
		"positions":    positions,
	})
}

// handleWebhook 共享 token 校验后转给交易服务。
// 未配置 token 的来源不做校验（与原实现一致）。
func (s *Server) handleWebhook(c *gin.Context) {
	source := c.Param("source")

	if expected := s.settings.WebhookTokens[source]; expected != "" {
		if c.GetHeader("X-Webhook-Token") != expected {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := s.trading.IngestWebhook(source, payload)
	c.JSON(http.StatusAccepted, gin.H{
		"status":      "accepted",
		"received_at": event.ReceivedAt,
	})
}

func (s *Server) handleBrokerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.brokers.ConnectionStatus(broker.DefaultBroker))
}

// handleGetBrokerCredentials 只回元数据，敏感字段不出库。
func (s *Server) handleGetBrokerCredentials(c *gin.Context) {
	creds, updatedAt, err := s.brokers.Load(broker.DefaultBroker)
	if errors.Is(err, broker.ErrNoCredentials) {
		c.JSON(http.StatusNotFound, gin.H{"error": "broker credentials not configured"})
		return
	}
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"api_key":         creds.APIKey,
		"client_code":     creds.ClientCode,
		"has_auth_token":  creds.AuthToken != "",
		"has_totp_secret": creds.TOTPSecret != "",
		"updated_at":      updatedAt,
	})
}

func (s *Server) handleSaveBrokerCredentials(c *gin.Context) {
	var creds broker.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if creds.APIKey == "" || creds.ClientCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_key and client_code are required"})
		return
	}
	if err := s.brokers.Save(broker.DefaultBroker, creds); err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"api_key":         creds.APIKey,
		"client_code":     creds.ClientCode,
		"has_auth_token":  creds.AuthToken != "",
		"has_totp_secret": creds.TOTPSecret != "",
	})
}

func (s *Server) handleBrokerTOTP(c *gin.Context) {
	code, err := s.brokers.TOTPNow(broker.DefaultBroker)
	if errors.Is(err, broker.ErrNoCredentials) {
		c.JSON(http.StatusNotFound, gin.H{"error": "broker credentials not configured"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}
