package simulator

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const requestIDHeader = "X-Request-ID"

type setStrategyRequest struct {
	Strategy  string `json:"strategy"`
	Decorator string `json:"decorator"`
}

// Router 返回模拟服务的 HTTP 路由：
//
//	GET  /api/trades
//	GET  /api/strategy
//	POST /api/strategy
//	POST /sim/offline?value=true|false
func (s *Simulator) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.Use(corsHeaders, s.availability)
	api.OPTIONS("/trades", noContent)
	api.OPTIONS("/strategy", noContent)
	api.GET("/trades", noCache, s.handleTrades)
	api.GET("/strategy", s.handleGetStrategy)
	api.POST("/strategy", s.handleSetStrategy)

	r.POST("/sim/offline", s.handleOffline)
	return r
}

// corsHeaders 与原服务一致：允许任意来源的浏览器直接访问
func corsHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type,Authorization")
	if id := c.GetHeader(requestIDHeader); id != "" {
		c.Header(requestIDHeader, id)
	}
	c.Next()
}

func noCache(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Next()
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (s *Simulator) availability(c *gin.Context) {
	if c.Request.Method != http.MethodOptions && s.Offline() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "simulated outage"})
		return
	}
	c.Next()
}

func (s *Simulator) handleTrades(c *gin.Context) {
	rows := s.Rows()
	if rows == nil {
		rows = []Row{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Simulator) handleGetStrategy(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"name": s.StrategyName()})
}

func (s *Simulator) handleSetStrategy(c *gin.Context) {
	var req setStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := s.Configure(req.Strategy, req.Decorator)
	c.JSON(http.StatusOK, gin.H{"status": "updated", "name": name})
}

func (s *Simulator) handleOffline(c *gin.Context) {
	v, err := strconv.ParseBool(c.DefaultQuery("value", "true"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.SetOffline(v)
	c.JSON(http.StatusOK, gin.H{"offline": v})
}
