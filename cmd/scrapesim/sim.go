package main

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wxshop-dashboard/internal/models"
	"wxshop-dashboard/internal/scrape"
	"wxshop-dashboard/internal/services"
)

const simulatedQR = "https://picsum.photos/seed/wxshop-login/200/200"

var simRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scrapesim_requests_total",
	Help: "Simulator API calls, by endpoint.",
}, []string{"endpoint"})

// wireOrder is the results payload shape of the real scraper, which sends
// amounts as strings.
type wireOrder struct {
	ID           string `json:"id"`
	OrderNumber  string `json:"orderNumber"`
	CustomerName string `json:"customerName"`
	ProductName  string `json:"productName"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
	Date         string `json:"date"`
	Province     string `json:"province"`
}

type startBody struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

// simulator walks one scrape job through INITIALIZING, QR_READY, SCANNING
// and COMPLETED, spending step in each phase.
type simulator struct {
	mu        sync.Mutex
	step      time.Duration
	count     int
	fail      bool
	generator *services.Generator
	now       func() time.Time
	logger    *slog.Logger

	started time.Time
	running bool
	rng     scrape.DateRange
	results []wireOrder
}

func newSimulator(step time.Duration, count int, fail bool, generator *services.Generator, logger *slog.Logger) *simulator {
	return &simulator{
		step:      step,
		count:     count,
		fail:      fail,
		generator: generator,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *simulator) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api/scrape")
	api.POST("/start", s.handleStart)
	api.GET("/status", s.handleStatus)
	api.GET("/results", s.handleResults)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func (s *simulator) handleStart(c *gin.Context) {
	simRequests.WithLabelValues("start").Inc()

	var body startBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dr, err := scrape.ParseDateRange(body.StartDate, body.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.started = s.now()
	s.running = true
	s.rng = dr
	s.results = nil
	s.mu.Unlock()

	s.logger.Info("scrape job started", "range", dr.String())
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *simulator) handleStatus(c *gin.Context) {
	simRequests.WithLabelValues("status").Inc()
	c.JSON(http.StatusOK, s.status())
}

func (s *simulator) handleResults(c *gin.Context) {
	simRequests.WithLabelValues("results").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		c.JSON(http.StatusOK, []wireOrder{})
		return
	}
	c.JSON(http.StatusOK, s.results)
}

func (s *simulator) status() scrape.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return scrape.StatusResponse{Status: scrape.StatusInitializing, Message: "No job running"}
	}

	elapsed := s.now().Sub(s.started)
	switch {
	case elapsed < s.step:
		return scrape.StatusResponse{Status: scrape.StatusInitializing, Message: "Launching browser"}
	case elapsed < 2*s.step:
		return scrape.StatusResponse{Status: scrape.StatusQRReady, QRCode: simulatedQR}
	case elapsed < 3*s.step:
		return scrape.StatusResponse{Status: scrape.StatusScanning, Message: "Downloading orders for " + s.rng.String()}
	case s.fail:
		return scrape.StatusResponse{Status: scrape.StatusError, Error: "Login expired, please scan again"}
	}

	if s.results == nil {
		s.results = s.generate()
		s.logger.Info("scrape job completed", "orders", len(s.results))
	}
	return scrape.StatusResponse{Status: scrape.StatusCompleted, Message: "Done"}
}

func (s *simulator) generate() []wireOrder {
	orders := s.generator.Orders(s.count)
	out := make([]wireOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, toWire(o))
	}
	return out
}

func toWire(o models.Order) wireOrder {
	return wireOrder{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		CustomerName: o.CustomerName,
		ProductName:  o.ProductName,
		Amount:       o.Amount.StringFixed(2),
		Status:       string(o.Status),
		Date:         o.Date.Format(time.RFC3339),
		Province:     o.Region,
	}
}
