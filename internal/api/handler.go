package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"movie-shop/internal/models"
	"movie-shop/internal/payload"
	"movie-shop/internal/service"
	"movie-shop/internal/store"
	"movie-shop/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	maxBodyBytes   = 1 << 20
	pendingShown   = 200
	bodyLogExcerpt = 1000
)

// Pinger is a dependency the readiness check waits on
type Pinger interface {
	Ping(ctx context.Context) error
}

type dependencyCheck struct {
	name string
	dep  Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	reconciler *service.Reconciler
	store      *store.Store
	debugToken string
	polling    bool
	checks     []dependencyCheck
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(reconciler *service.Reconciler, store *store.Store, debugToken string, polling bool) *Handler {
	return &Handler{
		reconciler: reconciler,
		store:      store,
		debugToken: debugToken,
		polling:    polling,
		logger:     util.GetLogger(),
	}
}

// AddReadinessCheck makes /ready also depend on dep
func (h *Handler) AddReadinessCheck(name string, dep Pinger) {
	h.checks = append(h.checks, dependencyCheck{name: name, dep: dep})
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/", h.banner)
	router.POST("/", h.callback("empty or invalid POST body"))
	router.OPTIONS("/", h.options)

	router.GET("/payhero_callback", h.callbackInfo)
	router.POST("/payhero_callback", h.callback("bad request"))
	router.OPTIONS("/payhero_callback", h.options)

	debug := router.Group("/debug")
	{
		debug.GET("/pending", h.pendingIntents)
		debug.POST("/echo", h.echo)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the database and every added
// dependency answer
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := append([]dependencyCheck{{name: "database", dep: h.store}}, h.checks...)
	for _, check := range checks {
		if err := check.dep.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "unavailable",
				"dependency": check.name,
				"error":      err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) banner(c *gin.Context) {
	c.String(http.StatusOK, "MovieBot is running.\nPolling: %t\nPayhero callback (POST): /payhero_callback\n", h.polling)
}

func (h *Handler) callbackInfo(c *gin.Context) {
	c.JSON(http.StatusOK, models.CallbackResponse{Status: true, Message: "Payhero callback endpoint (POST only)"})
}

func (h *Handler) options(c *gin.Context) {
	c.JSON(http.StatusOK, models.CallbackResponse{Status: true, Message: "OK"})
}

// callback extracts the notification body and hands it to the reconciler.
// badRequest is the message returned when no usable body was found.
func (h *Handler) callback(badRequest string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := readBody(c)
		if err != nil {
			h.logger.Warn("Failed to read callback body", zap.String("path", c.FullPath()), zap.Error(err))
			c.JSON(http.StatusBadRequest, models.CallbackResponse{Status: false, Message: badRequest})
			return
		}

		doc, err := payload.Extract(raw)
		if err != nil || doc.IsEmpty() {
			h.logger.Warn("Callback without usable body",
				zap.String("path", c.FullPath()),
				zap.String("body", util.Excerpt(string(raw), bodyLogExcerpt)))
			c.JSON(http.StatusBadRequest, models.CallbackResponse{Status: false, Message: badRequest})
			return
		}

		res, status := h.reconciler.Reconcile(c.Request.Context(), doc)
		c.JSON(status, res.Response)
	}
}

// pendingIntents lists the most recent intents for operators
func (h *Handler) pendingIntents(c *gin.Context) {
	if h.debugToken == "" || c.Query("token") != h.debugToken {
		c.JSON(http.StatusForbidden, gin.H{"status": "forbidden"})
		return
	}

	intents, err := h.store.ListRecentIntents(c.Request.Context(), pendingShown)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list intents",
			"details": err.Error(),
		})
		return
	}

	views := make([]intentView, 0, len(intents))
	for i := range intents {
		views = append(views, newIntentView(&intents[i]))
	}
	c.JSON(http.StatusOK, views)
}

// echo logs a posted JSON body and returns its keys
func (h *Handler) echo(c *gin.Context) {
	raw, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"received": false})
		return
	}
	doc, err := payload.Extract(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"received": false})
		return
	}

	h.logger.Info("Debug echo", zap.String("payload", util.Excerpt(string(raw), 2000)))
	keys := doc.Keys()
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "keys": keys})
}

func readBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	raw, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, err
	}
	return raw, nil
}

type intentView struct {
	ExternalRef string `json:"external_ref"`
	ChatID      int64  `json:"chat_id"`
	Kind        string `json:"kind"`
	ItemID      string `json:"item_id,omitempty"`
	Amount      string `json:"amount"`
	Phone       string `json:"phone"`
	Status      string `json:"status"`
	CheckoutID  string `json:"checkout_id,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	FinalizedAt *int64 `json:"finalized_at,omitempty"`
}

func newIntentView(i *models.Intent) intentView {
	v := intentView{
		ExternalRef: i.ExternalRef,
		ChatID:      i.ChatID,
		Kind:        i.Kind,
		ItemID:      i.ItemID.String,
		Amount:      i.Amount.String(),
		Phone:       i.Phone,
		Status:      i.Status,
		CheckoutID:  i.CheckoutID.String,
		CreatedAt:   i.CreatedAt,
	}
	if i.FinalizedAt.Valid {
		at := i.FinalizedAt.Int64
		v.FinalizedAt = &at
	}
	return v
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
