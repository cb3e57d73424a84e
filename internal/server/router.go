// Package server exposes the symptom checker over HTTP.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/symptomchecker/internal/checker"
	"github.com/Skufu/symptomchecker/internal/history"
	"github.com/Skufu/symptomchecker/internal/logging"
	"github.com/Skufu/symptomchecker/internal/schema"
)

//go:embed templates/*.html
var templatesFS embed.FS

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

type Options struct {
	Checker *checker.Checker
	// DB and History are nil when prediction history is disabled.
	DB           HealthChecker
	History      HistoryReader
	Logger       *zap.Logger
	MaxBodyBytes int64
	AllowOrigins []string
}

type handlers struct {
	checker *checker.Checker
	db      HealthChecker
	history HistoryReader
	log     *zap.Logger
}

// page is the data rendered into index.html.
type page struct {
	Symptoms       []string
	Selected       []string
	PredictionText string
	Error          string
}

func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Checker == nil {
		return nil, errors.New("server: checker is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if len(opts.AllowOrigins) == 0 {
		opts.AllowOrigins = []string{"*"}
	}

	tmpl, err := template.New("").
		Funcs(template.FuncMap{"display": schema.DisplayName}).
		ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	h := &handlers{checker: opts.Checker, db: opts.DB, history: opts.History, log: log}

	router := gin.New()
	router.Use(
		logging.Middleware(log),
		gin.Recovery(),
		limitBodySize(opts.MaxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins: opts.AllowOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization", logging.RequestIDHeader},
			MaxAge:       12 * time.Hour,
		}),
	)
	router.SetHTMLTemplate(tmpl)

	router.GET("/", h.home)
	router.POST("/add_symptom", h.addSymptom)
	router.POST("/predict", h.predict)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", h.ready)

	api := router.Group("/api")
	api.GET("/symptoms", h.apiSymptoms)
	api.POST("/predict", h.apiPredict)
	api.GET("/history", h.apiHistory)

	return router, nil
}

func (h *handlers) ready(c *gin.Context) {
	s := h.checker.Schema()
	model := gin.H{
		"features":     s.Len(),
		"schemaSource": h.checker.SchemaSource(),
		"fingerprint":  s.Fingerprint(),
	}
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "model": model, "db": "disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"model":  model,
			"db":     fmt.Sprintf("unhealthy: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "model": model, "db": "ok"})
}

func (h *handlers) apiHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	records, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		logging.RequestLogger(c, h.log).Error("history query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": records})
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
