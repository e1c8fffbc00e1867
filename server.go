package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/zawbuild/sitebooks_backend/config"
	"github.com/zawbuild/sitebooks_backend/models"
	"github.com/zawbuild/sitebooks_backend/utils"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("sitebooks-ledger")

// Thin transport plumbing: handlers bind input and delegate to the
// ledger operations in models. No variance math, no rollup writes, no
// auth happens here.

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-Id", "X-Correlation-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(requestContext())

	router.GET("/health", func(c *gin.Context) {
		if config.GetDB() == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	registerRoutes(router)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	// Connect AFTER the server is listening so health checks pass while
	// the DB retries.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}

// requestContext attaches the caller identity and a correlation id.
// Authentication itself happens upstream; the ledger only consumes an
// identity for recorded_by.
func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if userId, err := strconv.Atoi(c.GetHeader("X-User-Id")); err == nil && userId > 0 {
			ctx = utils.SetUserIdInContext(ctx, userId)
		}

		correlationId := c.GetHeader("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func registerRoutes(router *gin.Engine) {
	router.POST("/sites", createSiteHandler)
	router.GET("/sites/:id/rollup", siteRollupHandler)

	router.POST("/categories", createCategoryHandler)
	router.GET("/categories", listCategoriesHandler)

	router.POST("/estimates", createEstimateHandler)
	router.GET("/estimates/:id/rollup", estimateRollupHandler)
	router.PUT("/estimates/:id/status", estimateStatusHandler)
	router.GET("/estimates/:id/line-items", listLineItemsHandler)

	router.POST("/line-items", createLineItemHandler)
	router.PUT("/line-items/:id", updateLineItemHandler)
	router.DELETE("/line-items/:id", deleteLineItemHandler)
	router.GET("/line-items/:id/variance", itemVarianceHandler)

	router.POST("/line-items/:id/actuals", recordActualHandler)
	router.GET("/line-items/:id/actuals", listActualsHandler)
	router.PUT("/actuals/:id", updateActualHandler)
	router.DELETE("/actuals/:id", deleteActualHandler)
}

func createSiteHandler(c *gin.Context) {
	var input models.NewSite
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	site, err := models.CreateSite(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, site)
}

func siteRollupHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	rollup, err := models.GetSiteRollup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rollup)
}

func createCategoryHandler(c *gin.Context) {
	var input models.NewCategory
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	category, err := models.CreateCategory(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func listCategoriesHandler(c *gin.Context) {
	categories, err := models.GetCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func createEstimateHandler(c *gin.Context) {
	var input models.NewEstimate
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	estimate, err := models.CreateEstimate(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, estimate)
}

func estimateRollupHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	rollup, err := models.GetEstimateRollup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rollup)
}

func estimateStatusHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input struct {
		Status models.EstimateStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	estimate, err := models.UpdateEstimateStatus(c.Request.Context(), id, input.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, estimate)
}

func listLineItemsHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	items, err := models.GetLineItems(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func createLineItemHandler(c *gin.Context) {
	var input models.NewLineItem
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	item, err := models.CreateLineItem(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func updateLineItemHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewLineItem
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	item, err := models.UpdateLineItem(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func deleteLineItemHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	cascade := c.Query("cascade") == "true"
	item, err := models.DeleteLineItem(c.Request.Context(), id, cascade)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func itemVarianceHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ctx, span := tracer.Start(c.Request.Context(), "GetItemVariance")
	defer span.End()
	variance, err := models.GetItemVariance(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, variance)
}

func recordActualHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewActualEntry
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	entry, err := models.RecordActual(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func listActualsHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	entries, err := models.GetActualEntries(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func updateActualHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.UpdateActualEntryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	entry, err := models.UpdateActual(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func deleteActualHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	entry, err := models.DeleteActual(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// bindError turns validator tag failures into a per-field map; other
// bind failures (malformed JSON, wrong types) keep the raw message.
func bindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(validationErrors)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrSiteNotFound),
		errors.Is(err, models.ErrEstimateNotFound),
		errors.Is(err, models.ErrCategoryNotFound),
		errors.Is(err, models.ErrItemNotFound),
		errors.Is(err, models.ErrActualNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidPrice),
		errors.Is(err, models.ErrInvalidStatusChange):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrHasDependentActuals),
		errors.Is(err, models.ErrConcurrentModification):
		status = http.StatusConflict
	case errors.Is(err, models.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		config.LogError(config.GetLogger(), "server.go", "respondError", c.FullPath(), nil, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
