package handlers

import (
	"context"
	"net/http"

	"github.com/AlexJ236/Impulso-Digital/catalog"
	"github.com/AlexJ236/Impulso-Digital/display"
	"github.com/AlexJ236/Impulso-Digital/middleware"
	"github.com/AlexJ236/Impulso-Digital/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PriceEstimator interface {
	Estimate(ctx context.Context, usd decimal.Decimal, currency string) string
}

type CurrencyLocator interface {
	Currency(ctx context.Context, ip string) (string, error)
}

type CourseHandler struct {
	catalog   *catalog.Catalog
	estimator PriceEstimator
	locator   CurrencyLocator
	logger    *zap.Logger
}

func NewCourseHandler(c *catalog.Catalog, estimator PriceEstimator, locator CurrencyLocator, logger *zap.Logger) *CourseHandler {
	return &CourseHandler{
		catalog:   c,
		estimator: estimator,
		locator:   locator,
		logger:    logger,
	}
}

func (h *CourseHandler) ListCourses(c *gin.Context) {
	_, span := otel.Tracer(tracerName).Start(c.Request.Context(), "ListCourses")
	defer span.End()

	courses := h.catalog.List(c.Query("category"))
	span.SetAttributes(attribute.Int("courses.count", len(courses)))
	c.JSON(http.StatusOK, courses)
}

func (h *CourseHandler) GetCourse(c *gin.Context) {
	_, span := otel.Tracer(tracerName).Start(c.Request.Context(), "GetCourse")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("course.id", id))

	course, ok := h.catalog.Find(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		return
	}

	c.JSON(http.StatusOK, models.CourseDetail{
		Course:  course,
		Related: h.catalog.Related(id),
	})
}

func (h *CourseHandler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Categories())
}

// GetPrice returns the display estimate for a course. Without a currency
// query the caller's IP decides, and any lookup failure means USD.
func (h *CourseHandler) GetPrice(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "GetPrice")
	defer span.End()

	id := c.Param("id")
	course, ok := h.catalog.Find(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		return
	}

	currency := c.Query("currency")
	if currency == "" && h.locator != nil {
		located, err := h.locator.Currency(ctx, c.ClientIP())
		if err != nil {
			h.logger.Debug("Geo lookup failed, showing USD",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.Error(err),
			)
		}
		currency = located
	}
	currency = display.NormalizeCurrency(currency)
	span.SetAttributes(
		attribute.String("course.id", id),
		attribute.String("price.currency", currency),
	)

	c.JSON(http.StatusOK, models.PriceEstimate{
		CourseID: course.ID,
		USD:      course.Price.StringFixed(2),
		Currency: currency,
		Display:  h.estimator.Estimate(ctx, course.Price, currency),
	})
}
