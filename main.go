package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlexJ236/Impulso-Digital/cache"
	"github.com/AlexJ236/Impulso-Digital/catalog"
	"github.com/AlexJ236/Impulso-Digital/checkout"
	"github.com/AlexJ236/Impulso-Digital/config"
	"github.com/AlexJ236/Impulso-Digital/display"
	"github.com/AlexJ236/Impulso-Digital/gateway"
	"github.com/AlexJ236/Impulso-Digital/handlers"
	"github.com/AlexJ236/Impulso-Digital/kafka"
	"github.com/AlexJ236/Impulso-Digital/mailer"
	"github.com/AlexJ236/Impulso-Digital/middleware"
	"github.com/AlexJ236/Impulso-Digital/rates"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("storefront", cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	courses, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatal("Failed to load course catalog", zap.Error(err))
	}

	sender, err := mailer.NewSMTPSender(cfg.Mail, logger)
	if err != nil {
		logger.Fatal("Failed to initialize mailer", zap.Error(err))
	}
	if cfg.Mail.User == "" || cfg.Mail.AppPassword == "" {
		logger.Warn("Mail relay credentials missing, notifications will fail")
	}
	if cfg.PayPal.ClientID == "" || cfg.PayPal.ClientSecret == "" {
		logger.Warn("PayPal credentials missing, checkout will fail")
	}

	// Redis only backs the display rate cache; run without it when unset.
	var rateCache display.RateCache
	if cfg.Redis.Host != "" {
		redisClient, err := cache.InitRedis(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Continuing without rate cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			rateCache = cache.NewRateCache(redisClient, cfg.Rates.CacheTTL, logger)
		}
	}

	var events checkout.EventPublisher = kafka.NoopPublisher{}
	if cfg.Kafka.Broker != "" {
		producer, err := kafka.InitProducer(cfg.Kafka, logger)
		if err != nil {
			logger.Warn("Continuing without event publishing", zap.Error(err))
		} else {
			defer producer.Close()
			events = kafka.NewEventPublisher(producer, cfg.Kafka.Topic, logger)
		}
	}

	rateSource := rates.NewSource(cfg.Rates.APIURL, cfg.UpstreamTimeout, logger)
	paypal := gateway.NewPayPal(cfg.PayPal, cfg.UpstreamTimeout, logger)
	checkoutService := checkout.NewService(courses, rateSource, paypal, sender, events, cfg.Mail.Operator, logger)

	orderHandler := handlers.NewOrderHandler(checkoutService, logger)
	courseHandler := handlers.NewCourseHandler(
		courses,
		display.NewEstimator(rateSource, rateCache, logger),
		rates.NewLocator(cfg.Rates.GeoURL, cfg.UpstreamTimeout),
		logger,
	)

	gin.SetMode(gin.ReleaseMode)
	router := handlers.SetupRouter(orderHandler, courseHandler, cfg.StaticDir, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Storefront started", zap.String("port", cfg.Port), zap.String("paypal_api", cfg.PayPal.APIBase))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight payment notifications reach the relay.
	checkoutService.Wait()

	logger.Info("Server exited")
}
