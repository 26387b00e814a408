package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/aws"
	"checkout-service/controllers"
	"checkout-service/database"
	"checkout-service/kafka"
	"checkout-service/logger"
	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/repository"
	"checkout-service/routes"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	db, err := database.ConnectPostgres(cfg.Postgres,
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.InventoryRecord{},
	)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic)
	defer producer.Close() //nolint:errcheck

	// SNS is best-effort: a missing AWS config disables it rather than
	// blocking startup.
	var snsClient aws.SNSPublisher
	if awsCfg, awsErr := aws.LoadAWSConfig(context.Background()); awsErr != nil {
		zapLogger.Warn("AWS config unavailable, SNS disabled", zap.Error(awsErr))
	} else {
		snsClient = aws.NewSNSClient(awsCfg)
	}

	cartRepo := repository.NewRedisCartRepository(redisClient, cfg.CartTTL)
	orderRepo := repository.NewGormOrderRepository(db)
	inventoryRepo := repository.NewGormInventoryRepository(db)
	catalog := services.NewHTTPCatalogClient(cfg.CatalogServiceURL)

	cartService := services.NewCartService(cartRepo, catalog, zapLogger)
	checkoutService := services.NewCheckoutService(cartRepo, orderRepo, catalog, producer, snsClient, cfg.OrderSNSTopicARN, zapLogger)
	orderService := services.NewOrderService(orderRepo, producer, snsClient, cfg.OrderSNSTopicARN, zapLogger)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	paymentConsumer := services.NewPaymentConsumer(cfg.KafkaBrokers, cfg.PaymentTopic, cfg.PaymentGroupID, orderService, zapLogger)
	go paymentConsumer.Start(consumerCtx)

	cartController := controllers.NewCartController(cartService)
	checkoutController := controllers.NewCheckoutController(checkoutService)
	orderController := controllers.NewOrderController(orderService)
	inventoryController := controllers.NewInventoryController(inventoryRepo)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(zapLogger))

	// 30-second request timeout
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "checkout-service"})
	})

	routes.Register(r, cfg.JWTSecret, cartController, checkoutController, orderController, inventoryController)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	zapLogger.Info("Checkout service started", zap.String("port", cfg.Port))
	<-quit
	zapLogger.Info("Shutting down checkout service...")

	stopConsumer()
	paymentConsumer.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exited cleanly")
}
