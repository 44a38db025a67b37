package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cashbus/claims"
	"cashbus/claims-service/handlers"
	"cashbus/claims-service/middleware"
	"cashbus/common"
	"cashbus/config"
	"cashbus/email"
	"cashbus/metrics"
	"cashbus/timeline"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load env file: %v", err)
	}

	cfg := config.Load()
	metrics.Register()

	db, err := common.DBConnect(cfg.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := claims.InitializeSchema(db); err != nil {
		log.Fatal("Failed to initialize claims schema:", err)
	}
	if err := timeline.InitializeSchema(db); err != nil {
		log.Fatal("Failed to initialize timeline schema:", err)
	}

	h := handlers.New(
		claims.NewService(db),
		timeline.NewStore(db),
		email.NewSendGridSender(cfg),
		cfg,
	)
	router := setupRouter(h, cfg)

	log.Printf("Claims service starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := router.Group("/api/v1")
	{
		public.POST("/incidents", h.CreateIncident)
		public.GET("/health", h.HealthCheck)
	}

	protected := router.Group("/api/v1")
	protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		protected.POST("/claims", h.CreateClaim)
		protected.GET("/claims/:id", h.GetClaim)
		protected.POST("/claims/:id/send", h.SendInitialLetter)
		protected.POST("/claims/:id/resolve", h.ResolveClaim)
	}

	webhooks := router.Group("/api/v1/webhooks")
	{
		webhooks.POST("/stripe", h.StripeWebhook)
	}

	return router
}
