package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"fieldmap-realtime/internal/auth"
	"fieldmap-realtime/internal/config"
	"fieldmap-realtime/internal/db"
	"fieldmap-realtime/internal/handlers"
	"fieldmap-realtime/internal/middleware"
	"fieldmap-realtime/internal/observability"
	"fieldmap-realtime/internal/rabbitmq"
	"fieldmap-realtime/internal/registry"
	"fieldmap-realtime/internal/repositories"
	"fieldmap-realtime/internal/telemetry"
	"fieldmap-realtime/internal/ws"
)

func main() {
	cfg := config.Load()

	shutdownTracing, err := observability.InitTracing(context.Background(), "fieldmap-realtime", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	reg, err := registry.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer reg.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	emitter := telemetry.NewAuditEmitter(publisher, "audit.realtime", "fieldmap-realtime", cfg.Environment)

	if cfg.AMQPURL != "" {
		if wsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err == nil {
			observability.SetPublisher(wsPublisher)
			defer wsPublisher.Close()
		} else {
			log.Printf("ws event publisher disabled: %v", err)
		}
	}

	userRepo := repositories.NewUserRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	auditRepo := repositories.NewAuditRepo(database)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	hub := ws.NewHub()
	gateway := ws.NewGateway(hub, reg, verifier, userRepo)

	messageHandler := handlers.NewMessageHandler(messageRepo, userRepo, auditRepo, emitter, hub)
	keyHandler := handlers.NewKeyHandler(userRepo)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("fieldmap-realtime"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier, userRepo)

	router.POST("/api/messages", authMiddleware, messageHandler.Send)
	router.GET("/api/messages/conversation", authMiddleware, messageHandler.GetConversation)
	router.GET("/api/messages/conversations", authMiddleware, messageHandler.ListConversations)
	router.POST("/api/messages/read", authMiddleware, messageHandler.MarkRead)
	router.GET("/api/messages/unread-count", authMiddleware, messageHandler.UnreadCount)
	router.GET("/api/users", authMiddleware, messageHandler.ListUsers)

	router.PUT("/api/auth/public-key", authMiddleware, keyHandler.SetPublicKey)
	router.GET("/api/auth/public-key/:user_id", authMiddleware, keyHandler.GetPublicKey)

	router.GET("/ws", gateway.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, emitter, cfg.Debug)

	log.Printf("fieldmap-realtime listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
