package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"battle-chat/internal/config"
	"battle-chat/internal/db"
	"battle-chat/internal/gamesession"
	"battle-chat/internal/handlers"
	clog "battle-chat/internal/log"
	"battle-chat/internal/middleware"
	"battle-chat/internal/observability"
	"battle-chat/internal/push"
	"battle-chat/internal/rabbitmq"
	"battle-chat/internal/repositories"
	"battle-chat/internal/telemetry"
	"battle-chat/internal/ws"
)

const serviceName = "battle-chat"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	clog.Init(cfg.Env)

	shutdownTracing, err := telemetry.InitTracing(context.Background(), serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init tracing")
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect db")
	}

	sessionClient := gamesession.NewClient(cfg.AuthBaseURL, cfg.AuthTimeout)
	notifier := push.NewService(push.Config{
		APNSGatewayURL: cfg.APNSGatewayURL,
		APNSTopic:      cfg.APNSTopic,
		FCMGatewayURL:  cfg.FCMGatewayURL,
		FCMAPIKey:      cfg.FCMAPIKey,
	})

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "battlechat.audit", serviceName, cfg.Env)

	userRepo := repositories.NewUserRepo(database)
	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	hub := ws.NewHub()

	userHandler := handlers.NewUserHandler(roomRepo)
	roomHandler := handlers.NewRoomHandler(roomRepo, userRepo, messageRepo, audit)
	messageHandler := handlers.NewMessageHandler(roomRepo, userRepo, messageRepo, notifier, hub, audit, cfg.NotifyTimeout)
	roomWS := ws.NewRoomWebSocketHandler(hub, roomRepo, sessionClient, userRepo)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.Authorize(sessionClient, userRepo)

	router.GET("/user", authMiddleware, userHandler.GetUser)
	router.POST("/room", authMiddleware, roomHandler.CreateRoom)
	router.GET("/room", authMiddleware, roomHandler.ListRooms)
	router.GET("/room/:room_id", authMiddleware, roomHandler.GetRoom)
	router.POST("/room/:room_id/user", authMiddleware, roomHandler.AddUser)
	router.POST("/room/:room_id/message", authMiddleware, messageHandler.PostMessage)

	router.GET("/ws/room/:room_id", roomWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
