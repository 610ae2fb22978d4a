package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/contest-api/internal/config"
	"github.com/yourusername/contest-api/internal/handler"
	"github.com/yourusername/contest-api/internal/middleware"
	pgRepo "github.com/yourusername/contest-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/contest-api/internal/repository/redis"
	"github.com/yourusername/contest-api/internal/service"
	ws "github.com/yourusername/contest-api/internal/websocket"
	"github.com/yourusername/contest-api/pkg/auth"
	"github.com/yourusername/contest-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	userRepo := pgRepo.NewUserRepo(db)
	participantRepo := pgRepo.NewParticipantRepo(db)
	ratingRepo := pgRepo.NewRatingRepo(db)
	ratingHistoryRepo := pgRepo.NewRatingHistoryRepo(db)
	likeRepo := pgRepo.NewLikeRepo(db)
	reasonConfigRepo := pgRepo.NewReasonConfigRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Инициализируем JWT
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Инициализируем WebSocket
	wsHub := ws.NewHub()
	go wsHub.Run()
	wsManager := ws.NewManager(wsHub)

	// Почтовые уведомления: без ключа API работает заглушка
	var notifier service.RejectionNotifier = &service.NoopNotifier{}
	if cfg.Email.Enabled {
		resendNotifier, err := service.NewResendNotifier(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize email notifier: %v", err)
			os.Exit(1)
		}
		notifier = resendNotifier
	}

	// Инициализируем сервисы
	userService := service.NewUserService(userRepo, jwtService)
	ratingService := service.NewRatingService(ratingRepo, participantRepo, cacheRepo, wsManager, service.RatingConfig{
		MinValue: cfg.Voting.RatingMin,
		MaxValue: cfg.Voting.RatingMax,
		CacheTTL: time.Hour,
	})
	statusService := service.NewStatusService(participantRepo, userRepo, reasonConfigRepo, notifier, service.StatusConfig{
		ResubmitThreshold: cfg.Voting.ResubmitThreshold(),
		DisplayTimezone:   cfg.Voting.DisplayTimezone,
	})
	activityService := service.NewActivityService(ratingHistoryRepo, ratingRepo, participantRepo, userRepo, likeRepo)
	votingSessions := service.NewVotingSessionService(ratingService, wsManager, cfg.Voting.ThankYouDelay())

	// Карточки голосования живут вместе с WebSocket-сессией
	handler.RegisterVotingHandlers(wsManager, votingSessions)
	wsHub.SetDisconnectHandler(votingSessions.CloseSession)

	// Инициализируем обработчики
	authHandler := handler.NewAuthHandler(userService)
	ratingHandler := handler.NewRatingHandler(ratingService)
	participantHandler := handler.NewParticipantHandler(participantRepo, statusService, activityService)
	wsHandler := handler.NewWSHandler(wsHub, wsManager, jwtService)

	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	isProduction := gin.Mode() == gin.ReleaseMode

	// Инициализируем роутер Gin
	router := gin.Default()

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Аутентификация
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", rateLimiter.Limit(middleware.AuthRateLimitConfig()), authHandler.Register)
			authGroup.POST("/login", rateLimiter.Limit(middleware.AuthRateLimitConfig()), authHandler.Login)
			authGroup.GET("/me", authMiddleware.RequireAuth(), authHandler.Me)
		}

		// Участницы: витрина доступна анонимно, подача анкеты требует входа
		participants := api.Group("/participants")
		{
			participants.GET("", participantHandler.ListCurrent)
			participants.POST("", authMiddleware.RequireAuth(), participantHandler.Create)

			withID := participants.Group("/:participant_id")
			withID.Use(middleware.ExtractUintParam("participant_id", "participant_id"))
			{
				// Карточка голосования: аноним видит агрегат, но не свою оценку
				withID.GET("/voting", authMiddleware.OptionalAuth(), ratingHandler.GetVotingSurface)
				withID.POST("/rate",
					authMiddleware.RequireAuth(),
					rateLimiter.Limit(middleware.VoteRateLimitConfig()),
					ratingHandler.Rate,
				)
			}
		}

		// Итоги недель (публичный маршрут)
		api.GET("/weeks/:week/leaderboard", participantHandler.GetLeaderboard)

		// Админские маршруты
		admin := api.Group("/admin")
		admin.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
		{
			admin.GET("/rejection-reasons", participantHandler.GetRejectionReasons)
			admin.PUT("/rejection-reasons", participantHandler.UpdateRejectionReasons)
			admin.POST("/weeks/:week/conclude", participantHandler.ConcludeWeek)

			adminParticipants := admin.Group("/participants/:participant_id")
			adminParticipants.Use(middleware.ExtractUintParam("participant_id", "participant_id"))
			{
				adminParticipants.PUT("/status", participantHandler.SetStatus)
				adminParticipants.GET("/status-history", participantHandler.GetStatusHistory)
				adminParticipants.GET("/voters", participantHandler.GetVoters)
				adminParticipants.GET("/voters/export", participantHandler.ExportVoters)
				adminParticipants.GET("/voters/:voter_id/activity",
					middleware.ExtractUintParam("voter_id", "voter_id"),
					participantHandler.GetVoterActivity,
				)
				adminParticipants.DELETE("", participantHandler.SoftDelete)
				adminParticipants.POST("/restore", participantHandler.Restore)
			}
		}
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	// Ждем сигнал остановки
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	wsHub.Stop()

	// Graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	log.Println("Server exited properly")
}
