package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"battle/internal/config"
	"battle/internal/database"
	"battle/internal/handlers"
	"battle/internal/llm"
	"battle/internal/middleware"
	"battle/internal/monitoring"
	"battle/internal/repository"
	"battle/internal/scripting"
	"battle/internal/service"
	"battle/internal/utils"
)

// Version du service (à définir lors du build)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Initialisation du logger
	initLogger()

	logrus.WithFields(logrus.Fields{
		"service":    "battle",
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("⚔️  Starting Battle Service...")

	// Chargement de la configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatal("Failed to load config: ", err)
	}

	// Connexion à la base de données
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logrus.Fatal("Failed to connect to database: ", err)
	}
	defer db.Close()

	// Exécution des migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.Fatal("Failed to run migrations: ", err)
	}

	// Initialisation des repositories
	userRepo := repository.NewUserRepository(db)
	attackRepo := repository.NewAttackRepository(db)
	battleRepo := repository.NewBattleRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	gameConfigRepo := repository.NewGameConfigRepository(db)

	// Initialisation des services utilitaires
	rng := utils.NewSecureRNG()
	calculator := service.NewCalculator(rng)
	runtime := scripting.NewRuntime(calculator, cfg.Scripting.WallClockBudget, cfg.Scripting.StepBudget)
	llmClient := llm.NewClient(cfg.LLM)

	// Initialisation des services principaux
	pipeline := service.NewPipeline(calculator, runtime, rng)
	statsService := service.NewStatsService(statsRepo, battleRepo, userRepo, cfg.Game)
	battleService := service.NewBattleService(battleRepo, userRepo, attackRepo, pipeline, statsService, calculator, cfg.Game)
	userService := service.NewUserService(userRepo, attackRepo, cfg.JWT, cfg.Game)
	attackService := service.NewAttackService(attackRepo, statsRepo, userRepo)
	generationService := service.NewGenerationService(userRepo, attackRepo, gameConfigRepo, llmClient)

	// Initialisation des handlers
	authHandler := handlers.NewAuthHandler(userService, cfg.JWT)
	userHandler := handlers.NewUserHandler(userService)
	attackHandler := handlers.NewAttackHandler(attackService, generationService)
	battleHandler := handlers.NewBattleHandler(battleService)
	adminHandler := handlers.NewAdminHandler(statsService, gameConfigRepo)
	healthChecker := monitoring.NewHealthChecker(db, Version)

	// Configuration du mode Gin
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Configuration des routes
	router := setupRoutes(authHandler, userHandler, attackHandler, battleHandler, adminHandler, healthChecker, cfg)

	// Configuration du serveur HTTP
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Démarrage du serveur en arrière-plan
	go func() {
		logrus.WithFields(logrus.Fields{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
			"env":  cfg.Server.Environment,
		}).Info("⚔️  Battle Service started successfully")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Gestion gracieuse de l'arrêt
	gracefulShutdown(server)
}

// setupRoutes configure toutes les routes du service Battle
func setupRoutes(
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	attackHandler *handlers.AttackHandler,
	battleHandler *handlers.BattleHandler,
	adminHandler *handlers.AdminHandler,
	healthChecker *monitoring.HealthChecker,
	cfg *config.Config,
) *gin.Engine {
	router := gin.New()

	// Middleware globaux
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.PrometheusMetrics())

	// Rate limiting global si configuré
	if cfg.RateLimit.RequestsPerMinute > 0 {
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}

	// Routes de santé et monitoring (sans auth)
	router.GET("/health", healthChecker.HealthCheck)
	router.GET("/health/live", healthChecker.LivenessCheck)
	router.GET("/health/ready", healthChecker.ReadinessCheck)
	router.GET("/metrics", gin.WrapH(monitoring.MetricsHandler()))

	// Authentification (sans auth, rate limitée)
	auth := router.Group("/auth")
	auth.Use(middleware.AuthRateLimit(10))
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
	}

	// Routes protégées (authentification JWT requise)
	protected := router.Group("/")
	protected.Use(middleware.AuthMiddleware(cfg))
	{
		// Profil et stats
		users := protected.Group("/users")
		{
			users.GET("", userHandler.ListUsers)
			users.GET("/me", userHandler.GetMe)
			users.GET("/me/stats", userHandler.GetStats)
			users.PATCH("/me/stats", userHandler.UpdateStats)
			users.PATCH("/me/profile", userHandler.UpdateProfile)
			users.GET("/me/attacks", userHandler.GetMyAttacks)
			users.GET("/me/attacks/selected", userHandler.GetSelectedAttacks)
			users.PUT("/me/attacks/selected", userHandler.SelectAttacks)
		}

		// Attaques
		attacks := protected.Group("/attacks")
		{
			attacks.GET("", attackHandler.ListAttacks)
			attacks.GET("/:id", attackHandler.GetAttack)
			attacks.DELETE("/:id", attackHandler.UnlinkAttack)
			attacks.POST("/generate", attackHandler.GenerateAttacks)
		}

		// Batailles
		battles := protected.Group("/battles")
		battles.Use(middleware.BattleActionRateLimit(60))
		{
			battles.POST("", battleHandler.Initiate)
			battles.GET("", battleHandler.ListBattles)
			battles.GET("/active", battleHandler.GetActiveBattle)
			battles.GET("/requests", battleHandler.ListRequests)
			battles.GET("/:id", battleHandler.GetBattle)
			battles.POST("/:id/accept", battleHandler.Accept)
			battles.POST("/:id/decline", battleHandler.Decline)
			battles.DELETE("/:id", battleHandler.Cancel)
			battles.POST("/:id/concede", battleHandler.Concede)
			battles.POST("/:id/action", battleHandler.UseAttack)
		}

		// Classement
		protected.GET("/leaderboard/users", userHandler.Leaderboard)
		protected.GET("/leaderboard/attacks", attackHandler.Leaderboard)

		// Routes admin
		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.POST("/stats/recalculate", adminHandler.RecalculateStats)
			admin.GET("/game-configuration", adminHandler.GetGameConfiguration)
			admin.PATCH("/game-configuration", adminHandler.UpdateGenerationCost)
		}
	}

	return router
}

// initLogger initialise le système de logging
func initLogger() {
	if os.Getenv("SERVER_ENVIRONMENT") == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	}

	logrus.SetOutput(os.Stdout)
}

// gracefulShutdown gère l'arrêt gracieux du service
func gracefulShutdown(server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logrus.Info("⚔️  Battle Service is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Fatal("Server forced to shutdown: ", err)
	}

	logrus.Info("⚔️  Battle Service stopped gracefully")
}
