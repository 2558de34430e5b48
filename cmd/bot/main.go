package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mediahub/internal/config"
	"mediahub/internal/domain"
	hubredis "mediahub/internal/redis"
	"mediahub/internal/repository"
	"mediahub/internal/services"
	"mediahub/internal/telegram"
	"mediahub/pkg/database"
	"mediahub/pkg/logger"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	mode := logger.DevelopmentMode
	if cfg.Server.Environment == "production" {
		mode = logger.ProductionMode
	}
	log := logger.New(mode)
	defer log.Logger.Sync()
	logger.SetGlobalLogger(log)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Errorf("database connection failed: %v", err)
		return
	}
	if err := database.Migrate(db); err != nil {
		log.Errorf("database migration failed: %v", err)
		return
	}

	redisClient := hubredis.NewClient(hubredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := hubredis.Ping(rootCtx, redisClient); err != nil {
		log.Errorf("redis connection failed: %v", err)
		return
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.Errorf("bot authorization failed: %v", err)
		return
	}
	log.Infof("authorized as @%s", bot.Self.UserName)

	// Stores.
	pacer := hubredis.NewRateLimiter(redisClient, hubredis.RateLimitConfig{GlobalLimit: cfg.Engine.GlobalRateLimit})
	cache := hubredis.NewEngineCache(redisClient, hubredis.DefaultCacheConfig())
	albumBuffer := hubredis.NewAlbumBuffer(redisClient)

	// Repositories.
	chatRepo := repository.NewChatRepository(db)
	sendLogRepo := repository.NewSendLogRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	aliasRepo := repository.NewAliasRepository(db)
	restrictionRepo := repository.NewRestrictionRepository(db)
	configRepo := repository.NewConfigRepository(db)

	// Services.
	client := telegram.NewBotClient(bot)
	queue := services.NewTaskQueue(cfg.Engine.QueueSize)
	aliasService := services.NewAliasService(aliasRepo, cache, cfg.Engine.AliasSalt)
	moderation := services.NewModerationService(restrictionRepo, cache, log)
	entitlement := services.NewEntitlementService(chatRepo, subRepo, cache, log, cfg.Billing.TrialDays, cfg.Billing.AdminUserIDs)
	distributor := services.NewDistributor(chatRepo, sendLogRepo, configRepo, entitlement, aliasService, cache, pacer, client, queue, log)
	sender := services.NewSender(queue, client, pacer, chatRepo, sendLogRepo, cfg.Engine.WorkerCount, log)
	normalizer := services.NewNormalizer(bot.Self.ID)
	deduper := services.NewDeduper(cache)

	var engine *services.Engine
	collector := services.NewAlbumCollector(albumBuffer, func(ctx context.Context, album domain.NormalizedMessage) {
		engine.AcceptAlbum(ctx, album)
	}, log)
	engine = services.NewEngine(normalizer, deduper, collector, distributor, moderation, chatRepo, queue, log)

	janitor := services.NewJanitor(sendLogRepo, subRepo, cache, client, cfg.Billing.TrialDays, log)
	if err := janitor.Start(rootCtx); err != nil {
		log.Errorf("janitor start failed: %v", err)
		return
	}
	defer janitor.Stop()

	// Workers and the album flusher outlive ingest so the queue can drain
	// during shutdown.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go sender.Run(workerCtx)
	go collector.Run(workerCtx)

	go pingDatabase(rootCtx, db, engine, log)
	go serveHealth(cfg.Server.Port, engine, log)

	runUpdateLoop(rootCtx, bot, engine, log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	engine.Shutdown(shutdownCtx)
	cancelWorkers()
	log.Infof("shutdown complete")
}

// runUpdateLoop long-polls the platform and feeds the engine until the
// context is canceled.
func runUpdateLoop(ctx context.Context, bot *tgbotapi.BotAPI, engine *services.Engine, log *logger.Logger) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	log.Infof("listening for updates")
	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			updateCtx := logger.WithUpdateID(ctx, int64(update.UpdateID))
			engine.HandleUpdate(updateCtx, update)
		}
	}
}

// pingDatabase flips the engine health gate with the durable store's
// reachability.
func pingDatabase(ctx context.Context, db *gorm.DB, engine *services.Engine, log *logger.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sqlDB, err := db.DB()
			if err != nil {
				engine.SetHealthy(false)
				continue
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = sqlDB.PingContext(pingCtx)
			cancel()
			if err != nil {
				log.Warnf("database ping failed: %v", err)
			}
			engine.SetHealthy(err == nil)
		}
	}
}

// serveHealth exposes liveness and readiness probes.
func serveHealth(port string, engine *services.Engine, log *logger.Logger) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		if !engine.Healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if err := router.Run(":" + port); err != nil {
		log.Errorf("health server stopped: %v", err)
	}
}
