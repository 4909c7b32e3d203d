package main

import (
	"log"
	"os"

	v1 "github.com/ikus060/udb/api/v1"
	"github.com/ikus060/udb/internal/auth"
	"github.com/ikus060/udb/internal/cache"
	"github.com/ikus060/udb/internal/config"
	"github.com/ikus060/udb/internal/db"
	"github.com/ikus060/udb/internal/deploy"
	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/notification"
	"github.com/ikus060/udb/internal/rule"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. Load configuration
	var cfg *config.Config
	var err error
	if iniPath := os.Getenv("UDB_CONFIG"); iniPath != "" {
		cfg, err = config.LoadFromINI(iniPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("✓ Configuration loaded")

	auth.InitJWT(cfg.JWT.Secret)

	logger := logrus.NewEntry(logrus.StandardLogger())

	// 2. Initialize database
	if err := db.Open(cfg.Database.Driver, cfg.Database.DSN); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if cfg.Migrate {
		if err := db.Migrate(db.DB, cfg.AdminUser, cfg.AdminPass); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		if err := rule.Seed(db.DB); err != nil {
			log.Fatalf("Failed to seed builtin rules: %v", err)
		}
	}

	// 3. Initialize Redis (optional, used for the notification lock)
	if cfg.Redis.Enabled {
		if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			log.Fatalf("Failed to initialize Redis: %v", err)
		}
		defer cache.Close()
	}

	// 4. Wire the engine and background workers
	rules := rule.NewEngine(db.DB, logger)
	store := engine.NewStore(db.DB, rules, logger)

	if cfg.Notification.Enabled {
		dispatcher := notification.NewDispatcher(&notification.Config{
			DB:          db.DB,
			Mailer:      notification.NewSMTPMailer(cfg.SMTP),
			Redis:       cache.Client,
			Logger:      logger,
			IntervalSec: cfg.Notification.IntervalSec,
			Catchall:    cfg.SMTP.Catchall,
			BaseURL:     cfg.ExternalURL,
		})
		store.SetNotifier(dispatcher)
		dispatcher.Start()
		defer dispatcher.Stop()
	}

	runner := deploy.NewRunner(&deploy.Config{
		DB:          db.DB,
		Logger:      logger,
		IntervalSec: cfg.Deployment.IntervalSec,
		TimeoutSec:  cfg.Deployment.TimeoutSec,
		BaseURL:     cfg.ExternalURL,
	})
	runner.Start()
	defer runner.Stop()

	// 5. Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	v1.SetupRouter(r, db.DB, cfg, &v1.Services{
		Store:      store,
		Rules:      rules,
		Deployment: deploy.NewService(db.DB),
	})

	log.Printf("✓ Server starting on %s", cfg.HTTPAddr)

	// Start server
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
