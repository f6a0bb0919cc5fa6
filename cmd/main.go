package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"civictrack/backend/internal/api/handler"
	"civictrack/backend/internal/authority"
	"civictrack/backend/internal/dispatch"
	"civictrack/backend/internal/ledger"
	"civictrack/backend/internal/lifecycle"
	"civictrack/backend/internal/models"
	"civictrack/backend/internal/notifyhub"
	"civictrack/backend/internal/storage"
	"civictrack/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupDependencies() (*gorm.DB, *redis.Client) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		envOr("DB_HOST", "localhost"),
		envOr("DB_USER", "user"),
		envOr("DB_PASSWORD", "password"),
		envOr("DB_NAME", "civictrackdb"),
		envOr("DB_PORT", "5432"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Complaint{},
		&models.Vote{},
		&models.Authority{},
		&models.Notification{},
		&models.EventOutbox{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting CivicTrack Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	db, rdb := setupDependencies()
	s := storage.NewService(db, rdb)

	var tg dispatch.TelegramPusher
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		notifier, err := telegram.NewNotifier(token)
		if err != nil {
			log.Fatalf("Failed to start telegram notifier: %v", err)
		}
		tg = notifier
	}

	// Transitions land in the event outbox in the same transaction that
	// commits them; the dispatcher relays those rows serially.
	hub := notifyhub.NewManagerService(s)
	dispatcher := dispatch.NewDispatcher(s, tg)
	ledgerSvc := ledger.NewService(s)
	lifecycleSvc := lifecycle.NewService(s, dispatcher)
	resolver := authority.NewResolver(s)

	go hub.Run()
	go dispatcher.Run()

	secret := []byte(envOr("JWT_SECRET", "dev-only-secret"))
	h := handler.NewHandler(s, ledgerSvc, lifecycleSvc, resolver, hub, secret)

	r := gin.Default()

	r.POST("/auth/token", h.IssueToken)
	r.GET("/ws", h.ServeWebSocket)

	authed := r.Group("/", h.AuthRequired())
	{
		authed.POST("/complaints", h.SubmitComplaint)
		authed.GET("/complaints", h.ListComplaints)
		authed.GET("/complaints/:id", h.GetComplaint)
		authed.PATCH("/complaints/:id", h.EditComplaint)
		authed.DELETE("/complaints/:id", h.WithdrawComplaint)
		authed.POST("/complaints/:id/vote", h.CastVote)

		authed.POST("/complaints/:id/assign", handler.RequireRole(models.RoleAdmin), h.AssignComplaint)
		authed.POST("/complaints/:id/advance", handler.RequireRole(models.RoleAuthority), h.AdvanceComplaint)

		authed.GET("/authorities", h.ListAuthorities)
		authed.GET("/authorities/:id/availability", h.GetAvailability)

		authed.GET("/notifications", h.ListNotifications)
		authed.POST("/notifications/:id/read", h.MarkNotificationRead)
	}

	server := &http.Server{
		Addr:           ":" + envOr("PORT", "8080"),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
