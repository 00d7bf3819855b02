package main

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"ticketmarket/internal/config"
	"ticketmarket/internal/database"
	"ticketmarket/internal/repositories"
	"ticketmarket/internal/services"
)

// Runs a single settlement sweep and exits. Meant for cron or for
// settling a backlog by hand.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := database.NewConnection(database.Config{
		URL:      cfg.Database.URL,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = database.NewRedisClient(database.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Printf("Warning: Failed to connect to Redis: %v", err)
			redisClient = nil
		}
	}

	settlementService := services.NewSettlementService(
		db.DB,
		repositories.NewSettlementRepository(db.DB),
		redisClient,
		cfg.Settlement.SweepInterval,
		cfg.Settlement.LockTTL,
	)

	if err := settlementService.SweepOnce(context.Background()); err != nil {
		log.Fatal("Settlement sweep failed:", err)
	}

	log.Println("Settlement sweep completed")
}
