package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"ticketmarket/internal/config"
	"ticketmarket/internal/database"
	"ticketmarket/internal/handlers"
	"ticketmarket/internal/middleware"
	"ticketmarket/internal/repositories"
	"ticketmarket/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize database connection
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
	log.Println("Database connection established successfully")

	if err := db.RunMigrations(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Redis is optional; without it the settlement sweep runs unguarded
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

	// Initialize repositories
	eventRepo := repositories.NewEventRepository(db.DB)
	inventoryRepo := repositories.NewInventoryRepository(db.DB)
	cartRepo := repositories.NewCartRepository(db.DB)
	paymentRepo := repositories.NewPaymentRepository(db.DB)
	methodRepo := repositories.NewPaymentMethodRepository(db.DB)
	settlementRepo := repositories.NewSettlementRepository(db.DB)

	// Initialize services
	gateway := services.NewMockGateway(cfg.Gateway.Currency, cfg.Gateway.InitialBalance)
	notifier := services.NewLogNotifier()
	eventService := services.NewEventService(eventRepo, inventoryRepo)
	cartService := services.NewCartService(cartRepo, inventoryRepo)
	methodService := services.NewPaymentMethodService(methodRepo, gateway)
	ticketService := services.NewTicketService(paymentRepo)
	checkoutService := services.NewCheckoutService(
		db.DB, cartRepo, inventoryRepo, eventRepo, paymentRepo, methodRepo,
		gateway, notifier, cfg.Gateway.Currency, cfg.Gateway.RequestTimeout,
	)
	settlementService := services.NewSettlementService(
		db.DB, settlementRepo, redisClient,
		cfg.Settlement.SweepInterval, cfg.Settlement.LockTTL,
	)

	// Start the settlement sweeper alongside the HTTP server
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go settlementService.Run(sweepCtx)

	// Initialize handlers
	eventHandler := handlers.NewEventHandler(eventService)
	cartHandler := handlers.NewCartHandler(cartService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService)
	methodHandler := handlers.NewPaymentMethodHandler(methodService)
	ticketHandler := handlers.NewTicketHandler(ticketService)

	rateLimiter := middleware.NewRateLimiter(5, 10)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.LoggingMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events/{eventID}", eventHandler.GetEvent)
		r.Get("/tickets/code/{code}", ticketHandler.GetByCode)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Use(rateLimiter.Middleware)

			r.Post("/events", eventHandler.CreateEvent)
			r.Get("/events", eventHandler.ListMyEvents)
			r.Post("/ticket-types", eventHandler.CreateTicketType)
			r.Patch("/ticket-types/{ticketTypeID}/quantity", eventHandler.IncreaseQuantity)

			r.Get("/cart", cartHandler.View)
			r.Post("/cart/items", cartHandler.AddItem)
			r.Put("/cart/items", cartHandler.SetQuantity)
			r.Delete("/cart", cartHandler.Clear)

			r.Post("/checkout", checkoutHandler.Checkout)
			r.Post("/checkout/now", checkoutHandler.CheckoutNow)
			r.Post("/tickets/{ticketID}/refund", checkoutHandler.RefundTicket)

			r.Get("/tickets", ticketHandler.ListMine)

			r.Post("/payment-methods", methodHandler.LinkCard)
			r.Get("/payment-methods", methodHandler.List)
			r.Delete("/payment-methods/{methodID}", methodHandler.Remove)
		})
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed:", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
