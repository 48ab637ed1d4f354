package main

import (
	"log"

	"github.com/labstack/echo/v4"

	"github.com/streamvault/market/internal/config"
	"github.com/streamvault/market/internal/database"
	"github.com/streamvault/market/internal/handler"
	"github.com/streamvault/market/internal/queue"
	"github.com/streamvault/market/internal/repository"
	"github.com/streamvault/market/internal/router"
	"github.com/streamvault/market/internal/service"
	"github.com/streamvault/market/internal/service/queue_publisher"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("database migrate failed: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; stock mirror, cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	accounts := repository.NewAccountRepo(db)
	seats := repository.NewSeatRepo(db)
	orders := repository.NewOrderRepo(db)

	stock := service.NewStockService(seats, accounts, rdb, cfg.StockCacheTTL)
	alloc := service.NewAllocator(seats, accounts, orders, stock)
	rec := service.NewReconciler(orders, alloc, stock)

	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(cfg, users, tokens),
		Catalog:    handler.NewCatalogHandler(accounts, stock),
		Orders:     handler.NewOrderHandler(orders, accounts, seats, stock, queue_publisher.PublishOrderPaid),
		Accounts:   handler.NewAdminAccountHandler(accounts, stock),
		Seats:      handler.NewAdminSeatHandler(seats, accounts, stock),
		Allocation: handler.NewAllocationHandler(alloc, orders, queue_publisher.PublishSeatAllocated),
		Reconcile:  handler.NewReconcileHandler(rec),
	}

	e := echo.New()
	router.Register(e, handlers, cfg, rdb)

	// Background consumer: turns paid orders into seat allocations.
	go func() {
		if err := queue.StartOrderPaidConsumer(alloc, queue_publisher.PublishSeatAllocated); err != nil {
			log.Printf("order.paid consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
