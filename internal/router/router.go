// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/streamvault/market/internal/config"
	"github.com/streamvault/market/internal/handler"
	"github.com/streamvault/market/internal/middleware"
	"github.com/streamvault/market/internal/model"
)

// Handlers collects every handler the router mounts.
type Handlers struct {
	Auth       *handler.AuthHandler
	Catalog    *handler.CatalogHandler
	Orders     *handler.OrderHandler
	Accounts   *handler.AdminAccountHandler
	Seats      *handler.AdminSeatHandler
	Allocation *handler.AllocationHandler
	Reconcile  *handler.ReconcileHandler
}

// Register mounts all routes on the Echo instance.
//
// Public surface: health, auth, and the storefront catalog.  Catalog
// reads go through the Redis response cache and an IP-keyed rate
// limiter.  Customer endpoints require a JWT; admin endpoints require
// the ADMIN role on top.
func Register(e *echo.Echo, h *Handlers, cfg config.Config, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	// Auth: no session required.
	authGroup := e.Group("/v1/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)
	authGroup.POST("/logout", h.Auth.Logout)

	// Storefront: unauthenticated browse, cached and rate limited.
	browse := e.Group("/v1")
	browse.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	browse.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	browse.GET("/catalog", h.Catalog.List)
	browse.GET("/accounts/:id/stock", h.Catalog.StockByID)

	// Customer endpoints: any authenticated role.
	customer := e.Group("/v1")
	customer.Use(middleware.JWTAuth(cfg.JWTSecret))
	customer.Use(middleware.RequireRole(model.RoleAdmin, model.RoleCustomer))
	customer.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	customer.GET("/me", h.Auth.Me)
	customer.POST("/orders", h.Orders.Checkout)
	customer.GET("/my-orders", h.Orders.MyOrders)

	// Admin endpoints: inventory, order transitions, allocation tooling.
	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(cfg.JWTSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.GET("/accounts", h.Accounts.List)
	admin.POST("/accounts", h.Accounts.Create)
	admin.GET("/accounts/:id", h.Accounts.Get)
	admin.PUT("/accounts/:id", h.Accounts.Update)
	admin.POST("/accounts/:id/stock/refresh", h.Accounts.RefreshStock)
	admin.POST("/stock/refresh", h.Accounts.RefreshStockAll)
	admin.GET("/accounts/:id/seats", h.Seats.List)
	admin.POST("/accounts/:id/seats", h.Seats.Create)
	admin.PUT("/seats/:id", h.Seats.Update)
	admin.DELETE("/seats/:id", h.Seats.Delete)
	admin.POST("/seats/:id/release", h.Seats.Release)
	admin.POST("/orders/:id/mark-paid", h.Orders.MarkPaid)
	admin.POST("/orders/:id/cancel", h.Orders.Cancel)
	admin.POST("/order-lines/:id/allocate", h.Allocation.Allocate)
	admin.POST("/reconcile", h.Reconcile.Run)
}
