package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	jwtware "github.com/gofiber/jwt/v2"

	"parts-storefront/internal/admin"
	"parts-storefront/internal/auth"
	"parts-storefront/internal/backend"
	"parts-storefront/internal/cart"
	"parts-storefront/internal/catalog"
	"parts-storefront/internal/community"
	"parts-storefront/internal/config"
	"parts-storefront/internal/order"
)

func main() {
	cfg, err := config.Load(context.Background())
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app := fiber.New()
	setupCORS(app)
	app.Use(checkMiddleware)
	app.Use(auth.Passthrough)

	// every page goes through this one client; the browser's bearer
	// token rides along on the request context
	api := backend.New(cfg.BackendURL, auth.ContextProvider{})

	catalogService := catalog.NewService(api)
	catalogHandler := catalog.NewHandler(catalogService)

	contract, err := cart.ParseContract(cfg.CartContract)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cartHandler := cart.NewHandler(cart.NewSequencer(api, catalogService, contract))

	communityService := community.NewService(api)
	communityHandler := community.NewHandler(communityService, community.NewReconciler(api))

	orderService := order.NewService(api, catalogService)
	orderHandler := order.NewHandler(orderService)

	// admin aggregation calls the backend on the gateway's own behalf
	// with a short-lived service token rather than the browser's
	serviceAPI := backend.New(cfg.BackendURL, &auth.ServiceProvider{
		Secret:  []byte(cfg.JWTSecret),
		Subject: "parts-storefront",
	})
	adminHandler := admin.NewHandler(admin.NewService(
		serviceAPI,
		catalog.NewService(serviceAPI),
		order.NewService(serviceAPI, catalog.NewService(serviceAPI)),
		cfg.LowStockMin,
	))

	// public routes go in before the JWT gate
	catalogHandler.RegisterPublicRoutes(app)
	communityHandler.RegisterPublicRoutes(app)

	app.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(cfg.JWTSecret),
	}))

	cartHandler.RegisterProtectedRoutes(app)
	orderHandler.RegisterProtectedRoutes(app)
	communityHandler.RegisterProtectedRoutes(app)
	adminHandler.RegisterProtectedRoutes(app)

	log.Printf("starting storefront gateway on %s (backend %s, cart contract %s)",
		cfg.Addr, cfg.BackendURL, cfg.CartContract)
	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
}

func checkMiddleware(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	fmt.Printf("URL = %s, Method = %s, Duration = %v\n", c.OriginalURL(), c.Method(), time.Since(start))
	return err
}
