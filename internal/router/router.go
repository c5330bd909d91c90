package router

import (
	"net/http"

	"github.com/campusmerch/api/internal/cart"
	"github.com/campusmerch/api/internal/config"
	"github.com/campusmerch/api/internal/database"
	"github.com/campusmerch/api/internal/enum"
	"github.com/campusmerch/api/internal/handler"
	mw "github.com/campusmerch/api/internal/middleware"
	"github.com/campusmerch/api/internal/service"
	"github.com/campusmerch/api/internal/storage"
	"github.com/campusmerch/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a Chi router with all application routes wired up.
// Storefront endpoints carry the client key header; admin endpoints
// require an ADMIN bearer token.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, sessions *cart.Manager, uploads storage.ObjectStore, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Client-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, sessions)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Uploaded files (product images, payment proofs)
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir)))
	r.Get("/uploads/*", fileServer.ServeHTTP)

	lifecycleService := service.NewLifecycleService(pool, func(db database.DBTX) service.LifecycleStore {
		return database.New(db)
	})

	productHandler := handler.NewProductHandler(
		queries,
		pool,
		func(db database.DBTX) handler.ProductStore {
			return database.New(db)
		},
		uploads,
	)

	// Storefront catalog (public)
	r.Route("/products", productHandler.RegisterPublicRoutes)

	// Order tracking and payment proof upload (public; the order id is
	// the tracking token)
	orderHandler := handler.NewOrderHandler(queries, lifecycleService, hub)
	orderHandler.RegisterCustomerRoutes(r)

	paymentHandler := handler.NewPaymentHandler(lifecycleService, uploads)
	paymentHandler.RegisterRoutes(r)

	// Cart and wishlist: guests carry only the client key, signed-in
	// customers additionally carry a bearer token.
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireClientKey)
		r.Use(mw.MaybeAuthenticate(cfg.JWTSecret))

		cartHandler := handler.NewCartHandler(sessions)
		r.Route("/cart", cartHandler.RegisterRoutes)

		wishlistHandler := handler.NewWishlistHandler(sessions)
		r.Route("/wishlist", wishlistHandler.RegisterRoutes)
	})

	// Checkout (authenticated; selected lines live on the server cart)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireClientKey)

		checkoutService := service.NewCheckoutService(pool, func(db database.DBTX) service.CheckoutStore {
			return database.New(db)
		})
		checkoutHandler := handler.NewCheckoutHandler(checkoutService, sessions)
		checkoutHandler.RegisterRoutes(r)
	})

	// Customer order history
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		orderHandler.RegisterMyOrdersRoute(r)
	})

	// Admin back-office
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireRole(enum.UserRoleAdmin))

		r.Route("/admin/products", productHandler.RegisterAdminRoutes)
		r.Route("/admin/orders", orderHandler.RegisterAdminRoutes)

		reportHandler := handler.NewReportHandler(queries)
		r.Route("/admin/reports", reportHandler.RegisterRoutes)
	})

	return r
}
