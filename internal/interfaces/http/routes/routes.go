// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/handlers"
	"github.com/your-org/marketplace-backend/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// SetupRoutes wires all API routes onto the given group
func SetupRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config) {
	provider := payment.NewStripeClient(cfg)

	SetupAuthRoutes(rg, db, cfg)
	SetupProductRoutes(rg, db, cfg)
	SetupCartRoutes(rg, db, cfg)
	SetupCheckoutRoutes(rg, db, cfg, provider)
	SetupPurchaseRoutes(rg, db, cfg, provider)
	SetupAdminRoutes(rg, db, cfg, provider)
}

// SetupAuthRoutes sets up identity mapping routes
func SetupAuthRoutes(rg *gin.RouterGroup, db *gorm.DB, cfg *config.Config) {
	authHandler := handlers.NewAuthHandler(db, cfg)

	auth := rg.Group("/auth")
	auth.Use(middleware.AuthMiddleware(cfg))
	{
		auth.POST("/provision", authHandler.Provision)
		auth.GET("/me", authHandler.Me)
	}
}

// SetupProductRoutes sets up storefront product routes
func SetupProductRoutes(rg *gin.RouterGroup, db *gorm.DB, cfg *config.Config) {
	productHandler := handlers.NewProductHandler(db, cfg)

	products := rg.Group("/products")
	{
		products.GET("", productHandler.GetProducts)
		products.GET("/:id", productHandler.GetProduct)
	}
}

// SetupCartRoutes sets up cart routes. Cart routes work for both guests
// (cookie cart) and signed-in users (persisted cart), so auth is optional.
func SetupCartRoutes(rg *gin.RouterGroup, db *gorm.DB, cfg *config.Config) {
	cartHandler := handlers.NewCartHandler(db, cfg)

	cart := rg.Group("/cart")
	cart.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		cart.GET("", cartHandler.GetCart)
		cart.POST("/items", cartHandler.AddItem)
		cart.PUT("/items/:id", cartHandler.UpdateItem)
		cart.DELETE("/items/:id", cartHandler.RemoveItem)
		cart.DELETE("", cartHandler.ClearCart)
		cart.POST("/merge", cartHandler.MergeCart)
	}
}

// SetupCheckoutRoutes sets up checkout routes; all require authentication
func SetupCheckoutRoutes(rg *gin.RouterGroup, db *gorm.DB, cfg *config.Config, provider payment.Provider) {
	checkoutHandler := handlers.NewCheckoutHandler(db, cfg, provider)

	checkout := rg.Group("/checkout")
	{
		// The redirect target is opened by the browser without an auth header;
		// the session id itself is the capability
		checkout.GET("/sessions/:id", checkoutHandler.RedirectToSession)

		protected := checkout.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.POST("", checkoutHandler.CreateSession)
			protected.POST("/complete", checkoutHandler.Complete)
		}
	}
}

// SetupPurchaseRoutes sets up purchase history routes
func SetupPurchaseRoutes(rg *gin.RouterGroup, db *gorm.DB, cfg *config.Config, provider payment.Provider) {
	purchaseHandler := handlers.NewPurchaseHandler(db, cfg, provider)

	purchases := rg.Group("/purchases")
	purchases.Use(middleware.AuthMiddleware(cfg))
	{
		purchases.GET("", purchaseHandler.ListUserPurchases)
	}
}

// SetupAdminRoutes sets up admin routes
func SetupAdminRoutes(rg *gin.RouterGroup, db *gorm.DB, cfg *config.Config, provider payment.Provider) {
	purchaseHandler := handlers.NewPurchaseHandler(db, cfg, provider)

	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg))
	admin.Use(middleware.AdminMiddleware())
	{
		purchases := admin.Group("/purchases")
		{
			purchases.GET("", purchaseHandler.ListAllPurchases)
			purchases.PUT("/:id/status", purchaseHandler.UpdateStatus)
		}
	}
}
