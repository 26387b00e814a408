package routes

import (
	"checkout-service/controllers"
	"checkout-service/middleware"

	"github.com/gin-gonic/gin"
)

// Register wires the HTTP surface: cart and order routes for authenticated
// users, plus an admin group gated by role.
func Register(
	r *gin.Engine,
	jwtSecret string,
	cartController *controllers.CartController,
	checkoutController *controllers.CheckoutController,
	orderController *controllers.OrderController,
	inventoryController *controllers.InventoryController,
) {
	auth := middleware.AuthMiddleware(jwtSecret)

	cartRoutes := r.Group("/cart")
	cartRoutes.Use(auth)
	cartRoutes.GET("", cartController.GetCart)
	cartRoutes.POST("/items", cartController.AddItem)
	cartRoutes.PUT("/items/:variant_id", cartController.UpdateItem)
	cartRoutes.DELETE("/items/:variant_id", cartController.RemoveItem)
	cartRoutes.DELETE("", cartController.ClearCart)

	checkoutRoutes := r.Group("/checkout")
	checkoutRoutes.Use(auth)
	checkoutRoutes.POST("", checkoutController.Checkout)

	orderRoutes := r.Group("/orders")
	orderRoutes.Use(auth)
	orderRoutes.GET("", orderController.GetOrders)
	orderRoutes.GET("/:id", orderController.GetOrderByID)
	orderRoutes.POST("/:id/cancel", orderController.CancelOrder)

	adminRoutes := r.Group("/admin")
	adminRoutes.Use(auth, middleware.AdminOnly())
	adminRoutes.GET("/orders", orderController.GetAllOrders)
	adminRoutes.POST("/orders/:id/status", orderController.UpdateStatus)
	adminRoutes.GET("/inventory/:variant_id", inventoryController.GetStock)
	adminRoutes.PUT("/inventory/:variant_id", inventoryController.SetStock)
}
