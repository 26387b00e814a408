package controllers

import (
	"net/http"

	"checkout-service/middleware"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
)

type CheckoutController struct {
	checkoutService *services.CheckoutService
}

func NewCheckoutController(checkoutService *services.CheckoutService) *CheckoutController {
	return &CheckoutController{checkoutService: checkoutService}
}

// Checkout places an order from the user's cart. Clients may send an
// Idempotency-Key header to make retries safe.
func (cc *CheckoutController) Checkout(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	idempotencyKey := ctx.GetHeader("Idempotency-Key")

	order, err := cc.checkoutService.Checkout(ctx.Request.Context(), userID, idempotencyKey)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"order": order})
}
