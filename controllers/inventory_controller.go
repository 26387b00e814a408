package controllers

import (
	"net/http"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InventoryController exposes the admin surface for seeding and inspecting
// per-variant stock.
type InventoryController struct {
	inventory repository.InventoryRepository
}

func NewInventoryController(inventory repository.InventoryRepository) *InventoryController {
	return &InventoryController{inventory: inventory}
}

// GetStock returns the available count for a variant.
func (ic *InventoryController) GetStock(ctx *gin.Context) {
	variantID, err := uuid.Parse(ctx.Param("variant_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid variant ID format"})
		return
	}

	rec, err := ic.inventory.Get(ctx.Request.Context(), variantID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"inventory": rec})
}

// SetStock upserts the available count for a variant.
func (ic *InventoryController) SetStock(ctx *gin.Context) {
	variantID, err := uuid.Parse(ctx.Param("variant_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid variant ID format"})
		return
	}

	var req models.SetStockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	rec, err := ic.inventory.Set(ctx.Request.Context(), variantID, *req.Available)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"inventory": rec})
}
