package http

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cartly/backend/internal/domain"
	"github.com/cartly/backend/internal/usecase"
)

// maxReceiptImageBytes caps receipt uploads. Phone camera JPEGs land
// well under this.
const maxReceiptImageBytes = 10 << 20

// Handler holds dependencies for HTTP handlers
type Handler struct {
	scanService *usecase.ScanService
	cartRepo    domain.CartRepository
}

// NewHandler creates a new HTTP handler
func NewHandler(scanService *usecase.ScanService, cartRepo domain.CartRepository) *Handler {
	return &Handler{
		scanService: scanService,
		cartRepo:    cartRepo,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "cartly-backend",
		"version": "1.0.0",
	})
}

// GetCart handles cart retrieval requests
func (h *Handler) GetCart(c *gin.Context) {
	if h.cartRepo == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Cart storage not configured"})
		return
	}

	cart, err := h.cartRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
			return
		}
		log.Printf("[HTTP] GetCart failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
		return
	}

	c.JSON(http.StatusOK, cart)
}

// ScanReceipt handles receipt photo uploads and reconciles the cart
// against the recognized purchases
func (h *Handler) ScanReceipt(c *gin.Context) {
	if h.scanService == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Receipt scanning not configured"})
		return
	}

	fileHeader, err := c.FormFile("receipt")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No receipt uploaded"})
		return
	}
	if fileHeader.Size > maxReceiptImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Receipt image too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable receipt upload"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxReceiptImageBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable receipt upload"})
		return
	}

	report, err := h.scanService.ScanReceipt(c.Request.Context(), c.Param("id"), image)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scan request"})
		case errors.Is(err, domain.ErrCartNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
		case errors.Is(err, domain.ErrExtractionFailure):
			log.Printf("[HTTP] Receipt extraction failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Receipt recognition unavailable"})
		default:
			log.Printf("[HTTP] ScanReceipt failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process receipt"})
		}
		return
	}

	c.JSON(http.StatusOK, report)
}
