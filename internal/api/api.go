// Package api exposes the authenticated REST surface of the bridge and the
// provider webhook ingress.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pesabridge/pesabridge/internal/auth"
	"github.com/pesabridge/pesabridge/internal/broker"
	"github.com/pesabridge/pesabridge/internal/gateway"
	"github.com/pesabridge/pesabridge/internal/provider"
	"github.com/pesabridge/pesabridge/internal/store"
	"github.com/pesabridge/pesabridge/pkg/schema"
)

// Handler carries the collaborators behind the REST surface.
type Handler struct {
	Guard         *auth.Guard
	Gateway       *gateway.Gateway
	Broker        *broker.Socket
	Ledger        store.TransactionLedger
	WebhookSecret string
	Log           *slog.Logger
}

// Register wires every route onto the engine: the guarded transaction API,
// the realtime endpoint, and the unguarded webhook + health endpoints.
func (h *Handler) Register(r *gin.Engine) {
	guarded := r.Group("/transactions", h.Guard.Middleware())
	{
		guarded.POST("/initiate", h.Initiate)
		guarded.GET("/status/:id", h.Status)
	}

	r.GET("/realtime", h.Broker.Handler)
	r.POST("/webhooks/provider", h.ProviderWebhook)
	r.GET("/healthz", h.Healthz)
}

func (h *Handler) Initiate(c *gin.Context) {
	var req gateway.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone and a positive amount are required"})
		return
	}

	result, err := h.Gateway.Initiate(c.Request.Context(), auth.FromGin(c), req)
	if err != nil {
		h.writeGatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Status(c *gin.Context) {
	payload, err := h.Gateway.Status(c.Request.Context(), auth.FromGin(c), c.Param("id"))
	if err != nil {
		h.writeGatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// webhookPayload is the provider's callback shape. Delivery is at-least-once;
// duplicates are tolerated because republishing the same status leaves
// subscriber-perceived state unchanged.
type webhookPayload struct {
	TransactionID string          `json:"transaction_id" binding:"required"`
	Status        schema.TxStatus `json:"status" binding:"required"`
	Message       string          `json:"message"`
	ProviderData  map[string]any  `json:"provider_data"`
}

func (h *Handler) ProviderWebhook(c *gin.Context) {
	if h.WebhookSecret != "" && c.GetHeader("x-webhook-secret") != h.WebhookSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_id and status are required"})
		return
	}

	if _, err := h.Ledger.UpdateStatus(payload.TransactionID, payload.Status); err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.Log.Warn("webhook for unknown transaction", "transaction_id", payload.TransactionID)
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		h.Log.Error("webhook ledger update failed", "transaction_id", payload.TransactionID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
		return
	}

	delivered := h.Broker.Publish(payload.TransactionID, schema.StatusEvent{
		TransactionID: payload.TransactionID,
		Status:        payload.Status,
		Message:       payload.Message,
		ProviderData:  payload.ProviderData,
		At:            time.Now().UTC(),
	})
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeGatewayError normalizes gateway failures to the single {"error": msg}
// shape. Provider internals are logged, not returned.
func (h *Handler) writeGatewayError(c *gin.Context, err error) {
	var rejection *provider.RejectionError
	switch {
	case errors.As(err, &rejection):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rejection.Message})
	case errors.Is(err, gateway.ErrForeignTransaction):
		c.JSON(http.StatusNotFound, gin.H{"error": gateway.ErrForeignTransaction.Error()})
	case errors.Is(err, provider.ErrUnavailable), errors.Is(err, store.ErrUnavailable):
		h.Log.Error("upstream unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	default:
		h.Log.Error("unexpected gateway failure", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// CORS allows dashboard and browser SDK consumers to call the API directly.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, x-api-key")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
