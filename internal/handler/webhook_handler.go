// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"net/http"

	"instapilot/config"
	"instapilot/internal/queue"
	"instapilot/internal/webhook"
	"instapilot/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives platform webhook traffic. Responses are shaped for
// the platform, not for API clients: the handshake answers plain text and
// delivery always answers {"status":"ok"} once the payload is accepted, so
// the platform does not disable the subscription over downstream trouble.
type WebhookHandler struct {
	appSecret   string
	verifyToken string
	producer    queue.Producer
	log         *logger.Logger
}

func NewWebhookHandler(cfg *config.Config, producer queue.Producer, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		appSecret:   cfg.MetaAppSecret,
		verifyToken: cfg.WebhookVerifyToken,
		producer:    producer,
		log:         log,
	}
}

// Verify answers the subscription handshake.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || h.verifyToken == "" || token != h.verifyToken {
		h.log.WarnfCtx(c.Request.Context(), "webhook verification rejected (mode=%q)", mode)
		c.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
		return
	}

	c.String(http.StatusOK, challenge)
}

// Receive accepts one webhook delivery. The body is admitted or rejected
// here; all processing happens in the events worker.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader("X-Hub-Signature-256")
	if !webhook.VerifySignature(h.appSecret, body, signature) {
		h.log.WarnfCtx(c.Request.Context(), "webhook delivery with bad signature rejected")
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	events, err := webhook.Normalize(body, h.log)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	correlationID, _ := c.Request.Context().Value(logger.RequestIdKey).(string)
	for i := range events {
		ev := events[i]
		task := queue.Task{
			Kind:          queue.TaskProcessEvent,
			CorrelationID: correlationID,
			Attempt:       1,
			Event:         &ev,
		}
		if err := h.producer.Enqueue(c.Request.Context(), task); err != nil {
			// The delivery is still acknowledged; the platform retries whole
			// deliveries, not individual changes, and a non-200 here risks the
			// subscription being disabled.
			h.log.ErrorfCtx(c.Request.Context(), "enqueue of webhook event failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
