package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"handoff-backend/config"
	"handoff-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, tokens *mw.TokenManager, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// The key is public; browsers fetch it before they are signed in.
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		authed := api.Group("")
		authed.Use(mw.Auth(tokens))

		authed.POST("/handoffs", handler.CreateHandoff)
		authed.GET("/handoffs", handler.ListMine)
		authed.GET("/handoffs/pending", handler.ListPending)
		authed.GET("/handoffs/:id", handler.GetHandoff)
		authed.PATCH("/handoffs/:id", handler.PatchHandoff)
		authed.POST("/handoffs/:id/voice-notes", handler.AddVoiceNote)
		authed.POST("/handoffs/:id/submit", handler.SubmitHandoff)
		authed.POST("/handoffs/:id/supplemental-notes", handler.AddSupplementalNote)
		authed.POST("/handoffs/:id/acknowledge", handler.Acknowledge)
		authed.GET("/handoffs/:id/audit", handler.GetAudit)
		authed.GET("/audit/batches/:batch_id", handler.GetAuditBatch)

		authed.PUT("/subscriptions", handler.PutSubscription)
		authed.DELETE("/subscriptions", handler.DeleteSubscription)
		authed.GET("/notifications", handler.GetNotifications)
	}

	return r
}
