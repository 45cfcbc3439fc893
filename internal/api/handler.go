package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"handoff-backend/internal/apperr"
	"handoff-backend/internal/handoff"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc            *handoff.Service
	vapidPublicKey string
}

// NewHandler creates a new API handler.
func NewHandler(svc *handoff.Service, vapidPublicKey string) *Handler {
	return &Handler{
		svc:            svc,
		vapidPublicKey: vapidPublicKey,
	}
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:          http.StatusBadRequest,
	apperr.KindNotAuthorized:       http.StatusForbidden,
	apperr.KindNotFound:            http.StatusNotFound,
	apperr.KindImmutableField:      http.StatusConflict,
	apperr.KindAppendOnly:          http.StatusConflict,
	apperr.KindInvalidTransition:   http.StatusConflict,
	apperr.KindAlreadyAcknowledged: http.StatusConflict,
	apperr.KindConflict:            http.StatusConflict,
}

// respondError writes err as {"error": kind, "message": text}. Errors without
// a kind are logged and reported as internal.
func respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if status, ok := statusByKind[appErr.Kind]; ok {
			c.AbortWithStatusJSON(status, gin.H{"error": appErr.Kind, "message": appErr.Msg})
			return
		}
	}
	log.Printf("Internal error on %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": apperr.KindValidation, "message": err.Error()})
}
