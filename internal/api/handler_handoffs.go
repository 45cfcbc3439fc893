package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"handoff-backend/internal/handoff"
	"handoff-backend/internal/model"
	"handoff-backend/internal/mw"
	"handoff-backend/internal/store"
)

// CreateHandoff handles POST /api/handoffs.
func (h *Handler) CreateHandoff(c *gin.Context) {
	var req handoff.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.svc.Create(c.Request.Context(), mw.ActorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type patchHandoffRequest struct {
	ShiftDate   *string   `json:"shift_date"`
	ShiftType   *string   `json:"shift_type"`
	Assets      *[]string `json:"assets"`
	SummaryText *string   `json:"summary_text"`
	Notes       *string   `json:"notes"`
}

// PatchHandoff handles PATCH /api/handoffs/:id.
func (h *Handler) PatchHandoff(c *gin.Context) {
	var req patchHandoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.svc.UpdateDraft(c.Request.Context(), mw.ActorFrom(c), c.Param("id"), store.DraftPatch{
		ShiftDate:   req.ShiftDate,
		ShiftType:   req.ShiftType,
		Assets:      req.Assets,
		SummaryText: req.SummaryText,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type voiceNoteRequest struct {
	StorageRef      string `json:"storage_ref" binding:"required"`
	Transcript      string `json:"transcript"`
	DurationSeconds int    `json:"duration_seconds"`
}

// AddVoiceNote handles POST /api/handoffs/:id/voice-notes.
func (h *Handler) AddVoiceNote(c *gin.Context) {
	var req voiceNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	note, err := h.svc.AddVoiceNote(c.Request.Context(), mw.ActorFrom(c), c.Param("id"), store.VoiceNoteInput{
		StorageRef:      req.StorageRef,
		Transcript:      req.Transcript,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

// SubmitHandoff handles POST /api/handoffs/:id/submit.
func (h *Handler) SubmitHandoff(c *gin.Context) {
	submitted, err := h.svc.Submit(c.Request.Context(), mw.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, submitted)
}

// ListPending handles GET /api/handoffs/pending.
func (h *Handler) ListPending(c *gin.Context) {
	list, err := h.svc.ListPending(c.Request.Context(), mw.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"handoffs": list})
}

// ListMine handles GET /api/handoffs?status=draft,pending_acknowledgment.
func (h *Handler) ListMine(c *gin.Context) {
	var statuses []model.Status
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, model.Status(strings.TrimSpace(s)))
		}
	}
	list, err := h.svc.ListMine(c.Request.Context(), mw.ActorFrom(c), statuses...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"handoffs": list})
}

// GetHandoff handles GET /api/handoffs/:id.
func (h *Handler) GetHandoff(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), mw.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type supplementalNoteRequest struct {
	Text string `json:"text" binding:"required"`
}

// AddSupplementalNote handles POST /api/handoffs/:id/supplemental-notes.
func (h *Handler) AddSupplementalNote(c *gin.Context) {
	var req supplementalNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.svc.AddSupplementalNote(c.Request.Context(), mw.ActorFrom(c), c.Param("id"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, updated)
}

type acknowledgeRequest struct {
	Notes string `json:"notes"`
}

// Acknowledge handles POST /api/handoffs/:id/acknowledge. The body is optional.
func (h *Handler) Acknowledge(c *gin.Context) {
	var req acknowledgeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	res, err := h.svc.Acknowledge(c.Request.Context(), mw.ActorFrom(c), c.Param("id"), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GetAudit handles GET /api/handoffs/:id/audit.
func (h *Handler) GetAudit(c *gin.Context) {
	trail, err := h.svc.Audit(c.Request.Context(), mw.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trail)
}

// GetAuditBatch handles GET /api/audit/batches/:batch_id.
func (h *Handler) GetAuditBatch(c *gin.Context) {
	entries, err := h.svc.AuditBatch(c.Request.Context(), mw.ActorFrom(c), c.Param("batch_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// GetNotifications handles GET /api/notifications?limit=N.
func (h *Handler) GetNotifications(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		limit = n
	}
	list, err := h.svc.Notifications(c.Request.Context(), mw.ActorFrom(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}
