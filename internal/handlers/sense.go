package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wordmesh/wordmesh-backend/internal/platform/ctxutil"
	"github.com/wordmesh/wordmesh-backend/internal/services"
)

type SenseHandler struct {
	senses services.SenseService
}

func NewSenseHandler(senses services.SenseService) *SenseHandler {
	return &SenseHandler{senses: senses}
}

func (h *SenseHandler) Add(c *gin.Context) {
	userWordID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Text      string  `json:"text"`
		IsPrimary bool    `json:"is_primary"`
		SortOrder int     `json:"sort_order"`
		Note      *string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	view, err := h.senses.AddSense(c.Request.Context(), ctxutil.UserID(c.Request.Context()), services.AddSenseInput{
		UserWordID: userWordID,
		Text:       req.Text,
		IsPrimary:  req.IsPrimary,
		SortOrder:  req.SortOrder,
		Note:       req.Note,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, view)
}

func (h *SenseHandler) Update(c *gin.Context) {
	senseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	// note is double-decoded so "absent", "null" and "value" stay
	// distinguishable: absent leaves the note alone, null clears it.
	var req struct {
		Text      *string  `json:"text"`
		IsPrimary *bool    `json:"is_primary"`
		SortOrder *int     `json:"sort_order"`
		Note      **string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	view, err := h.senses.UpdateSense(c.Request.Context(), ctxutil.UserID(c.Request.Context()), senseID, services.UpdateSenseInput{
		Text:      req.Text,
		IsPrimary: req.IsPrimary,
		SortOrder: req.SortOrder,
		Note:      req.Note,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *SenseHandler) Remove(c *gin.Context) {
	senseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.senses.RemoveSense(c.Request.Context(), ctxutil.UserID(c.Request.Context()), senseID); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
