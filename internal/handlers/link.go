package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wordmesh/wordmesh-backend/internal/platform/ctxutil"
	"github.com/wordmesh/wordmesh-backend/internal/services"
)

type LinkHandler struct {
	links services.LinkService
}

func NewLinkHandler(links services.LinkService) *LinkHandler {
	return &LinkHandler{links: links}
}

func (h *LinkHandler) CreateWordLink(c *gin.Context) {
	var req struct {
		WordAID int64   `json:"word_a_id"`
		WordBID int64   `json:"word_b_id"`
		Kind    string  `json:"kind"`
		Note    *string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	view, err := h.links.CreateWordLink(c.Request.Context(), ctxutil.UserID(c.Request.Context()), services.CreateWordLinkInput{
		WordAID: req.WordAID,
		WordBID: req.WordBID,
		Kind:    req.Kind,
		Note:    req.Note,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, view)
}

func (h *LinkHandler) DeleteWordLink(c *gin.Context) {
	wordAID, ok := queryID(c, "word_a_id")
	if !ok {
		return
	}
	wordBID, ok := queryID(c, "word_b_id")
	if !ok {
		return
	}
	err := h.links.DeleteWordLink(c.Request.Context(), ctxutil.UserID(c.Request.Context()),
		wordAID, wordBID, c.Query("kind"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LinkHandler) ListWordLinks(c *gin.Context) {
	userWordID, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, err := h.links.ListWordLinks(c.Request.Context(), ctxutil.UserID(c.Request.Context()),
		userWordID, c.Query("kind"), queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, page)
}

func (h *LinkHandler) CreateSenseLink(c *gin.Context) {
	senseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		TargetWordID int64   `json:"target_word_id"`
		Kind         string  `json:"kind"`
		Note         *string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	view, err := h.links.CreateSenseWordLink(c.Request.Context(), ctxutil.UserID(c.Request.Context()), services.CreateSenseLinkInput{
		SenseID:      senseID,
		TargetWordID: req.TargetWordID,
		Kind:         req.Kind,
		Note:         req.Note,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, view)
}

func (h *LinkHandler) DeleteSenseLink(c *gin.Context) {
	senseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetWordID, ok := queryID(c, "target_word_id")
	if !ok {
		return
	}
	err := h.links.DeleteSenseLink(c.Request.Context(), ctxutil.UserID(c.Request.Context()),
		senseID, targetWordID, c.Query("kind"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LinkHandler) ListSenseLinks(c *gin.Context) {
	senseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, err := h.links.ListSenseLinks(c.Request.Context(), ctxutil.UserID(c.Request.Context()),
		senseID, c.Query("kind"), queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, page)
}

func queryID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
