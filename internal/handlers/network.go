package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wordmesh/wordmesh-backend/internal/platform/ctxutil"
	"github.com/wordmesh/wordmesh-backend/internal/services"
)

type NetworkHandler struct {
	network services.NetworkService
}

func NewNetworkHandler(network services.NetworkService) *NetworkHandler {
	return &NetworkHandler{network: network}
}

func (h *NetworkHandler) AddWord(c *gin.Context) {
	var req struct {
		Text       string   `json:"text"`
		Tags       []string `json:"tags"`
		Note       *string  `json:"note"`
		FirstSense *struct {
			Text string  `json:"text"`
			Note *string `json:"note"`
		} `json:"first_sense"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	in := services.AddWordInput{Text: req.Text, Tags: req.Tags, Note: req.Note}
	if req.FirstSense != nil {
		in.FirstSense = &services.FirstSense{Text: req.FirstSense.Text, Note: req.FirstSense.Note}
	}

	view, err := h.network.AddToNetwork(c.Request.Context(), ctxutil.UserID(c.Request.Context()), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	if view.AlreadyExists {
		RespondOK(c, view)
		return
	}
	RespondCreated(c, view)
}

func (h *NetworkHandler) GetWord(c *gin.Context) {
	userWordID, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.network.GetUserWord(c.Request.Context(), ctxutil.UserID(c.Request.Context()), userWordID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *NetworkHandler) RemoveWord(c *gin.Context) {
	userWordID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.network.RemoveFromNetwork(c.Request.Context(), ctxutil.UserID(c.Request.Context()), userWordID); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NetworkHandler) Search(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	offset := queryInt(c, "offset", 0)
	page, err := h.network.Search(
		c.Request.Context(),
		ctxutil.UserID(c.Request.Context()),
		c.Query("q"),
		c.Query("scope"),
		limit,
		offset,
	)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, page)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
