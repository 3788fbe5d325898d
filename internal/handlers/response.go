package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
	"github.com/wordmesh/wordmesh-backend/internal/platform/ctxutil"
)

type APIError struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type ErrorEnvelope struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}

// RespondError maps any error onto its stable kind and HTTP status.
// Unclassified errors surface as internal without leaking detail.
func RespondError(c *gin.Context, err error) {
	status := apperr.StatusOf(err)
	kind := apperr.KindOf(err)
	msg := "internal error"
	if kind != apperr.KindInternal && err != nil {
		msg = err.Error()
	}
	var requestID string
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		requestID = rd.RequestID
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Kind:    string(kind),
		},
		RequestID: requestID,
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
