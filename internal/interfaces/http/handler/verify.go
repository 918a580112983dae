package handler

import (
	"github.com/gin-gonic/gin"
	verificationapp "github.com/vidamed/backend/internal/application/verification"
)

// VerifyHandler handles document verification API endpoints
type VerifyHandler struct {
	BaseHandler
	verification *verificationapp.Service
}

// NewVerifyHandler creates a new VerifyHandler
func NewVerifyHandler(verification *verificationapp.Service) *VerifyHandler {
	return &VerifyHandler{
		verification: verification,
	}
}

// Resolve serves the public verification view. The patient name is
// redacted and clinical fields are withheld.
func (h *VerifyHandler) Resolve(c *gin.Context) {
	view, err := h.verification.Resolve(
		c.Request.Context(),
		c.Param("identifier"),
		verificationapp.ViewPublic,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// Lookup serves the authenticated view with the full patient name and
// clinical payload.
func (h *VerifyHandler) Lookup(c *gin.Context) {
	view, err := h.verification.Resolve(
		c.Request.Context(),
		c.Param("identifier"),
		verificationapp.ViewAuthenticated,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}
