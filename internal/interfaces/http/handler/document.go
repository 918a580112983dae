package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	issuanceapp "github.com/vidamed/backend/internal/application/issuance"
)

// DocumentHandler handles document issuance API endpoints
type DocumentHandler struct {
	BaseHandler
	issuance *issuanceapp.Service
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(issuance *issuanceapp.Service) *DocumentHandler {
	return &DocumentHandler{
		issuance: issuance,
	}
}

// RemoveDocumentsRequest is the body for a batch delete
type RemoveDocumentsRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}

// IssueCertificate issues a medical certificate for a doctor/patient pair.
// The row is inserted before rendering; a render or storage failure leaves
// it pending and surfaces the error to the caller.
func (h *DocumentHandler) IssueCertificate(c *gin.Context) {
	var req issuanceapp.IssueCertificateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	doc, err := h.issuance.IssueCertificate(c.Request.Context(), &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, issuanceapp.NewIssuedDocumentOutput(doc))
}

// IssuePrescription issues a prescription with one or more medications
func (h *DocumentHandler) IssuePrescription(c *gin.Context) {
	var req issuanceapp.IssuePrescriptionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	doc, err := h.issuance.IssuePrescription(c.Request.Context(), &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, issuanceapp.NewIssuedDocumentOutput(doc))
}

// GetByID returns the issuance record for a document
func (h *DocumentHandler) GetByID(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid document ID")
		return
	}

	doc, err := h.issuance.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, issuanceapp.NewIssuedDocumentOutput(doc))
}

// Delete removes a single document and its stored artifact
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid document ID")
		return
	}

	result, err := h.issuance.Remove(c.Request.Context(), []uint{id})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Deleted == 0 {
		h.NotFound(c, "Document not found")
		return
	}

	h.Success(c, result)
}

// BatchDelete removes a set of documents, reporting per-id outcomes
func (h *DocumentHandler) BatchDelete(c *gin.Context) {
	var req RemoveDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.issuance.Remove(c.Request.Context(), req.IDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// parseUintParam reads a numeric path parameter
func parseUintParam(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
