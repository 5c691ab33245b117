package api

import (
	"errors"
	"net/http"

	"pos-checkout/internal/service"

	"github.com/gin-gonic/gin"
)

// importInventory accepts a .csv or .xlsx upload in the "file" field
func (h *Handler) importInventory(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open file"})
		return
	}
	defer file.Close()

	report, err := h.imports.ImportFile(c.Request.Context(), fileHeader.Filename, file, fileHeader.Size)
	if errors.Is(err, service.ErrNothingToImport) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   err.Error(),
			"report":  report,
			"summary": report.Summary(h.errorPreview),
		})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report":  report,
		"summary": report.Summary(h.errorPreview),
	})
}

func (h *Handler) inventoryValuation(c *gin.Context) {
	report, err := h.valuation.Valuate(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
