package api

import (
	"fmt"
	"net/http"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// exportResults downloads reconciliation results as a spreadsheet for
// offline review. Optional ?matched=true/false filters like the list
// endpoints; at most exportLimit rows.
const exportLimit = 10000

func (h *Handler) exportResults(c *gin.Context) {
	var matched *bool
	if v := c.Query("matched"); v != "" {
		b := v == "true"
		matched = &b
	}

	results, _, err := models.ListReconciliationResults(c.Request.Context(), config.GetDB(), matched, 1, exportLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	f := excelize.NewFile()
	sheet := "Sheet1"

	// Add headers
	f.SetCellValue(sheet, "A1", "TransactionId")
	f.SetCellValue(sheet, "B1", "Status")
	f.SetCellValue(sheet, "C1", "Details")
	f.SetCellValue(sheet, "D1", "ReconciledAt")

	// Add data
	for i, r := range results {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheet, "A"+row, r.TransactionId)
		f.SetCellValue(sheet, "B"+row, string(r.Status))
		f.SetCellValue(sheet, "C"+row, r.Details)
		f.SetCellValue(sheet, "D"+row, r.ReconciledAt)
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=reconciliation-results.xlsx")
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write file"})
	}
}
