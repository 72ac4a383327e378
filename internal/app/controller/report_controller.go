package controller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kapehan/kapehan-backend/internal/app/service"
	"github.com/kapehan/kapehan-backend/internal/middleware"
)

type ReportController struct {
	reportService service.ReportService
}

func NewReportController(reportService service.ReportService) *ReportController {
	return &ReportController{
		reportService: reportService,
	}
}

// ExportOrders streams an XLSX of orders in a date range (admin)
// GET /api/v1/admin/reports/orders?from=2026-08-01&to=2026-08-31
func (ctrl *ReportController) ExportOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	const layout = "2006-01-02"
	from, err := time.Parse(layout, c.DefaultQuery("from", time.Now().AddDate(0, -1, 0).Format(layout)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date, expected YYYY-MM-DD"})
		return
	}
	to, err := time.Parse(layout, c.DefaultQuery("to", time.Now().Format(layout)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date, expected YYYY-MM-DD"})
		return
	}
	// Make the range inclusive of the final day.
	to = to.AddDate(0, 0, 1)

	workbook, err := ctrl.reportService.OrdersWorkbook(c.Request.Context(), from, to)
	if err != nil {
		log.Error("Failed to build orders workbook", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
		return
	}

	filename := fmt.Sprintf("orders_%s_%s.xlsx", from.Format(layout), to.AddDate(0, 0, -1).Format(layout))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := workbook.Write(c.Writer); err != nil {
		log.Error("Failed to stream orders workbook", err, nil)
	}
}
