package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/internal/app/repository"
	"github.com/kapehan/kapehan-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// ReportService builds the admin sales workbook: one order per row with
// its lifecycle timestamps and loyalty movement over a date range.
type ReportService interface {
	OrdersWorkbook(ctx context.Context, from, to time.Time) (*excelize.File, error)
}

type reportService struct {
	orderRepo repository.OrderRepository
}

func NewReportService(orderRepo repository.OrderRepository) ReportService {
	return &reportService{orderRepo: orderRepo}
}

var reportHeaders = []string{
	"Reference No", "Customer", "Status", "Payment Method", "Payment Status",
	"Items", "Total (PHP)", "Delivery Fee (PHP)", "Points Used", "Points Earned",
	"Created", "Completed", "Cancelled",
}

func (s *reportService) OrdersWorkbook(ctx context.Context, from, to time.Time) (*excelize.File, error) {
	logger.Info("Building orders workbook", map[string]interface{}{
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
	})

	orders, err := s.orderRepo.FindBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Orders"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	for col, header := range reportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	for i, order := range orders {
		row := []interface{}{
			order.ReferenceNo,
			order.User.Name,
			string(order.Status),
			string(order.PaymentMethod),
			string(order.PaymentStatus),
			itemSummary(order.OrderItems),
			pesos(order.Total),
			pesos(order.DeliveryFee),
			order.PointsUsed,
			order.PointsEarned,
			order.CreatedAt.Format(time.RFC3339),
			formatOptional(order.CompletedAt),
			formatOptional(order.CancelledAt),
		}
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	logger.Info("Orders workbook built", map[string]interface{}{
		"order_count": len(orders),
	})
	return f, nil
}

func itemSummary(items []model.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%dx %s", item.Quantity, item.Product.Name))
	}
	return strings.Join(parts, ", ")
}

// pesos renders a centavo amount as a decimal peso value for the sheet.
func pesos(centavos int64) float64 {
	return float64(centavos) / 100
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
