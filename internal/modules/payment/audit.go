package payment

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"tablebooking/internal/domain"
	"tablebooking/internal/pkg/apperr"
)

const (
	auditSheet     = "Payments"
	maxExportDays  = 366
	auditTimestamp = "2006-01-02 15:04:05"
)

var auditColumns = []string{
	"ID", "Recorded At", "Booking ID", "Event ID", "Payment Intent", "Event Type",
	"Outcome", "Applied", "Amount", "Currency", "Error",
}

// ListAudit returns the payment history of one booking, oldest first.
func (s *Service) ListAudit(ctx context.Context, bookingID int64) ([]domain.PaymentAuditEntry, error) {
	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()

	r := s.store.Repos()
	if _, err := r.Bookings.GetByID(ctx, bookingID); err != nil {
		return nil, err
	}
	entries, err := r.Audit.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.PaymentAuditEntry{}
	}
	return entries, nil
}

// ExportAudit renders every audit entry recorded between the two venue dates
// (inclusive) as an .xlsx workbook.
func (s *Service) ExportAudit(ctx context.Context, req ExportRequest) (*bytes.Buffer, error) {
	from, err := domain.ParseDate(req.From)
	if err != nil {
		return nil, apperr.Invalid("from", "date", "from must be YYYY-MM-DD")
	}
	to, err := domain.ParseDate(req.To)
	if err != nil {
		return nil, apperr.Invalid("to", "date", "to must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return nil, apperr.Invalid("to", "gtefield", "to must not be before from")
	}
	if from.AddDays(maxExportDays).Before(to) {
		return nil, apperr.Invalid("to", "max", fmt.Sprintf("export covers at most %d days", maxExportDays))
	}

	start := from.In(s.cfg.Location)
	end := to.AddDays(1).In(s.cfg.Location)

	sctx, cancel := s.store.WithTimeout(ctx)
	entries, err := s.store.Repos().Audit.ListRange(sctx, start, end)
	cancel()
	if err != nil {
		return nil, err
	}

	buf, err := writeAuditWorkbook(entries, s.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("render audit export: %w", err)
	}
	s.log.Info().Str("from", req.From).Str("to", req.To).Int("rows", len(entries)).Msg("payment audit exported")
	return buf, nil
}

func writeAuditWorkbook(entries []domain.PaymentAuditEntry, loc *time.Location) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", auditSheet); err != nil {
		return nil, err
	}

	header := make([]interface{}, len(auditColumns))
	for i, c := range auditColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(auditSheet, "A1", &header); err != nil {
		return nil, err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(auditColumns), 1)
		_ = f.SetCellStyle(auditSheet, "A1", last, style)
	}

	for i, e := range entries {
		eventID := ""
		if e.GatewayEventID != nil {
			eventID = *e.GatewayEventID
		}
		row := []interface{}{
			e.ID,
			e.CreatedAt.In(loc).Format(auditTimestamp),
			e.BookingID,
			eventID,
			e.PaymentIntentID,
			e.EventType,
			string(e.Outcome),
			e.Applied,
			e.Amount,
			e.Currency,
			e.ErrorMessage,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(auditSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	return f.WriteToBuffer()
}
