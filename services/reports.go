package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go-bnpl/bnpl"
	"go-bnpl/models"
	"go-bnpl/repository"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

const dueSoonWindow = 30 * 24 * time.Hour

type ReportService struct {
	Orders repository.OrderStore
	Now    func() time.Time
}

func NewReportService(orders repository.OrderStore) *ReportService {
	return &ReportService{Orders: orders, Now: utcNow}
}

// ReportSummary is the admin dashboard's receivables view. Cancelled orders
// are counted but excluded from every amount.
type ReportSummary struct {
	OrderCount          int                          `json:"order_count"`
	CancelledCount      int                          `json:"cancelled_count"`
	OrdersByMethod      map[models.PaymentMethod]int `json:"orders_by_method"`
	GrossSales          decimal.Decimal              `json:"gross_sales"`
	BNPLFinanced        decimal.Decimal              `json:"bnpl_financed"`
	InterestEarned      decimal.Decimal              `json:"interest_earned"`
	Collected           decimal.Decimal              `json:"collected"`
	Outstanding         decimal.Decimal              `json:"outstanding"`
	OverdueInstallments int                          `json:"overdue_installments"`
	OverdueAmount       decimal.Decimal              `json:"overdue_amount"`
	PenaltiesAccrued    decimal.Decimal              `json:"penalties_accrued"`
	DueNext30Days       decimal.Decimal              `json:"due_next_30_days"`
	GeneratedAt         time.Time                    `json:"generated_at"`
}

func (s *ReportService) Summary(ctx context.Context) (*ReportSummary, error) {
	orders, err := s.Orders.List(ctx, repository.OrderFilter{})
	if err != nil {
		return nil, err
	}
	now := s.Now()
	r := &ReportSummary{
		OrdersByMethod:   make(map[models.PaymentMethod]int),
		GrossSales:       decimal.Zero,
		BNPLFinanced:     decimal.Zero,
		InterestEarned:   decimal.Zero,
		Collected:        decimal.Zero,
		Outstanding:      decimal.Zero,
		OverdueAmount:    decimal.Zero,
		PenaltiesAccrued: decimal.Zero,
		DueNext30Days:    decimal.Zero,
		GeneratedAt:      now,
	}

	horizon := now.Add(dueSoonWindow)
	for i := range orders {
		o := &orders[i]
		r.OrderCount++
		r.OrdersByMethod[o.PaymentMethod]++
		if o.Status == models.OrderStatusCancelled {
			r.CancelledCount++
			continue
		}

		sum := o.Summary(now)
		r.GrossSales = r.GrossSales.Add(o.GrandTotal)
		r.BNPLFinanced = r.BNPLFinanced.Add(o.BNPLAmount)
		r.InterestEarned = r.InterestEarned.Add(o.BNPLTotalPayable.Sub(o.BNPLAmount))
		r.Collected = r.Collected.Add(sum.Paid).Add(sum.PenaltyPaid)
		r.Outstanding = r.Outstanding.Add(sum.Outstanding).Add(sum.PenaltyDue)
		r.OverdueInstallments += sum.OverdueCount
		r.OverdueAmount = r.OverdueAmount.Add(sum.OverdueAmount)
		r.PenaltiesAccrued = r.PenaltiesAccrued.Add(sum.PenaltyDue).Add(sum.PenaltyPaid)

		for _, row := range scheduleRows(o, now) {
			if row.Status == bnpl.StatusPending && !row.Overdue && !row.DueDate.After(horizon) {
				r.DueNext30Days = r.DueNext30Days.Add(row.Amount).Add(row.Penalty)
			}
		}
	}
	return r, nil
}

// ScheduleRow is one BNPL due of one order.
type ScheduleRow struct {
	OrderID           string                 `json:"order_id"`
	Reference         string                 `json:"reference"`
	UserID            string                 `json:"user_id"`
	Kind              bnpl.PortionKind       `json:"kind"`
	InstallmentNumber int                    `json:"installment_number,omitempty"`
	Amount            decimal.Decimal        `json:"amount"`
	Penalty           decimal.Decimal        `json:"penalty"`
	DueDate           time.Time              `json:"due_date"`
	Status            bnpl.InstallmentStatus `json:"status"`
	PaidAt            *time.Time             `json:"paid_at,omitempty"`
	Overdue           bool                   `json:"overdue"`
	DaysOverdue       int                    `json:"days_overdue"`
}

func scheduleRows(o *models.Order, now time.Time) []ScheduleRow {
	base := ScheduleRow{OrderID: o.ID.Hex(), Reference: o.Reference, UserID: o.UserID.Hex()}
	var rows []ScheduleRow
	add := func(row ScheduleRow, paid bool) {
		if !paid {
			row.DaysOverdue = bnpl.DaysOverdue(row.DueDate, now)
			row.Overdue = row.DaysOverdue > 0
		}
		rows = append(rows, row)
	}
	for _, inst := range o.Installments {
		row := base
		row.Kind = bnpl.PortionInstallment
		row.InstallmentNumber = inst.Number
		row.Amount, row.Penalty, row.DueDate = inst.Amount, inst.Penalty, inst.DueDate
		row.Status, row.PaidAt = inst.Status, inst.PaidAt
		add(row, inst.IsPaid())
	}
	if fd := o.FixedDuration; fd != nil {
		row := base
		row.Kind = bnpl.PortionFixedDuration
		row.Amount, row.Penalty, row.DueDate = fd.Amount, fd.Penalty, fd.DueDate
		row.Status, row.PaidAt = fd.Status, fd.PaidAt
		add(row, fd.IsPaid())
	}
	return rows
}

// ParseScheduleFilter accepts "", "all", "pending", "paid" and "overdue".
// Pending excludes overdue dues.
func ParseScheduleFilter(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", "all":
		return "", nil
	case "pending", "paid", "overdue":
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown schedule filter %q", ErrInvalidInput, s)
	}
}

func (r ScheduleRow) matches(filter string) bool {
	switch filter {
	case "pending":
		return r.Status == bnpl.StatusPending && !r.Overdue
	case "paid":
		return r.Status == bnpl.StatusPaid
	case "overdue":
		return r.Overdue
	}
	return true
}

// Schedules lists the dues of every non-cancelled BNPL order sorted by due date.
func (s *ReportService) Schedules(ctx context.Context, filter string) ([]ScheduleRow, error) {
	filter, err := ParseScheduleFilter(filter)
	if err != nil {
		return nil, err
	}
	orders, err := s.Orders.List(ctx, repository.OrderFilter{})
	if err != nil {
		return nil, err
	}

	now := s.Now()
	rows := make([]ScheduleRow, 0)
	for i := range orders {
		if orders[i].Status == models.OrderStatusCancelled {
			continue
		}
		for _, row := range scheduleRows(&orders[i], now) {
			if row.matches(filter) {
				rows = append(rows, row)
			}
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].DueDate.Equal(rows[j].DueDate) {
			return rows[i].DueDate.Before(rows[j].DueDate)
		}
		if rows[i].Reference != rows[j].Reference {
			return rows[i].Reference < rows[j].Reference
		}
		return rows[i].InstallmentNumber < rows[j].InstallmentNumber
	})
	return rows, nil
}

// ExportSchedules writes the filtered schedules as an xlsx workbook.
func (s *ReportService) ExportSchedules(ctx context.Context, w io.Writer, filter string) error {
	rows, err := s.Schedules(ctx, filter)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Schedules")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	headers := []string{
		"Reference", "Order ID", "User ID", "Kind", "Installment", "Amount", "Penalty",
		"Due Date", "Status", "Paid At", "Overdue", "Days Overdue",
	}
	header := sheet.AddRow()
	for _, h := range headers {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Reference)
		row.AddCell().SetString(r.OrderID)
		row.AddCell().SetString(r.UserID)
		row.AddCell().SetString(string(r.Kind))
		if r.Kind == bnpl.PortionInstallment {
			row.AddCell().SetInt(r.InstallmentNumber)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(r.Amount.StringFixed(2))
		row.AddCell().SetString(r.Penalty.StringFixed(2))
		row.AddCell().SetString(r.DueDate.Format("2006-01-02"))
		row.AddCell().SetString(string(r.Status))
		if r.PaidAt != nil {
			row.AddCell().SetString(r.PaidAt.Format("2006-01-02 15:04:05"))
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetBool(r.Overdue)
		row.AddCell().SetInt(r.DaysOverdue)
	}
	return file.Write(w)
}
