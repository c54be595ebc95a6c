package movement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/notify"
	"factoryledger/pkg/logger"
)

// Period is a rolling statistics window ending now.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Duration is the window length. Windows are not calendar aligned.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodDay:
		return 24 * time.Hour
	case PeriodWeek:
		return 7 * 24 * time.Hour
	case PeriodYear:
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

// ParsePeriod maps an empty value to month.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodMonth, nil
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return Period(s), nil
	}
	return "", apperror.NewValidation("period must be one of day, week, month, year").
		WithDetail("field", "period")
}

// Statistics sums movement magnitudes over a window.
type Statistics struct {
	Period           Period                              `json:"period"`
	Since            time.Time                           `json:"since"`
	TotalIn          decimal.Decimal                     `json:"totalIn"`
	TotalOut         decimal.Decimal                     `json:"totalOut"`
	TotalAdjustments decimal.Decimal                     `json:"totalAdjustments"`
	MovementsByType  map[entity.ItemType]decimal.Decimal `json:"movementsByType"`
	Count            int                                 `json:"count"`
}

func emptyStatistics(p Period, since time.Time) Statistics {
	byType := make(map[entity.ItemType]decimal.Decimal, len(entity.ItemTypes))
	for _, t := range entity.ItemTypes {
		byType[t] = decimal.Zero
	}
	return Statistics{
		Period:           p,
		Since:            since,
		TotalIn:          decimal.Zero,
		TotalOut:         decimal.Zero,
		TotalAdjustments: decimal.Zero,
		MovementsByType:  byType,
	}
}

// Statistics computes totals for the window [now-period, now].
// Failures yield zeroed statistics and a notification.
func (s *Service) Statistics(ctx context.Context, period Period) Statistics {
	if period == "" {
		period = PeriodMonth
	}
	since := s.now().UTC().Add(-period.Duration())
	stats := emptyStatistics(period, since)

	totals, err := s.repo.Totals(ctx, since)
	if err != nil {
		logger.Error(ctx, "failed to compute movement statistics", "period", period, "error", err)
		notify.Error(ctx, s.notifier, "Inventory statistics", "Could not compute movement statistics")
		return stats
	}

	for _, t := range totals {
		qty := t.Quantity.Abs()
		switch t.MovementType {
		case entity.MovementIn:
			stats.TotalIn = stats.TotalIn.Add(qty)
		case entity.MovementOut:
			stats.TotalOut = stats.TotalOut.Add(qty)
		case entity.MovementAdjustment:
			stats.TotalAdjustments = stats.TotalAdjustments.Add(qty)
		}
		stats.MovementsByType[t.ItemType] = stats.MovementsByType[t.ItemType].Add(qty)
		stats.Count += t.Count
	}
	return stats
}
