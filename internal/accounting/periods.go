package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ReportingYear returns the fiscal year a date falls in for the entity.
func ReportingYear(e Entity, day time.Time) int {
	start := yearStart(e)
	if day.Month() < start {
		return day.Year() - 1
	}
	return day.Year()
}

// PeriodStart returns the first instant of the fiscal year containing day.
func PeriodStart(e Entity, day time.Time) time.Time {
	return time.Date(ReportingYear(e, day), yearStart(e), 1, 0, 0, 0, 0, day.Location())
}

// PeriodEnd returns the last instant of the fiscal year containing day.
func PeriodEnd(e Entity, day time.Time) time.Time {
	return PeriodStart(e, day).AddDate(1, 0, 0).Add(-time.Nanosecond)
}

// YearBounds returns the fiscal year window for a calendar year label.
func YearBounds(e Entity, year int) (time.Time, time.Time) {
	start := time.Date(year, yearStart(e), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0).Add(-time.Nanosecond)
}

func yearStart(e Entity) time.Month {
	if e.YearStart < time.January || e.YearStart > time.December {
		return time.January
	}
	return e.YearStart
}

func validatePeriodTransition(current, target PeriodStatus) error {
	if err := shared.ValidatePeriodTransition(string(current), string(target)); err != nil {
		return fmt.Errorf("accounting: %w: %s to %s", err, current, target)
	}
	return nil
}

// ensurePeriod returns the period for a fiscal year, creating it when missing.
func (s *Service) ensurePeriod(ctx context.Context, tx TxRepository, entity Entity, year int) (ReportingPeriod, error) {
	period, err := tx.GetPeriodByYear(ctx, entity.ID, year)
	if err == nil {
		return period, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return ReportingPeriod{}, err
	}
	periods, err := tx.ListPeriods(ctx, entity.ID)
	if err != nil {
		return ReportingPeriod{}, err
	}
	count := 0
	for _, p := range periods {
		if p.PeriodCount > count {
			count = p.PeriodCount
		}
	}
	now := s.now()
	return tx.InsertPeriod(ctx, ReportingPeriod{
		EntityID:     entity.ID,
		CalendarYear: year,
		PeriodCount:  count + 1,
		Status:       PeriodStatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// writablePeriod returns the open period a write dated day lands in.
func (s *Service) writablePeriod(ctx context.Context, tx TxRepository, entity Entity, day time.Time) (ReportingPeriod, error) {
	period, err := s.ensurePeriod(ctx, tx, entity, ReportingYear(entity, day))
	if err != nil {
		return ReportingPeriod{}, err
	}
	if period.Status == PeriodStatusClosed {
		return ReportingPeriod{}, ErrPeriodClosed
	}
	return period, nil
}

// CurrentPeriod returns the reporting period containing the service clock.
func (s *Service) CurrentPeriod(ctx context.Context, scope Scope) (ReportingPeriod, error) {
	var period ReportingPeriod
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, err := tx.GetEntity(ctx, scope.EntityID)
		if err != nil {
			return err
		}
		period, err = s.ensurePeriod(ctx, tx, entity, ReportingYear(entity, s.now()))
		return err
	})
	return period, err
}

// Period returns the reporting period of a fiscal year.
func (s *Service) Period(ctx context.Context, scope Scope, year int) (ReportingPeriod, error) {
	var period ReportingPeriod
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		var err error
		period, err = tx.GetPeriodByYear(ctx, scope.EntityID, year)
		return err
	})
	return period, err
}

// SetPeriodStatus moves a period forward in its lifecycle.
func (s *Service) SetPeriodStatus(ctx context.Context, scope Scope, periodID int64, status PeriodStatus) (ReportingPeriod, error) {
	var period ReportingPeriod
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		var err error
		period, err = s.transitionPeriod(ctx, tx, scope.EntityID, periodID, status)
		return err
	})
	if err != nil {
		return ReportingPeriod{}, err
	}
	s.record(ctx, scope, "period.status", "reporting_period", fmt.Sprintf("%d", period.ID), map[string]any{
		"year":   period.CalendarYear,
		"status": string(period.Status),
	})
	return period, nil
}

func (s *Service) transitionPeriod(ctx context.Context, tx TxRepository, entityID, periodID int64, status PeriodStatus) (ReportingPeriod, error) {
	period, err := tx.GetPeriodForUpdate(ctx, entityID, periodID)
	if err != nil {
		return ReportingPeriod{}, err
	}
	if err := validatePeriodTransition(period.Status, status); err != nil {
		return ReportingPeriod{}, err
	}
	if period.Status == status {
		return period, nil
	}
	now := s.now()
	period.Status = status
	period.UpdatedAt = now
	if status == PeriodStatusClosed {
		period.ClosingDate = &now
	}
	if err := tx.UpdatePeriod(ctx, period); err != nil {
		return ReportingPeriod{}, err
	}
	return period, nil
}
