package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ngvinh/circulib/internal/config"
)

// FinePolicy computes late fees. It is a pure value: no clock, no I/O.
type FinePolicy struct {
	Grace   time.Duration
	PerDiem decimal.Decimal
	MaxFine decimal.Decimal
}

// NewFinePolicy parses the configured amounts. Rates are decimal strings in
// config so they survive yaml/env round trips without float drift.
func NewFinePolicy(cfg config.FineConfig) (FinePolicy, error) {
	perDiem, err := decimal.NewFromString(cfg.PerDiem)
	if err != nil {
		return FinePolicy{}, fmt.Errorf("invalid fine per_diem %q: %w", cfg.PerDiem, err)
	}
	if perDiem.IsNegative() {
		return FinePolicy{}, fmt.Errorf("fine per_diem %q must not be negative", cfg.PerDiem)
	}
	maxFine, err := decimal.NewFromString(cfg.MaxFine)
	if err != nil {
		return FinePolicy{}, fmt.Errorf("invalid fine max_fine %q: %w", cfg.MaxFine, err)
	}
	if maxFine.IsNegative() {
		return FinePolicy{}, fmt.Errorf("fine max_fine %q must not be negative", cfg.MaxFine)
	}
	return FinePolicy{
		Grace:   cfg.GraceWindow(),
		PerDiem: perDiem,
		MaxFine: maxFine,
	}, nil
}

// Fine is zero through the grace window, then one per-diem per started late
// day, capped at MaxFine.
func (p FinePolicy) Fine(dueDate, now time.Time) decimal.Decimal {
	late := now.Sub(dueDate)
	if late <= p.Grace {
		return decimal.Zero
	}

	billable := late - p.Grace
	days := int64(billable / (24 * time.Hour))
	if billable%(24*time.Hour) != 0 {
		days++
	}

	fine := p.PerDiem.Mul(decimal.NewFromInt(days))
	if fine.GreaterThan(p.MaxFine) {
		return p.MaxFine
	}
	return fine
}
