package risk

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// DefaultPipValue applies when the broker does not report a point size.
	DefaultPipValue = 0.01
	// DefaultVolumeStep and DefaultMinVolume apply when symbol info is missing.
	DefaultVolumeStep = 0.01
	DefaultMinVolume  = 0.01
)

// SizeInput groups the sizing parameters.
type SizeInput struct {
	Balance      float64
	RiskPercent  float64 // 1.0 = 1% of balance
	StopLossPips float64
	PipValue     float64
	MinVolume    float64
	VolumeStep   float64
}

// Size converts the money at risk into an order volume: balance × risk% /
// (stop pips × pip value), rounded to the nearest step and raised to the
// broker minimum. The result is always positive.
func Size(in SizeInput) (float64, error) {
	for name, v := range map[string]float64{
		"balance":        in.Balance,
		"risk percent":   in.RiskPercent,
		"stop loss pips": in.StopLossPips,
		"pip value":      in.PipValue,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("risk.Size: %w: %s must be positive, got %v", domain.ErrConfiguration, name, v)
		}
	}
	if in.MinVolume < 0 || in.VolumeStep < 0 {
		return 0, fmt.Errorf("risk.Size: %w: negative broker volume constraints", domain.ErrConfiguration)
	}

	riskAmount := decimal.NewFromFloat(in.Balance).
		Mul(decimal.NewFromFloat(in.RiskPercent)).
		Div(decimal.NewFromInt(100))
	raw := riskAmount.Div(decimal.NewFromFloat(in.StopLossPips).Mul(decimal.NewFromFloat(in.PipValue)))

	vol := raw
	if in.VolumeStep > 0 {
		step := decimal.NewFromFloat(in.VolumeStep)
		vol = raw.Div(step).Round(0).Mul(step)
	}
	if minVol := decimal.NewFromFloat(in.MinVolume); vol.LessThan(minVol) {
		vol = minVol
	}
	if !vol.IsPositive() {
		floor := in.VolumeStep
		if floor <= 0 {
			floor = DefaultVolumeStep
		}
		vol = decimal.NewFromFloat(floor)
	}
	return vol.InexactFloat64(), nil
}

// PipValue derives the pip value from the broker point size (10 points per pip).
func PipValue(point float64) float64 {
	if !(point > 0) {
		return DefaultPipValue
	}
	return decimal.NewFromFloat(point).Mul(decimal.NewFromInt(10)).InexactFloat64()
}
