package risk

import "time"

// DayAnchor remembers the equity at the start of the current UTC trading day.
type DayAnchor struct {
	day   time.Time
	start float64
}

// Observe returns the PnL of the day containing now. The first observation of
// a new UTC day re-anchors on equity.
func (a *DayAnchor) Observe(now time.Time, equity float64) float64 {
	day := TradingDay(now)
	if a.day.IsZero() || day.After(a.day) {
		a.day = day
		a.start = equity
	}
	return equity - a.start
}

// Day is the UTC midnight of the anchored day; zero before the first Observe.
func (a *DayAnchor) Day() time.Time {
	return a.day
}

// StartEquity is the equity anchored for the current day.
func (a *DayAnchor) StartEquity() float64 {
	return a.start
}

// TradingDay is the UTC midnight of the day containing t.
func TradingDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
