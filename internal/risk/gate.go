// Package risk holds the admission checks evaluated before opening a position
// and the volume sizing used by the live loop.
package risk

import (
	"fmt"
	"strings"

	"github.com/alejandrodnm/quantengine/internal/domain"
)

// Violation codes.
const (
	CodeDailyLossLimit    = "DAILY_LOSS_LIMIT"
	CodeDailyProfitTarget = "DAILY_PROFIT_TARGET"
	CodeMaxPositions      = "MAX_POSITIONS"
	CodeSymbolCooldown    = "SYMBOL_COOLDOWN"
)

type Violation struct {
	Code string
	Msg  string
}

// Decision is the outcome of one admission check. All rules are evaluated so
// every violation is reported, not only the first.
type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Codes returns the violation codes in evaluation order.
func (d Decision) Codes() []string {
	out := make([]string, len(d.Violations))
	for i, v := range d.Violations {
		out[i] = v.Code
	}
	return out
}

// Reason joins the violation messages for logging.
func (d Decision) Reason() string {
	msgs := make([]string, len(d.Violations))
	for i, v := range d.Violations {
		msgs[i] = v.Msg
	}
	return strings.Join(msgs, "; ")
}

// Snapshot is the state a new-entry attempt is judged against.
type Snapshot struct {
	DailyPnL      float64
	OpenPositions int
	Symbol        domain.SymbolState
}

// Gate is stateless; limits set to zero disable their rule.
type Gate struct {
	Limits domain.RiskLimits
}

func NewGate(limits domain.RiskLimits) Gate {
	return Gate{Limits: limits}
}

// Evaluate runs the four admission rules. Any violation rejects the entry.
func (g Gate) Evaluate(s Snapshot) Decision {
	d := Decision{Allowed: true}
	l := g.Limits

	if l.MaxDailyLoss > 0 && s.DailyPnL <= -l.MaxDailyLoss {
		d.add(CodeDailyLossLimit,
			fmt.Sprintf("daily pnl %.2f <= -%.2f", s.DailyPnL, l.MaxDailyLoss))
	}
	if l.MaxDailyProfit > 0 && s.DailyPnL >= l.MaxDailyProfit {
		d.add(CodeDailyProfitTarget,
			fmt.Sprintf("daily pnl %.2f >= target %.2f", s.DailyPnL, l.MaxDailyProfit))
	}
	if l.MaxPositions > 0 && s.OpenPositions >= l.MaxPositions {
		d.add(CodeMaxPositions,
			fmt.Sprintf("open positions %d >= max %d", s.OpenPositions, l.MaxPositions))
	}
	if l.MaxConsecutiveLosses > 0 && s.Symbol.ConsecutiveLosses >= l.MaxConsecutiveLosses {
		d.add(CodeSymbolCooldown,
			fmt.Sprintf("consecutive losses %d >= max %d", s.Symbol.ConsecutiveLosses, l.MaxConsecutiveLosses))
	}
	return d
}
