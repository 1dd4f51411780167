package bridge

import (
	"strconv"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
)

const (
	orderTypeBuy  = 0
	orderTypeSell = 1
)

func sideFromType(t int) domain.Side {
	if t == orderTypeSell {
		return domain.SideSell
	}
	return domain.SideBuy
}

func typeFromSide(s domain.Side) int {
	if s == domain.SideSell {
		return orderTypeSell
	}
	return orderTypeBuy
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func mapAccount(r accountResponse) domain.AccountInfo {
	return domain.AccountInfo{
		Login:    r.Login,
		Currency: r.Currency,
		Equity:   r.Equity,
		Balance:  r.Balance,
	}
}

func mapPositions(raw []positionRaw) []domain.BrokerPosition {
	out := make([]domain.BrokerPosition, 0, len(raw))
	for _, p := range raw {
		out = append(out, domain.BrokerPosition{
			ID:           p.Ticket,
			Symbol:       p.Symbol,
			Side:         sideFromType(p.Type),
			Volume:       p.Volume,
			PriceOpen:    p.PriceOpen,
			PriceCurrent: p.PriceCurrent,
			StopLoss:     p.SL,
			TakeProfit:   p.TP,
			OpenTime:     unixTime(p.Time),
		})
	}
	return out
}

func mapTick(r tickResponse) domain.Tick {
	return domain.Tick{Symbol: r.Symbol, Bid: r.Bid, Ask: r.Ask, Time: unixTime(r.Time)}
}

func mapSymbolInfo(r symbolInfoResponse) domain.SymbolInfo {
	return domain.SymbolInfo{
		Symbol:     r.Symbol,
		Point:      r.Point,
		VolumeMin:  r.VolumeMin,
		VolumeStep: r.VolumeStep,
	}
}

func mapRates(raw []rateRaw) domain.Bars {
	bars := make(domain.Bars, 0, len(raw))
	for _, r := range raw {
		bars = append(bars, domain.PriceBar{
			Time:   unixTime(r.Time),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.TickVolume,
		})
	}
	return bars
}

func mapOrderResult(r orderResponse) domain.OrderResult {
	id := ""
	switch {
	case r.Order != 0:
		id = strconv.FormatInt(r.Order, 10)
	case r.Deal != 0:
		id = strconv.FormatInt(r.Deal, 10)
	}
	return domain.OrderResult{
		Retcode:   r.Retcode,
		OrderID:   id,
		FillPrice: r.Price,
		Profit:    r.Profit,
		Comment:   r.Comment,
	}
}
