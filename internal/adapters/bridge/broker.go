package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/ports"
)

const sessionClient = "quantengine"

var _ ports.Broker = (*Client)(nil)

// Connect abre la sesión del terminal. Cualquier fallo es ErrSessionConnect.
func (c *Client) Connect(ctx context.Context) error {
	var resp sessionResponse
	if err := c.post(ctx, c.dataLimiter, maxRetries, "/session/connect", sessionRequest{Client: sessionClient}, &resp); err != nil {
		return fmt.Errorf("bridge.Connect: %w: %w", domain.ErrSessionConnect, err)
	}
	if !resp.Connected {
		return fmt.Errorf("bridge.Connect: %w: %s", domain.ErrSessionConnect, resp.Message)
	}
	return nil
}

// Disconnect libera la sesión.
func (c *Client) Disconnect(ctx context.Context) error {
	if err := c.post(ctx, c.dataLimiter, 0, "/session/disconnect", sessionRequest{Client: sessionClient}, nil); err != nil {
		return fmt.Errorf("bridge.Disconnect: %w", err)
	}
	return nil
}

// AccountInfo devuelve el snapshot de la cuenta.
func (c *Client) AccountInfo(ctx context.Context) (domain.AccountInfo, error) {
	var resp accountResponse
	if err := c.get(ctx, "/account", &resp); err != nil {
		return domain.AccountInfo{}, unavailable("bridge.AccountInfo", err)
	}
	return mapAccount(resp), nil
}

// Positions devuelve las posiciones abiertas en el terminal.
func (c *Client) Positions(ctx context.Context) ([]domain.BrokerPosition, error) {
	var raw []positionRaw
	if err := c.get(ctx, "/positions", &raw); err != nil {
		return nil, unavailable("bridge.Positions", err)
	}
	return mapPositions(raw), nil
}

// SymbolTick devuelve la última cotización.
func (c *Client) SymbolTick(ctx context.Context, symbol string) (domain.Tick, error) {
	var resp tickResponse
	if err := c.get(ctx, "/symbols/"+url.PathEscape(symbol)+"/tick", &resp); err != nil {
		return domain.Tick{}, unavailable("bridge.SymbolTick", err)
	}
	t := mapTick(resp)
	if t.Symbol == "" {
		t.Symbol = symbol
	}
	return t, nil
}

// SymbolInfo devuelve point y restricciones de volumen.
func (c *Client) SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	var resp symbolInfoResponse
	if err := c.get(ctx, "/symbols/"+url.PathEscape(symbol)+"/info", &resp); err != nil {
		return domain.SymbolInfo{}, unavailable("bridge.SymbolInfo", err)
	}
	info := mapSymbolInfo(resp)
	if info.Symbol == "" {
		info.Symbol = symbol
	}
	return info, nil
}

// Rates devuelve las últimas count velas en orden cronológico.
func (c *Client) Rates(ctx context.Context, symbol, timeframe string, count int) (domain.Bars, error) {
	q := url.Values{}
	q.Set("timeframe", timeframe)
	q.Set("count", strconv.Itoa(count))
	var raw []rateRaw
	if err := c.get(ctx, "/symbols/"+url.PathEscape(symbol)+"/rates?"+q.Encode(), &raw); err != nil {
		return nil, unavailable("bridge.Rates", err)
	}
	return mapRates(raw), nil
}

// SendOrder envía una orden a mercado. No se reintenta.
func (c *Client) SendOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	body := orderRequest{
		Symbol:    req.Symbol,
		Type:      typeFromSide(req.Side),
		Volume:    req.Volume,
		Price:     req.Price,
		Deviation: req.Deviation,
		Comment:   req.Comment,
	}
	var resp orderResponse
	if err := c.post(ctx, c.orderLimiter, 0, "/orders", body, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("bridge.SendOrder: %s: %w", req.Symbol, err)
	}
	return mapOrderResult(resp), nil
}

// ModifyStop mueve el stop-loss de la posición.
func (c *Client) ModifyStop(ctx context.Context, positionID int64, stop float64) (domain.OrderResult, error) {
	var resp orderResponse
	path := "/positions/" + strconv.FormatInt(positionID, 10) + "/stop"
	if err := c.post(ctx, c.orderLimiter, 0, path, modifyRequest{SL: stop}, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("bridge.ModifyStop: %d: %w", positionID, err)
	}
	return mapOrderResult(resp), nil
}

// ClosePosition cierra la posición con una orden opuesta por el volumen total.
func (c *Client) ClosePosition(ctx context.Context, pos domain.BrokerPosition) (domain.OrderResult, error) {
	body := closeRequest{
		Symbol: pos.Symbol,
		Volume: pos.Volume,
		Type:   typeFromSide(pos.Side.Opposite()),
	}
	var resp orderResponse
	path := "/positions/" + strconv.FormatInt(pos.ID, 10) + "/close"
	if err := c.post(ctx, c.orderLimiter, 0, path, body, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("bridge.ClosePosition: %d: %w", pos.ID, err)
	}
	return mapOrderResult(resp), nil
}

// unavailable marca como transitorio todo fallo de lectura salvo los 4xx.
func unavailable(op string, err error) error {
	if errors.Is(err, errClient) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrDataUnavailable, err)
}
