// Package bridge implementa ports.Broker contra un gateway HTTP/JSON que
// expone la sesión del terminal del broker (cuenta, cotizaciones, velas y
// órdenes).
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "http://127.0.0.1:8787"

	// Datos de mercado: el loop hace ~5 llamadas por símbolo y ciclo.
	dataRatePerSec = 20
	// Órdenes: nunca más de 5/s contra el terminal.
	orderRatePerSec = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// errClient marca respuestas 4xx: no se reintentan.
var errClient = errors.New("client error")

// Client es el HTTP client del bridge con rate limiting y retries.
// Es seguro para uso concurrente.
type Client struct {
	http         *http.Client
	baseURL      string
	token        string
	retryWait    time.Duration
	dataLimiter  *rate.Limiter
	orderLimiter *rate.Limiter
	logger       *slog.Logger
}

// Option configura el Client.
type Option func(*Client)

// WithToken envía "Authorization: Bearer <token>" en cada petición.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient reemplaza el http.Client por defecto (timeout 10s).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetryWait cambia la espera base del backoff exponencial.
func WithRetryWait(d time.Duration) Option {
	return func(c *Client) { c.retryWait = d }
}

// WithLogger inyecta el logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient crea un Client contra baseURL. Si está vacío usa el gateway local.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		http:         &http.Client{Timeout: 10 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		retryWait:    baseRetryWait,
		dataLimiter:  rate.NewLimiter(dataRatePerSec, 10),
		orderLimiter: rate.NewLimiter(orderRatePerSec, 1),
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doWithRetry(ctx, c.dataLimiter, maxRetries, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, path, nil)
	}, out)
}

// post hace un POST JSON. Las órdenes no son idempotentes: retries = 0 salvo
// para llamadas de sesión.
func (c *Client) post(ctx context.Context, limiter *rate.Limiter, retries int, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	return c.doWithRetry(ctx, limiter, retries, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(b))
	}, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// doWithRetry ejecuta la petición con backoff exponencial ante errores de red,
// 429 y 5xx. Los 4xx se devuelven sin reintentar.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, retries int, build func() (*http.Request, error), out any) error {
	for attempt := 0; attempt <= retries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := build()
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == retries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == retries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, attempt)
			}
			c.logger.Warn("bridge: retrying", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("%w %d: %s", errClient, resp.StatusCode, strings.TrimSpace(string(body)))
		}

		defer resp.Body.Close()
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", retries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
