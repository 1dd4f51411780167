// Package history carga series OHLCV desde ficheros CSV.
//
// Formato esperado (cabecera obligatoria, orden de columnas libre):
//
//	time,open,high,low,close,volume
//
// "time" acepta también "date", "datetime" o "timestamp". Solo time y close son
// obligatorias: open/high/low ausentes toman el close y volume ausente vale 0.
package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
)

var timeAliases = []string{"time", "date", "datetime", "timestamp"}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.DateTime,
	"2006-01-02T15:04:05",
	"2006.01.02 15:04",
	time.DateOnly,
}

// Options filtra las velas cargadas a [From, To). Cero = sin límite.
type Options struct {
	From time.Time
	To   time.Time
}

// LoadCSV abre path y parsea sus velas.
func LoadCSV(path string, opts Options) (domain.Bars, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("history.LoadCSV: open %q: %w", path, err)
	}
	defer f.Close()

	bars, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("history.LoadCSV: %s: %w", path, err)
	}
	return bars, nil
}

// ReadCSV parsea velas desde r. El resultado se valida con Bars.Validate, así
// que timestamps duplicados o desordenados devuelven domain.ErrSchema.
func ReadCSV(r io.Reader, opts Options) (domain.Bars, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: csv has no header", domain.ErrEmptyInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var bars domain.Bars
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if blank(row) {
			continue
		}
		bar, err := parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", domain.ErrSchema, line, err)
		}
		if !inRange(bar.Time, opts.From, opts.To) {
			continue
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: csv has no bars", domain.ErrEmptyInput)
	}
	if err := bars.Validate(); err != nil {
		return nil, err
	}
	return bars, nil
}

// columns guarda el índice de cada campo en la fila (-1 = ausente).
type columns struct {
	time, open, high, low, close, volume int
}

func mapColumns(header []string) (columns, error) {
	c := columns{time: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch name {
		case domain.ColumnOpen:
			c.open = i
		case domain.ColumnHigh:
			c.high = i
		case domain.ColumnLow:
			c.low = i
		case domain.ColumnClose:
			c.close = i
		case domain.ColumnVolume:
			c.volume = i
		default:
			for _, alias := range timeAliases {
				if name == alias && c.time < 0 {
					c.time = i
				}
			}
		}
	}
	if c.time < 0 {
		return c, fmt.Errorf("%w: csv header has no time column", domain.ErrSchema)
	}
	if c.close < 0 {
		return c, fmt.Errorf("%w: csv header has no close column", domain.ErrSchema)
	}
	return c, nil
}

func parseRow(row []string, c columns) (domain.PriceBar, error) {
	var bar domain.PriceBar
	var err error

	if bar.Time, err = parseTime(field(row, c.time)); err != nil {
		return bar, err
	}
	if bar.Close, err = parseFloat(field(row, c.close), domain.ColumnClose); err != nil {
		return bar, err
	}
	bar.Open, bar.High, bar.Low = bar.Close, bar.Close, bar.Close
	if c.open >= 0 {
		if bar.Open, err = parseFloat(field(row, c.open), domain.ColumnOpen); err != nil {
			return bar, err
		}
	}
	if c.high >= 0 {
		if bar.High, err = parseFloat(field(row, c.high), domain.ColumnHigh); err != nil {
			return bar, err
		}
	}
	if c.low >= 0 {
		if bar.Low, err = parseFloat(field(row, c.low), domain.ColumnLow); err != nil {
			return bar, err
		}
	}
	if c.volume >= 0 && field(row, c.volume) != "" {
		if bar.Volume, err = parseFloat(field(row, c.volume), domain.ColumnVolume); err != nil {
			return bar, err
		}
	}
	return bar, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseFloat(s, name string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q", name, s)
	}
	return v, nil
}

// parseTime acepta los layouts conocidos o segundos Unix. Sin zona se asume UTC.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty time")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
