package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/alejandrodnm/quantengine/internal/strategy"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de quantengine.
type Config struct {
	Strategy StrategyConfig `yaml:"strategy"`
	Loop     LoopConfig     `yaml:"loop"`
	Risk     RiskConfig     `yaml:"risk"`
	Broker   BrokerConfig   `yaml:"broker"`
	Backtest BacktestConfig `yaml:"backtest"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// StrategyConfig define la señal y el universo de símbolos.
type StrategyConfig struct {
	Name          string   `yaml:"name"`
	FastWindow    int      `yaml:"fast_window"`
	SlowWindow    int      `yaml:"slow_window"`
	MinConfidence float64  `yaml:"min_confidence"`
	Symbols       []string `yaml:"symbols"`
	Timeframe     string   `yaml:"timeframe"` // M1 | M5 | M15 | M30 | H1 | H4
	Bars          int      `yaml:"bars"`      // velas pedidas por símbolo y ciclo
}

// LoopConfig controla el polling del loop live.
type LoopConfig struct {
	PollingSeconds int    `yaml:"polling_seconds"`
	MaxCycles      int    `yaml:"max_cycles"` // 0 = sin límite
	StopFile       string `yaml:"stop_file"`
}

// RiskConfig son los límites del Risk Gate y del Position Sizer.
type RiskConfig struct {
	MaxDailyLoss         float64 `yaml:"max_daily_loss"`
	MaxDailyProfit       float64 `yaml:"max_daily_profit"`
	MaxPositions         int     `yaml:"max_positions"`
	RiskPerTradePercent  float64 `yaml:"risk_per_trade_percent"`
	StopLossPips         float64 `yaml:"stop_loss_pips"`
	TakeProfitPips       float64 `yaml:"take_profit_pips"`
	TrailingStartPips    float64 `yaml:"trailing_start_pips"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
}

// BrokerConfig elige el broker y el modo de ejecución.
type BrokerConfig struct {
	// PaperMode simula los fills en el ledger. nil = true.
	PaperMode      *bool        `yaml:"paper_mode"`
	BridgeURL      string       `yaml:"bridge_url"`
	BridgeToken    string       `yaml:"bridge_token"`
	Deviation      int          `yaml:"deviation"`
	InitialBalance float64      `yaml:"initial_balance"` // equity inicial del ledger paper
	Replay         ReplayConfig `yaml:"replay"`
}

// ReplayConfig activa el broker offline: si Files no está vacío el loop live
// reproduce esos CSV en vez de conectarse al bridge.
type ReplayConfig struct {
	Files  map[string]string `yaml:"files"` // símbolo → ruta CSV
	Spread float64           `yaml:"spread"`
	Point  float64           `yaml:"point"`
	Warmup int               `yaml:"warmup"`
}

// BacktestConfig son los valores por defecto del subcomando backtest/sweep.
type BacktestConfig struct {
	PriceColumn  string  `yaml:"price_column"`
	InitialCash  float64 `yaml:"initial_cash"`
	PositionSize float64 `yaml:"position_size"`
	Workers      int     `yaml:"workers"`
	FastGrid     []int   `yaml:"fast_grid"`
	SlowGrid     []int   `yaml:"slow_grid"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Con path vacío solo se aplican env y defaults.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	cfg := baseline()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// IsPaper indica si las órdenes se simulan en el ledger.
func (c *Config) IsPaper() bool {
	return c.Broker.PaperMode == nil || *c.Broker.PaperMode
}

// PollInterval devuelve el intervalo de polling como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Loop.PollingSeconds) * time.Second
}

// SMAParams devuelve las ventanas configuradas.
func (c *Config) SMAParams() strategy.SMAParams {
	return strategy.SMAParams{Fast: c.Strategy.FastWindow, Slow: c.Strategy.SlowWindow}
}

// RiskLimits convierte la sección risk al tipo de dominio.
func (c *Config) RiskLimits() domain.RiskLimits {
	r := c.Risk
	return domain.RiskLimits{
		MaxDailyLoss:         r.MaxDailyLoss,
		MaxDailyProfit:       r.MaxDailyProfit,
		MaxPositions:         r.MaxPositions,
		RiskPerTradePercent:  r.RiskPerTradePercent,
		StopLossPips:         r.StopLossPips,
		TakeProfitPips:       r.TakeProfitPips,
		TrailingStartPips:    r.TrailingStartPips,
		MaxConsecutiveLosses: r.MaxConsecutiveLosses,
	}
}

// Validate rechaza configuraciones incoherentes con domain.ErrConfiguration.
// Se reportan todos los problemas a la vez.
func (c *Config) Validate() error {
	var problems []string
	if err := c.SMAParams().Validate(); err != nil {
		problems = append(problems, fmt.Sprintf("strategy windows %d/%d invalid", c.Strategy.FastWindow, c.Strategy.SlowWindow))
	}
	if c.Strategy.MinConfidence < 0 || c.Strategy.MinConfidence > 1 {
		problems = append(problems, "strategy.min_confidence must be within [0, 1]")
	}
	if len(c.Strategy.Symbols) == 0 {
		problems = append(problems, "strategy.symbols is empty")
	}
	if c.Risk.RiskPerTradePercent <= 0 || c.Risk.RiskPerTradePercent > 100 {
		problems = append(problems, "risk.risk_per_trade_percent must be within (0, 100]")
	}
	if c.Risk.StopLossPips <= 0 {
		problems = append(problems, "risk.stop_loss_pips must be > 0")
	}
	if c.Risk.MaxDailyLoss < 0 || c.Risk.MaxDailyProfit < 0 || c.Risk.MaxPositions < 0 ||
		c.Risk.TakeProfitPips < 0 || c.Risk.TrailingStartPips < 0 || c.Risk.MaxConsecutiveLosses < 0 {
		problems = append(problems, "risk limits must not be negative")
	}
	if !c.IsPaper() && c.Broker.BridgeURL == "" && len(c.Broker.Replay.Files) == 0 {
		problems = append(problems, "broker.bridge_url is required when paper_mode is false")
	}
	if c.Backtest.InitialCash <= 0 || c.Backtest.PositionSize <= 0 {
		problems = append(problems, "backtest.initial_cash and backtest.position_size must be > 0")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is unknown", c.Log.Level))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("QE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("QE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("QE_BRIDGE_URL"); v != "" {
		cfg.Broker.BridgeURL = v
	}
	if v := os.Getenv("QE_BRIDGE_TOKEN"); v != "" {
		cfg.Broker.BridgeToken = v
	}
	if v := os.Getenv("QE_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("QE_PAPER_MODE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: QE_PAPER_MODE=%q is not a bool", domain.ErrConfiguration, v)
		}
		cfg.Broker.PaperMode = &b
	}
	if v := os.Getenv("QE_SYMBOLS"); v != "" {
		var symbols []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
		cfg.Strategy.Symbols = symbols
	}
	return nil
}

// baseline son los valores en los que 0 es un ajuste válido (regla desactivada).
// Se cargan antes del YAML para que un 0 explícito no se pise con el default.
func baseline() Config {
	return Config{
		Strategy: StrategyConfig{MinConfidence: 0.65},
		Risk: RiskConfig{
			MaxDailyLoss:         100,
			MaxDailyProfit:       250,
			MaxPositions:         5,
			TakeProfitPips:       30,
			TrailingStartPips:    10,
			MaxConsecutiveLosses: 3,
		},
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Strategy.Name == "" {
		cfg.Strategy.Name = strategy.SMACrossoverName
	}
	if cfg.Strategy.FastWindow == 0 && cfg.Strategy.SlowWindow == 0 {
		cfg.Strategy.FastWindow = 20
		cfg.Strategy.SlowWindow = 50
	}
	if len(cfg.Strategy.Symbols) == 0 {
		cfg.Strategy.Symbols = []string{"EURUSD", "GBPUSD", "USDJPY"}
	}
	if cfg.Strategy.Timeframe == "" {
		cfg.Strategy.Timeframe = "M5"
	}
	if cfg.Strategy.Bars <= 0 {
		cfg.Strategy.Bars = 500
	}
	if cfg.Loop.PollingSeconds <= 0 {
		cfg.Loop.PollingSeconds = 60
	}
	if cfg.Risk.RiskPerTradePercent == 0 {
		cfg.Risk.RiskPerTradePercent = 1.0
	}
	if cfg.Risk.StopLossPips == 0 {
		cfg.Risk.StopLossPips = 20
	}
	if cfg.Broker.Deviation <= 0 {
		cfg.Broker.Deviation = 20
	}
	if cfg.Broker.InitialBalance <= 0 {
		cfg.Broker.InitialBalance = 10000
	}
	if cfg.Backtest.PriceColumn == "" {
		cfg.Backtest.PriceColumn = domain.ColumnClose
	}
	if cfg.Backtest.InitialCash == 0 {
		cfg.Backtest.InitialCash = 10000
	}
	if cfg.Backtest.PositionSize == 0 {
		cfg.Backtest.PositionSize = 1
	}
	if cfg.Backtest.Workers <= 0 {
		cfg.Backtest.Workers = 4
	}
	if len(cfg.Backtest.FastGrid) == 0 {
		cfg.Backtest.FastGrid = []int{5, 10, 20}
	}
	if len(cfg.Backtest.SlowGrid) == 0 {
		cfg.Backtest.SlowGrid = []int{30, 50, 100}
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "quantengine.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
