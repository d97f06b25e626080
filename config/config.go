package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Capital  CapitalConfig  `yaml:"capital"`
	Risk     RiskConfig     `yaml:"risk"`
	EV       EVConfig       `yaml:"ev"`
	Research ResearchConfig `yaml:"research"`
	Markets  MarketsConfig  `yaml:"markets"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// EngineConfig controla el ciclo de decisión.
type EngineConfig struct {
	IntervalSeconds  int `yaml:"interval_seconds"`
	ResearchWorkers  int `yaml:"research_workers"`
	MemoryDepth      int `yaml:"memory_depth"` // ciclos recientes que alimentan el contexto de research
	MaxRetryAttempts int `yaml:"max_retry_attempts"`
	RetryBackoffMS   int `yaml:"retry_backoff_ms"`
}

// CapitalConfig define el bankroll inicial y el guard de liquidez.
type CapitalConfig struct {
	TotalUSD       float64 `yaml:"total_usd"`
	CashFloorRatio float64 `yaml:"cash_floor_ratio"` // pausa de trading por debajo de esta fracción libre
}

// RiskConfig son los límites que el risk manager aplica en orden fijo.
type RiskConfig struct {
	ReserveMinimum      float64 `yaml:"reserve_minimum"`
	PerMarketCap        float64 `yaml:"per_market_cap"`
	GlobalCap           float64 `yaml:"global_cap"`
	LiquidityFloorRatio float64 `yaml:"liquidity_floor_ratio"`
	DailyStakeCap       float64 `yaml:"daily_stake_cap"` // 0 = sin límite diario
}

// EVConfig controla el cálculo de expected value y el sizing.
type EVConfig struct {
	TransactionCost float64 `yaml:"transaction_cost"`
	MinEdge         float64 `yaml:"min_edge"`
	MinConfidence   float64 `yaml:"min_confidence"`
	MaxSingleStake  float64 `yaml:"max_single_stake"`
}

// ResearchConfig controla la cache y el colaborador externo.
type ResearchConfig struct {
	TTLHours         int    `yaml:"ttl_hours"`
	MaxPerCycle      int    `yaml:"max_per_cycle"` // budget de llamadas pagadas por ciclo
	FetchesPerMinute int    `yaml:"fetches_per_minute"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	Model            string `yaml:"model"`
}

// MarketsConfig filtra qué mercados entran en un ciclo.
type MarketsConfig struct {
	Limit              int      `yaml:"limit"`
	MinLiquidity       float64  `yaml:"min_liquidity"`
	MinPrice           float64  `yaml:"min_price"`
	MaxPrice           float64  `yaml:"max_price"`
	MinHoursToResolve  float64  `yaml:"min_hours_to_resolve"`
	ExcludedCategories []string `yaml:"excluded_categories"`
}

// APIConfig contiene los base URLs y credentials de las APIs externas.
// Las credentials NUNCA van en el YAML: solo por entorno o .env.
type APIConfig struct {
	CLOBBase        string `yaml:"clob_base"`
	GammaBase       string `yaml:"gamma_base"`
	AnthropicBase   string `yaml:"anthropic_base"`
	AnthropicAPIKey string `yaml:"-"`
	PolyAddress     string `yaml:"-"`
	PolyAPIKey      string `yaml:"-"`
	PolySecret      string `yaml:"-"`
	PolyPassphrase  string `yaml:"-"`
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
// Los valores del entorno sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// CycleInterval devuelve el intervalo entre ciclos como time.Duration.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Engine.IntervalSeconds) * time.Second
}

// ResearchTTL devuelve la ventana de frescura de la research cache.
func (c *Config) ResearchTTL() time.Duration {
	return time.Duration(c.Research.TTLHours) * time.Hour
}

// RetryBackoff devuelve la base del backoff exponencial del executor.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Engine.RetryBackoffMS) * time.Millisecond
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.API.AnthropicAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_BASE_URL"); v != "" {
		cfg.API.AnthropicBase = v
	}
	if v := os.Getenv("POLY_ADDRESS"); v != "" {
		cfg.API.PolyAddress = v
	}
	if v := os.Getenv("POLY_API_KEY"); v != "" {
		cfg.API.PolyAPIKey = v
	}
	if v := os.Getenv("POLY_SECRET"); v != "" {
		cfg.API.PolySecret = v
	}
	if v := os.Getenv("POLY_PASSPHRASE"); v != "" {
		cfg.API.PolyPassphrase = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.IntervalSeconds <= 0 {
		cfg.Engine.IntervalSeconds = 900 // 15 min entre ciclos
	}
	if cfg.Engine.ResearchWorkers <= 0 {
		cfg.Engine.ResearchWorkers = 4
	}
	if cfg.Engine.MemoryDepth <= 0 {
		cfg.Engine.MemoryDepth = 3
	}
	if cfg.Engine.MaxRetryAttempts <= 0 {
		cfg.Engine.MaxRetryAttempts = 3
	}
	if cfg.Engine.RetryBackoffMS <= 0 {
		cfg.Engine.RetryBackoffMS = 2000
	}
	if cfg.Capital.TotalUSD <= 0 {
		cfg.Capital.TotalUSD = 1000
	}
	if cfg.Capital.CashFloorRatio <= 0 {
		cfg.Capital.CashFloorRatio = 0.2
	}
	if cfg.Risk.ReserveMinimum <= 0 {
		cfg.Risk.ReserveMinimum = 100
	}
	if cfg.Risk.PerMarketCap <= 0 {
		cfg.Risk.PerMarketCap = 100
	}
	if cfg.Risk.GlobalCap <= 0 {
		cfg.Risk.GlobalCap = 500
	}
	if cfg.Risk.LiquidityFloorRatio <= 0 {
		cfg.Risk.LiquidityFloorRatio = 0.01
	}
	if cfg.EV.TransactionCost <= 0 {
		cfg.EV.TransactionCost = 0.02
	}
	if cfg.EV.MinEdge <= 0 {
		cfg.EV.MinEdge = 0.10
	}
	if cfg.EV.MinConfidence <= 0 {
		cfg.EV.MinConfidence = 0.6
	}
	if cfg.EV.MaxSingleStake <= 0 {
		cfg.EV.MaxSingleStake = 50
	}
	if cfg.Research.TTLHours <= 0 {
		cfg.Research.TTLHours = 24
	}
	if cfg.Research.MaxPerCycle <= 0 {
		cfg.Research.MaxPerCycle = 5
	}
	if cfg.Research.FetchesPerMinute <= 0 {
		cfg.Research.FetchesPerMinute = 6
	}
	if cfg.Research.TimeoutSeconds <= 0 {
		cfg.Research.TimeoutSeconds = 90
	}
	if cfg.Markets.Limit <= 0 {
		cfg.Markets.Limit = 20
	}
	if cfg.Markets.MinLiquidity <= 0 {
		cfg.Markets.MinLiquidity = 5000
	}
	if cfg.Markets.MinPrice <= 0 {
		cfg.Markets.MinPrice = 0.20
	}
	if cfg.Markets.MaxPrice <= 0 {
		cfg.Markets.MaxPrice = 0.80
	}
	if cfg.Markets.MinHoursToResolve <= 0 {
		cfg.Markets.MinHoursToResolve = 24
	}
	if cfg.Markets.ExcludedCategories == nil {
		cfg.Markets.ExcludedCategories = []string{"sports", "price-betting"}
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "evbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
