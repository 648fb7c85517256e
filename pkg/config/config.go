package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	xutil "StockScreener/pkg/util"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Redis       RedisConfig      `yaml:"redis"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Provider    ProviderConfig   `yaml:"provider"`
	Indicators  IndicatorsConfig `yaml:"indicators"`
	Filtering   FilteringConfig  `yaml:"filtering"`
	Financial   FinancialConfig  `yaml:"financial_metrics"`
	Trend       TrendConfig      `yaml:"trend"`
	Jobs        JobsConfig       `yaml:"jobs"`
	Schedule    ScheduleConfig   `yaml:"schedule"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"5s"`
	CORS            bool          `yaml:"cors" default:"true"`
	WatchInterval   time.Duration `yaml:"watch_interval" default:"1s"`
	RateLimit       struct {
		Burst     float64 `yaml:"burst" default:"5"`
		PerSecond float64 `yaml:"per_second" default:"0.5"`
	} `yaml:"rate_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
	Output string `yaml:"output" default:"stdout"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

// RedisConfig selects the result store backend. When disabled an in-process
// cache is used.
type RedisConfig struct {
	Enabled        bool          `yaml:"enabled" default:"true"`
	Addr           string        `yaml:"addr" default:"localhost:6379"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	Prefix         string        `yaml:"prefix"`
	PoolSize       int           `yaml:"pool_size" default:"20"`
	MinIdleConns   int           `yaml:"min_idle_conns" default:"2"`
	Timeout        time.Duration `yaml:"timeout" default:"5s"`
	ExpirationDays int           `yaml:"expiration_days" default:"7"`
	SymbolsTTL     time.Duration `yaml:"symbols_ttl" default:"24h"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"screener"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert" default:"true"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	MinArchivePoints int           `yaml:"min_archive_points" default:"30"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	RequiredAcks int      `yaml:"required_acks" default:"1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Topics       struct {
		Verdicts string `yaml:"verdicts" default:"screener.verdicts"`
		Jobs     string `yaml:"jobs" default:"screener.jobs"`
		Requests string `yaml:"requests" default:"screener.requests"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
		AutoCreate   bool          `yaml:"auto_create_topics"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled"`
		GroupID    string        `yaml:"group_id" default:"stock-screener"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"64"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"screener.requests.dlq"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type ProviderConfig struct {
	BaseURL         string        `yaml:"base_url" default:"https://financialmodelingprep.com"`
	APIKey          string        `yaml:"api_key"`
	Timeout         time.Duration `yaml:"timeout" default:"30s"`
	FundamentalsTTL time.Duration `yaml:"fundamentals_ttl" default:"6h"`
	SymbolsDir      string        `yaml:"symbols_dir" default:"data/symbols"`
	RateLimit       struct {
		Burst     float64 `yaml:"burst" default:"5"`
		PerSecond float64 `yaml:"per_second" default:"5"`
	} `yaml:"rate_limit"`
	Retry struct {
		MaxAttempts int           `yaml:"max_attempts" default:"3"`
		Delay       time.Duration `yaml:"delay" default:"500ms"`
		Multiplier  float64       `yaml:"multiplier" default:"2"`
		MaxDelay    time.Duration `yaml:"max_delay" default:"10s"`
	} `yaml:"retry"`
}

// FrameIndicators are the indicator parameters and criterion bounds of one
// time frame. Empty EMA periods fall back to the frame's standard periods.
type FrameIndicators struct {
	EMAPeriods    []int    `yaml:"ema_periods"`
	Sources       []string `yaml:"sources"`
	BiasThreshold float64  `yaml:"bias_threshold" default:"3"`
	RSIPeriod     int      `yaml:"rsi_period" default:"14"`
	RSIOversold   float64  `yaml:"rsi_oversold" default:"30"`
	RSIOverbought float64  `yaml:"rsi_overbought" default:"70"`
	RSIMode       string   `yaml:"rsi_mode" default:"range"`
	MACDFast      int      `yaml:"macd_fast" default:"12"`
	MACDSlow      int      `yaml:"macd_slow" default:"26"`
	MACDSignal    int      `yaml:"macd_signal" default:"9"`
	SlopeWindow   int      `yaml:"slope_window" default:"3"`
	LookbackDays  int      `yaml:"lookback_days" default:"60"`
}

type IndicatorsConfig struct {
	Daily   FrameIndicators `yaml:"daily"`
	Weekly  FrameIndicators `yaml:"weekly"`
	Monthly FrameIndicators `yaml:"monthly"`
}

// Frames returns the per-frame parameters keyed by time frame name.
func (c IndicatorsConfig) Frames() map[string]FrameIndicators {
	return map[string]FrameIndicators{"daily": c.Daily, "weekly": c.Weekly, "monthly": c.Monthly}
}

type FilteringConfig struct {
	Mode                     string `yaml:"mode" default:"all"`
	EnableFinancialFiltering bool   `yaml:"enable_financial_filtering"`
	MinPoints                int    `yaml:"min_points" default:"30"`
	Concurrency              int    `yaml:"concurrency" default:"4"`
}

type FinancialConfig struct {
	GrossMargin float64 `yaml:"gross_margin_threshold" default:"0.3"`
	ROE         float64 `yaml:"roe_threshold" default:"0.15"`
	RDRatio     float64 `yaml:"rd_ratio_threshold" default:"0.1"`
}

type TrendConfig struct {
	PBRatioMax       float64 `yaml:"pb_ratio_max" default:"10"`
	PERatioMin       float64 `yaml:"pe_ratio_min" default:"10"`
	ROEMin           float64 `yaml:"roe_min" default:"0.1"`
	GrossMarginMin   float64 `yaml:"gross_margin_min" default:"0.3"`
	DividendYieldMin float64 `yaml:"dividend_yield_min" default:"0.03"`
	EMASlopeMin      float64 `yaml:"ema_slope_min" default:"10"`
	EMASlopeWeeks    int     `yaml:"ema_slope_weeks" default:"3"`
	EMAPeriod        int     `yaml:"ema_period" default:"13"`
	SlopeWindow      int     `yaml:"slope_window" default:"3"`
	Concurrency      int     `yaml:"concurrency" default:"4"`
}

type JobsConfig struct {
	RetentionDays int           `yaml:"retention_days" default:"7"`
	MaxConcurrent int           `yaml:"max_concurrent" default:"4"`
	LockTTL       time.Duration `yaml:"lock_ttl" default:"2h"`
}

type ScheduleConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Spec       string   `yaml:"spec" default:"0 30 21 * * 1-5"`
	Symbols    []string `yaml:"symbols"`
	TimeFrames []string `yaml:"time_frames"`
}

// Load reads a YAML file over the built-in defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse decodes YAML over the defaults without validating.
func Parse(b []byte) (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env when present, reads the YAML file and applies
// environment overrides before validating.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("FMP_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	c.Redis.DB = xutil.ParseIntDefault(getenv("REDIS_DB"), c.Redis.DB)
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = xutil.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("provider.api_key is required (or FMP_API_KEY)"))
	}
	if c.Redis.ExpirationDays <= 0 {
		errs = append(errs, errors.New("redis.expiration_days must be positive"))
	}
	switch c.Filtering.Mode {
	case "all", "any", "majority":
	default:
		errs = append(errs, fmt.Errorf("filtering.mode %q must be all, any or majority", c.Filtering.Mode))
	}
	for name, f := range c.Indicators.Frames() {
		if f.MACDFast >= f.MACDSlow {
			errs = append(errs, fmt.Errorf("indicators.%s: macd_fast must be below macd_slow", name))
		}
		if f.RSIOversold >= f.RSIOverbought {
			errs = append(errs, fmt.Errorf("indicators.%s: rsi_oversold must be below rsi_overbought", name))
		}
		if f.RSIMode != "range" && f.RSIMode != "oversold" {
			errs = append(errs, fmt.Errorf("indicators.%s: rsi_mode %q must be range or oversold", name, f.RSIMode))
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers required when kafka is enabled"))
	}
	if c.Schedule.Enabled && len(c.Schedule.Symbols) == 0 {
		errs = append(errs, errors.New("schedule.symbols required when the schedule is enabled"))
	}
	return errors.Join(errs...)
}
