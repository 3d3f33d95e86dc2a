package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"Volatile/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Logger      logger.Config    `yaml:"logger"`
	Model       ModelConfig      `yaml:"model"`
	Rank        string           `yaml:"rank" default:"rate" validate:"oneof=rate growth"`
	Thresholds  ThresholdsConfig `yaml:"thresholds"`
	Source      SourceConfig     `yaml:"source"`
	Yahoo       YahooConfig      `yaml:"yahoo"`
	Cache       CacheConfig      `yaml:"cache"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Output      OutputConfig     `yaml:"output"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
}

type ModelConfig struct {
	Order        int     `yaml:"order" default:"2" validate:"gte=1,lte=8"`
	Horizon      int     `yaml:"horizon" default:"5" validate:"gte=0"`
	LearningRate float64 `yaml:"learning_rate" default:"0.01" validate:"gt=0"`
	NumSteps     int     `yaml:"num_steps" default:"10000" validate:"gte=4"`
	Solver       string  `yaml:"solver" default:"adam" validate:"oneof=adam lbfgs"`
}

type ThresholdsConfig struct {
	HighlyBelow float64 `yaml:"highly_below" default:"3"`
	Below       float64 `yaml:"below" default:"2"`
	Along       float64 `yaml:"along" default:"0"`
	Above       float64 `yaml:"above" default:"-2"`
	HighlyAbove float64 `yaml:"highly_above" default:"-3"`
}

type SourceConfig struct {
	Type        string   `yaml:"type" default:"yahoo" validate:"oneof=yahoo clickhouse"`
	Symbols     []string `yaml:"symbols"`
	SymbolsFile string   `yaml:"symbols_file" default:"symbols_list.txt"`
	Range       string   `yaml:"range" default:"1y"`
	Interval    string   `yaml:"interval" default:"1d"`
	// MinCoverage is the share of trading dates a symbol must have to be kept.
	MinCoverage float64  `yaml:"min_coverage" default:"0.5" validate:"gt=0,lte=1"`
}

type YahooConfig struct {
	Timeout     time.Duration `yaml:"timeout" default:"15s"`
	RatePerSec  float64       `yaml:"rate_per_sec" default:"4"`
	Burst       int           `yaml:"burst" default:"4"`
	Concurrency int           `yaml:"concurrency" default:"8" validate:"gte=1"`
	Retries     int           `yaml:"retries" default:"2" validate:"gte=0"`
	Backoff     time.Duration `yaml:"backoff" default:"500ms"`
	CacheTTL    time.Duration `yaml:"cache_ttl" default:"6h"`
}

type CacheConfig struct {
	MemoryMaxSize int `yaml:"memory_max_size" default:"2048"`
	Redis         struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"volatile:"`
		PoolSize int    `yaml:"pool_size" default:"10"`
	} `yaml:"redis"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"volatile"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	BarsTable        string        `yaml:"bars_table" default:"daily_bars"`
	ProfilesTable    string        `yaml:"profiles_table" default:"symbol_profiles"`
	PredictionsTable string        `yaml:"predictions_table" default:"predictions"`
}

type KafkaConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Brokers          []string `yaml:"brokers"`
	Topic            string   `yaml:"topic" default:"volatile.predictions"`
	DiagnosticsTopic string   `yaml:"diagnostics_topic" default:"volatile.diagnostics"`
	RequiredAcks     int      `yaml:"required_acks" default:"-1"`
	Compression      string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Producer         struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
}

type OutputConfig struct {
	PrintTable bool   `yaml:"print_table" default:"true"`
	TablePath  string `yaml:"table_path"`
	XLSXPath   string `yaml:"xlsx_path"`
	LossesPath string `yaml:"losses_path"`
}

type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file. Fields missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path starts from the defaults.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Source.Symbols = SplitList(v)
	}
	if v := os.Getenv("SOURCE"); v != "" {
		c.Source.Type = v
	}
	if v := os.Getenv("RANK"); v != "" {
		c.Rank = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Enabled = true
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = SplitList(v)
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Enabled = true
		c.ClickHouse.Host = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	t := c.Thresholds
	if !(t.HighlyBelow > t.Below && t.Below > t.Along && t.Along > t.Above && t.Above > t.HighlyAbove) {
		return fmt.Errorf("thresholds must be strictly decreasing from highly_below to highly_above")
	}
	if c.Source.Type == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("source.type 'clickhouse' requires clickhouse.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

// ResolveSymbols returns the configured symbols, falling back to the
// whitespace separated list in the symbols file.
func (c *Config) ResolveSymbols() ([]string, error) {
	if len(c.Source.Symbols) > 0 {
		return c.Source.Symbols, nil
	}
	if c.Source.SymbolsFile == "" {
		return nil, fmt.Errorf("no symbols configured")
	}
	f, err := os.Open(c.Source.SymbolsFile)
	if err != nil {
		return nil, fmt.Errorf("open symbols file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		out = append(out, strings.ToUpper(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read symbols file: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("symbols file %s is empty", c.Source.SymbolsFile)
	}
	return out, nil
}

// SplitList splits a comma or space separated list, dropping empty items.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
