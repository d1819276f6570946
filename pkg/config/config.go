package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"EconDash/pkg/util"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes one indicator input.
type SourceConfig struct {
	Name        string `yaml:"name"`
	Title       string `yaml:"title"`
	Kind        string `yaml:"kind"` // csv or clickhouse
	Path        string `yaml:"path"`
	DateColumn  string `yaml:"date_column"`
	ValueColumn string `yaml:"value_column"`
	Table       string `yaml:"table"`
	SeriesKey   string `yaml:"series_key"`
	Rule        string `yaml:"rule"` // ffill, mean, or empty for frequency default
	Percent     bool   `yaml:"percent"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Title       string `yaml:"title"`
	DataDir     string `yaml:"data_dir"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowThreshold   time.Duration `yaml:"slow_threshold"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Sources []SourceConfig `yaml:"sources"`
	Market  struct {
		BaseURL     string        `yaml:"base_url"`
		Symbol      string        `yaml:"symbol"`
		DisplayName string        `yaml:"display_name"`
		ReturnsName string        `yaml:"returns_name"`
		Start       string        `yaml:"start"`
		End         string        `yaml:"end"`
		Timeout     time.Duration `yaml:"timeout"`
		CacheTTL    time.Duration `yaml:"cache_ttl"`
	} `yaml:"market"`
	Cache struct {
		MemoryMaxSize int `yaml:"memory_max_size"`
		Redis         struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	WebSocket struct {
		Burst     float64 `yaml:"burst"`
		PerSecond float64 `yaml:"per_second"`
	} `yaml:"websocket"`
	Kafka struct {
		Enabled           bool     `yaml:"enabled"`
		Brokers           []string `yaml:"brokers"`
		Compression       string   `yaml:"compression"`
		LogTopic          string   `yaml:"log_topic"`
		SourceEventsTopic string   `yaml:"source_events_topic"`
		Consumer          struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		Table            string        `yaml:"table"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ECONDASH_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("ECONDASH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := getenv("MARKET_SYMBOL"); v != "" {
		c.Market.Symbol = v
	}
	if v := getenv("MARKET_BASE_URL"); v != "" {
		c.Market.BaseURL = v
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Enabled = true
		c.Cache.Redis.Host = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = util.SplitNonEmpty(v, ",")
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Enabled = true
		c.ClickHouse.Host = v
	}
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	for i := range c.Sources {
		if c.Sources[i].Kind == "" {
			c.Sources[i].Kind = "csv"
		}
		if c.Sources[i].Title == "" {
			c.Sources[i].Title = c.Sources[i].Name
		}
		if c.Sources[i].DateColumn == "" {
			c.Sources[i].DateColumn = "DATE"
		}
	}
	if c.Market.BaseURL == "" {
		c.Market.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.Market.Symbol == "" {
		c.Market.Symbol = "^GSPC"
	}
	if c.Market.DisplayName == "" {
		c.Market.DisplayName = "S&P 500"
	}
	if c.Market.ReturnsName == "" {
		c.Market.ReturnsName = c.Market.DisplayName + " Returns"
	}
	if c.Market.Start == "" {
		c.Market.Start = "1960-01-01"
	}
	if c.Market.End == "" {
		c.Market.End = "2024-01-01"
	}
	if c.Market.Timeout == 0 {
		c.Market.Timeout = 15 * time.Second
	}
	if c.Cache.MemoryMaxSize == 0 {
		c.Cache.MemoryMaxSize = 256
	}
	if c.Cache.Redis.Port == 0 {
		c.Cache.Redis.Port = 6379
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "econdash"
	}
	if c.WebSocket.Burst == 0 {
		c.WebSocket.Burst = 5
	}
	if c.WebSocket.PerSecond == 0 {
		c.WebSocket.PerSecond = 1
	}
	if c.Kafka.LogTopic == "" {
		c.Kafka.LogTopic = "econdash.logs"
	}
	if c.Kafka.SourceEventsTopic == "" {
		c.Kafka.SourceEventsTopic = "econdash.source-events"
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "indicators"
	}
	if c.Title == "" {
		c.Title = "Economic Indicators Dashboard"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "econdash"
	}
}

// MarketWindow parses the configured market fetch window.
func (c *Config) MarketWindow() (time.Time, time.Time, error) {
	start, err := util.ParseDate(c.Market.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("market.start: %w", err)
	}
	end, err := util.ParseDate(c.Market.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("market.end: %w", err)
	}
	return start, end, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		switch s.Rule {
		case "", "ffill", "mean":
		default:
			return fmt.Errorf("sources[%d].rule must be 'ffill' or 'mean', got '%s'", i, s.Rule)
		}
		switch s.Kind {
		case "csv":
			if s.Path == "" {
				return fmt.Errorf("sources[%d].path is required for csv sources", i)
			}
		case "clickhouse":
			if s.Table == "" {
				return fmt.Errorf("sources[%d].table is required for clickhouse sources", i)
			}
			if !c.ClickHouse.Enabled {
				return fmt.Errorf("sources[%d] uses clickhouse but clickhouse.enabled is false", i)
			}
		default:
			return fmt.Errorf("sources[%d].kind must be 'csv' or 'clickhouse', got '%s'", i, s.Kind)
		}
	}
	if c.Market.Symbol == "" {
		return fmt.Errorf("market.symbol is required")
	}
	if seen[c.Market.DisplayName] || seen[c.Market.ReturnsName] {
		return fmt.Errorf("market names must not collide with source names")
	}
	start, end, err := c.MarketWindow()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("market.start must be before market.end")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}
