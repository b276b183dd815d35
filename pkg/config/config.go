package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	// Audit selects where decisions and outcomes are appended.
	Audit struct {
		Backend        string `yaml:"backend"` // "kafka" or "clickhouse"
		DecisionsTopic string `yaml:"decisions_topic"`
		OutcomesTopic  string `yaml:"outcomes_topic"`
		DecisionsTable string `yaml:"decisions_table"`
		OutcomesTable  string `yaml:"outcomes_table"`
	} `yaml:"audit"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	MarketData struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"marketdata"`
	Broker struct {
		WebSocketURL     string        `yaml:"websocket_url"`
		AuthToken        string        `yaml:"auth_token"`
		RecvTimeout      time.Duration `yaml:"recv_timeout"`
		OrderSendRetries int           `yaml:"order_send_retries"`
		OrderRetryWait   time.Duration `yaml:"order_retry_wait"`
		Query            struct {
			Timeout            time.Duration `yaml:"timeout"`
			MaxRetries         int           `yaml:"max_retries"`
			InitialWait        time.Duration `yaml:"initial_wait"`
			MaxWait            time.Duration `yaml:"max_wait"`
			ExponentialBackoff bool          `yaml:"exponential_backoff"`
		} `yaml:"query"`
	} `yaml:"broker"`
	Account struct {
		BaseURL   string        `yaml:"base_url"`
		AuthToken string        `yaml:"auth_token"`
		Timeout   time.Duration `yaml:"timeout"`
		SpecTTL   time.Duration `yaml:"spec_ttl"`
		EquityTTL time.Duration `yaml:"equity_ttl"`
	} `yaml:"account"`
	Inference struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"inference"`
	Engine struct {
		BaseTimeframe    string   `yaml:"base_timeframe"`
		HigherTimeframes []string `yaml:"higher_timeframes"`
		HistorySize      int      `yaml:"history_size"`
		MinBars          int      `yaml:"min_bars"`
		OrdersPerMinute  float64  `yaml:"orders_per_minute"`
		BarBuffer        int      `yaml:"bar_buffer"`
	} `yaml:"engine"`
	Fusion struct {
		TrendTimeframe     string  `yaml:"trend_timeframe"`
		EntryTimeframe     string  `yaml:"entry_timeframe"`
		ExecutionTimeframe string  `yaml:"execution_timeframe"`
		TrendThreshold     float64 `yaml:"trend_threshold"`
		EntryThreshold     float64 `yaml:"entry_threshold"`
		ExecThreshold      float64 `yaml:"exec_threshold"`
		TrendWeight        float64 `yaml:"trend_weight"`
		EntryWeight        float64 `yaml:"entry_weight"`
		ExecWeight         float64 `yaml:"exec_weight"`
		HistorySize        int     `yaml:"history_size"`
	} `yaml:"fusion"`
	Sizer struct {
		PayoffRatio  float64 `yaml:"payoff_ratio"`
		RiskFraction float64 `yaml:"risk_fraction"`
	} `yaml:"sizer"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		QueueSize  int           `yaml:"queue_size"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	// Validate required fields
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

	if v := os.Getenv("MARKETDATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.MarketData.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("AUDIT_BACKEND"); v != "" {
		c.Audit.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("BROKER_AUTH_TOKEN"); v != "" {
		c.Broker.AuthToken = v
	}
	if v := os.Getenv("ACCOUNT_AUTH_TOKEN"); v != "" {
		c.Account.AuthToken = v
	}

	return c, nil
}

// applyDefaults fills the tunable trading parameters that have sensible
// defaults. Connection endpoints and credentials stay required.
func (c *Config) applyDefaults() {
	if c.Engine.BaseTimeframe == "" {
		c.Engine.BaseTimeframe = "5m"
	}
	if len(c.Engine.HigherTimeframes) == 0 {
		c.Engine.HigherTimeframes = []string{"1h", "1d"}
	}
	if c.Fusion.TrendTimeframe == "" {
		c.Fusion.TrendTimeframe = "1d"
	}
	if c.Fusion.EntryTimeframe == "" {
		c.Fusion.EntryTimeframe = "1h"
	}
	if c.Fusion.TrendThreshold == 0 {
		c.Fusion.TrendThreshold = 0.55
	}
	if c.Fusion.EntryThreshold == 0 {
		c.Fusion.EntryThreshold = 0.65
	}
	if c.Fusion.TrendWeight == 0 {
		c.Fusion.TrendWeight = 0.50
	}
	if c.Fusion.EntryWeight == 0 {
		c.Fusion.EntryWeight = 0.35
	}
	if c.Fusion.ExecWeight == 0 {
		c.Fusion.ExecWeight = 0.15
	}
	if c.Sizer.PayoffRatio == 0 {
		c.Sizer.PayoffRatio = 2.0
	}
	if c.Sizer.RiskFraction == 0 {
		c.Sizer.RiskFraction = 0.02
	}
	if c.Broker.Query.Timeout == 0 {
		c.Broker.Query.Timeout = 5 * time.Second
	}
	if c.Broker.Query.MaxRetries == 0 {
		c.Broker.Query.MaxRetries = 5
	}
	if c.Broker.Query.InitialWait == 0 {
		c.Broker.Query.InitialWait = 100 * time.Millisecond
	}
	if c.Broker.Query.MaxWait == 0 {
		c.Broker.Query.MaxWait = time.Second
		c.Broker.Query.ExponentialBackoff = true
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.QueueSize == 0 {
		c.Queue.QueueSize = 1000
	}
	if c.Queue.RetryLimit == 0 {
		c.Queue.RetryLimit = 5
	}
	if c.Queue.RetryDelay == 0 {
		c.Queue.RetryDelay = 30 * time.Second
	}
}

// Validate checks if the configuration is valid. Component-level constructors
// do their own deeper validation; this catches missing sections early.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Audit.Backend == "" {
		return fmt.Errorf("audit.backend is required")
	}
	if c.Audit.Backend != "kafka" && c.Audit.Backend != "clickhouse" {
		return fmt.Errorf("audit.backend must be 'kafka' or 'clickhouse', got '%s'", c.Audit.Backend)
	}
	if len(c.MarketData.Symbols) == 0 {
		return fmt.Errorf("marketdata.symbols cannot be empty")
	}
	if c.MarketData.APIKey == "" {
		return fmt.Errorf("marketdata.api_key is required")
	}
	if c.Broker.WebSocketURL == "" {
		return fmt.Errorf("broker.websocket_url is required")
	}
	if c.Account.BaseURL == "" {
		return fmt.Errorf("account.base_url is required")
	}
	if c.Inference.BaseURL == "" {
		return fmt.Errorf("inference.base_url is required")
	}
	if c.Fusion.TrendTimeframe == "" || c.Fusion.EntryTimeframe == "" {
		return fmt.Errorf("fusion.trend_timeframe and fusion.entry_timeframe are required")
	}
	return nil
}
