// Package config provides configuration management for the organ services and
// the orchestrator.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devrev/organsim/internal/model"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Role selects which service a process runs.
type Role string

const (
	RoleCardiac      Role = Role(model.OrganCardiac)
	RoleRespiratory  Role = Role(model.OrganRespiratory)
	RoleNeural       Role = Role(model.OrganNeural)
	RoleOrchestrator Role = "orchestrator"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCardiac, RoleRespiratory, RoleNeural, RoleOrchestrator:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q (want cardiac, respiratory, neural or orchestrator)", s)
}

// Organ returns the organ served by r, or false for the orchestrator.
func (r Role) Organ() (model.Organ, bool) {
	return model.ParseOrgan(string(r))
}

// Config holds all configuration for one service.
type Config struct {
	Role         Role               `mapstructure:"-" yaml:"role"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Simulator    SimulatorConfig    `mapstructure:"simulator" yaml:"simulator"`
	Session      SessionConfig      `mapstructure:"session" yaml:"session"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry" yaml:"telemetry"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	RateLimiter  RateLimiterConfig  `mapstructure:"rate_limiter" yaml:"rate_limiter"`
	CORS         CORSConfig         `mapstructure:"cors" yaml:"cors"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // must expire before WriteTimeout
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SimulatorConfig controls reading generation.
type SimulatorConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval" yaml:"sample_interval"`
	MaxCount       int           `mapstructure:"max_count" yaml:"max_count"`
	// Seed fixes the random source; zero seeds from the clock.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Backend     string        `mapstructure:"backend" yaml:"backend"`
	MaxSessions int           `mapstructure:"max_sessions" yaml:"max_sessions"`
	TTL         time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Redis       RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	Password  string `mapstructure:"password" yaml:"-"`
	DB        int    `mapstructure:"db" yaml:"db"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// TelemetryConfig selects where readings are published.
type TelemetryConfig struct {
	Sink    string           `mapstructure:"sink" yaml:"sink"`
	Timeout time.Duration    `mapstructure:"timeout" yaml:"timeout"`
	MQTT    MQTTConfig       `mapstructure:"mqtt" yaml:"mqtt"`
	Redis   StreamSinkConfig `mapstructure:"redis" yaml:"redis"`
}

// MQTTConfig holds MQTT broker settings.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker" yaml:"broker"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"-"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	QoS         int    `mapstructure:"qos" yaml:"qos"`
}

// StreamSinkConfig holds Redis stream settings.
type StreamSinkConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"-"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Stream   string `mapstructure:"stream" yaml:"stream"`
	MaxLen   int64  `mapstructure:"max_len" yaml:"max_len"`
}

// OrchestratorConfig holds outbound settings for the aggregator.
type OrchestratorConfig struct {
	Timeout time.Duration         `mapstructure:"timeout" yaml:"timeout"`
	Organs  []model.OrganEndpoint `mapstructure:"organs" yaml:"organs"`
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size" yaml:"burst_size"`
}

// CORSConfig holds the allowed origins.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port" yaml:"port"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	// Output is stdout, stderr or a file path rotated by lumberjack.
	Output     string `mapstructure:"output" yaml:"output"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

var servicePorts = map[Role][2]int{
	RoleOrchestrator: {5000, 9090},
	RoleCardiac:      {5001, 9091},
	RoleRespiratory:  {5002, 9092},
	RoleNeural:       {5003, 9093},
}

// Load reads configuration for role from an optional file, a .env file and
// ORGANSIM_* environment variables.
func Load(role Role, configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, role)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("organsim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/organsim/")
	}

	v.SetEnvPrefix("ORGANSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Per-role port overrides, e.g. ORGANSIM_CARDIAC_PORT.
	if v.IsSet(string(role) + ".port") {
		v.Set("server.port", v.GetInt(string(role)+".port"))
	}
	if v.IsSet(string(role) + ".metrics_port") {
		v.Set("metrics.port", v.GetInt(string(role)+".metrics_port"))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Role = role

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, role Role) {
	ports := servicePorts[role]

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", ports[0])
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "45s")
	v.SetDefault("server.request_timeout", "40s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Simulator defaults
	v.SetDefault("simulator.sample_interval", "10ms")
	v.SetDefault("simulator.max_count", 100)
	v.SetDefault("simulator.seed", 0)

	// Session defaults
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.key_prefix", "organsim:session:")

	// Telemetry defaults
	v.SetDefault("telemetry.sink", "none")
	v.SetDefault("telemetry.timeout", "1s")
	v.SetDefault("telemetry.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("telemetry.mqtt.client_id", "organsim-"+string(role))
	v.SetDefault("telemetry.mqtt.username", "")
	v.SetDefault("telemetry.mqtt.password", "")
	v.SetDefault("telemetry.mqtt.topic_prefix", "organsim")
	v.SetDefault("telemetry.mqtt.qos", 0)
	v.SetDefault("telemetry.redis.addr", "localhost:6379")
	v.SetDefault("telemetry.redis.password", "")
	v.SetDefault("telemetry.redis.db", 0)
	v.SetDefault("telemetry.redis.stream", "organsim:readings")
	v.SetDefault("telemetry.redis.max_len", 10000)

	// Orchestrator defaults
	v.SetDefault("orchestrator.timeout", "5s")
	v.SetDefault("orchestrator.organs", []map[string]interface{}{
		{"key": "cardiac", "url": "http://localhost:5001", "name": "Cardiovascular System", "health_path": "/health"},
		{"key": "respiratory", "url": "http://localhost:5002", "name": "Respiratory System", "health_path": "/health"},
		{"key": "neural", "url": "http://localhost:5003", "name": "Central Nervous System", "health_path": "/health"},
	})

	// Rate limiter defaults
	v.SetDefault("rate_limiter.enabled", true)
	v.SetDefault("rate_limiter.requests_per_second", 200.0)
	v.SetDefault("rate_limiter.burst_size", 50)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", ports[1])
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Simulator.MaxCount <= 0 {
		return errors.New("simulator.max_count must be positive")
	}
	if c.Simulator.SampleInterval < 0 {
		return errors.New("simulator.sample_interval must not be negative")
	}

	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("session.backend must be memory or redis, got %q", c.Session.Backend)
	}

	switch c.Telemetry.Sink {
	case "", "none", "mqtt", "redis":
	default:
		return fmt.Errorf("telemetry.sink must be none, mqtt or redis, got %q", c.Telemetry.Sink)
	}
	if c.Telemetry.MQTT.QoS < 0 || c.Telemetry.MQTT.QoS > 2 {
		return fmt.Errorf("invalid telemetry.mqtt.qos: %d", c.Telemetry.MQTT.QoS)
	}

	if c.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}
	if c.Server.WriteTimeout > 0 && c.Server.RequestTimeout >= c.Server.WriteTimeout {
		return fmt.Errorf("server.request_timeout (%s) must be shorter than server.write_timeout (%s)",
			c.Server.RequestTimeout, c.Server.WriteTimeout)
	}

	if c.Role == RoleOrchestrator {
		if c.Orchestrator.Timeout <= 0 {
			return errors.New("orchestrator timeout must be positive")
		}
		if err := validateOrgans(c.Orchestrator.Organs); err != nil {
			return err
		}
	}
	if budget := c.WorkBudget(); c.Server.RequestTimeout <= budget {
		return fmt.Errorf("server.request_timeout (%s) must exceed the worst-case request time (%s)",
			c.Server.RequestTimeout, budget)
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return errors.New("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return errors.New("rate limiter burst size must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Server.Port {
			return errors.New("metrics port must differ from server port")
		}
	}

	return nil
}

// overviewCallsPerOrgan is the number of sequential organ calls the overview
// makes per organ: one health check and one status fetch.
const overviewCallsPerOrgan = 2

// WorkBudget is the longest a single request can legitimately run: the
// overview fan-out for the orchestrator, a full data burst for an organ.
func (c *Config) WorkBudget() time.Duration {
	if c.Role == RoleOrchestrator {
		calls := overviewCallsPerOrgan * len(c.Orchestrator.Organs)
		return time.Duration(calls) * c.Orchestrator.Timeout
	}
	return time.Duration(c.Simulator.MaxCount) * c.Simulator.SampleInterval
}

func validateOrgans(organs []model.OrganEndpoint) error {
	if len(organs) != len(model.Organs) {
		return fmt.Errorf("orchestrator.organs must list exactly %d organs", len(model.Organs))
	}
	seen := make(map[model.Organ]bool)
	for _, o := range organs {
		if _, ok := model.ParseOrgan(string(o.Key)); !ok {
			return fmt.Errorf("unknown organ %q in orchestrator.organs", o.Key)
		}
		if seen[o.Key] {
			return fmt.Errorf("duplicate organ %q in orchestrator.organs", o.Key)
		}
		seen[o.Key] = true
		if o.URL == "" {
			return fmt.Errorf("orchestrator.organs[%s].url is required", o.Key)
		}
	}
	return nil
}

// YAML renders the effective configuration. Secrets are omitted.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
