package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LedgerCfg   LedgerConfig   `yaml:"ledger"`
	PollCfg     PollConfig     `yaml:"poll"`
	HttpCfg     HttpConfig     `yaml:"http"`
	MqttCfg     MqttConfig     `yaml:"mqtt"`
	RedisCfg    RedisConfig    `yaml:"redis"`
	DatabaseCfg DatabaseConfig `yaml:"database"`
	LogLevel    string         `yaml:"log_level" env:"LOG_LEVEL"`
}

type LedgerConfig struct {
	RpcURL          string `yaml:"rpc_url" env:"LEDGER_RPC_URL"`
	ContractAddress string `yaml:"contract_address" env:"LEDGER_CONTRACT_ADDRESS"`
	// AbiPath optionally points at a truffle artifact; the embedded ABI is used otherwise.
	AbiPath     string `yaml:"abi_path" env:"LEDGER_ABI_PATH"`
	FromBlock   uint64 `yaml:"from_block" env:"LEDGER_FROM_BLOCK"`
	ReorgDepth  uint64 `yaml:"reorg_depth" env:"LEDGER_REORG_DEPTH"`
	FullRescan  bool   `yaml:"full_rescan" env:"LEDGER_FULL_RESCAN"`
	Simulate    bool   `yaml:"simulate" env:"LEDGER_SIMULATE"`
	SimSensorID string `yaml:"sim_sensor_id" env:"LEDGER_SIM_SENSOR_ID"`
}

type PollConfig struct {
	Interval     time.Duration `yaml:"interval" env:"POLL_INTERVAL"`
	CycleTimeout time.Duration `yaml:"cycle_timeout" env:"POLL_CYCLE_TIMEOUT"`
	RecordLimit  int           `yaml:"record_limit" env:"RECORD_LIMIT"`
	TimeZone     string        `yaml:"time_zone" env:"DISPLAY_TZ"`
}

type HttpConfig struct {
	Addr      string `yaml:"addr" env:"HTTP_ADDR"`
	JwtSecret string `yaml:"jwt_secret" env:"API_JWT_SECRET"`
}

type MqttConfig struct {
	Host        string `yaml:"host" env:"MQTT_HOST"`
	Username    string `yaml:"username" env:"MQTT_USER"`
	Password    string `yaml:"password" env:"MQTT_PASS"`
	TopicPrefix string `yaml:"topic_prefix" env:"MQTT_TOPIC_PREFIX"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	Key      string        `yaml:"key" env:"REDIS_KEY"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL"`
}

type DatabaseConfig struct {
	URL              string `yaml:"url" env:"DATABASE_URL"`
	MigrationsFolder string `yaml:"migrations_folder" env:"MIGRATIONS_FOLDER"`
	RetentionDays    int    `yaml:"retention_days" env:"ARCHIVE_RETENTION_DAYS"`
	CleanupSchedule  string `yaml:"cleanup_schedule" env:"ARCHIVE_CLEANUP_SCHEDULE"`
}

func Default() *Config {
	return &Config{
		LedgerCfg: LedgerConfig{
			ReorgDepth:  12,
			SimSensorID: "SHT20-PascaPanen-001",
		},
		PollCfg: PollConfig{
			Interval:     5 * time.Second,
			CycleTimeout: 30 * time.Second,
			RecordLimit:  10,
			TimeZone:     "Local",
		},
		HttpCfg: HttpConfig{
			Addr: "0.0.0.0:8000",
		},
		MqttCfg: MqttConfig{
			TopicPrefix: "homeassistant",
		},
		RedisCfg: RedisConfig{
			Key: "sensor-ledger:snapshot",
			TTL: time.Minute,
		},
		DatabaseCfg: DatabaseConfig{
			RetentionDays:   30,
			CleanupSchedule: "0 3 * * *",
		},
		LogLevel: "INFO",
	}
}

// Load starts from Default, applies the YAML file at path (if any) and then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.PollCfg.Interval <= 0 {
		return errors.New("config: poll interval must be positive")
	}
	if c.PollCfg.RecordLimit <= 0 {
		return errors.New("config: record limit must be positive")
	}
	if c.PollCfg.CycleTimeout <= 0 {
		return errors.New("config: cycle timeout must be positive")
	}
	if _, err := time.LoadLocation(c.PollCfg.TimeZone); err != nil {
		return fmt.Errorf("config: display time zone: %w", err)
	}
	return nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.PollCfg.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}
