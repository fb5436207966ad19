package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString собирает DSN для pgxpool.
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	LoadEventsTopicName      string `yaml:"load_events_topic_name"`
	DispatchUpdatedTopicName string `yaml:"dispatch_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DispatchConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	// Backend: "mock" (в памяти, демонстрационные данные) | "postgres" | "http".
	Backend  string `yaml:"backend"`
	DriverID string `yaml:"driver_id"`
	PinCode  string `yaml:"pin_code"`

	// Только для backend: http.
	APIBaseURL string `yaml:"api_base_url"`
	APIKey     string `yaml:"api_key"`

	DetailCacheTTLSeconds int `yaml:"detail_cache_ttl_seconds"`
	PinAttemptsPerWindow  int `yaml:"pin_attempts_per_window"`
	PinWindowSeconds      int `yaml:"pin_window_seconds"`

	SyncIntervalSeconds int `yaml:"sync_interval_seconds"`
	SyncJitterSeconds   int `yaml:"sync_jitter_seconds"`

	// Только для backend: mock. 0 без задержек, 1 штатные задержки.
	MockDelayScale  float64 `yaml:"mock_delay_scale"`
	MockFailureRate float64 `yaml:"mock_failure_rate"`
	// Наполнить пустую БД демонстрационными грузами (backend: postgres).
	SeedSampleLoads bool `yaml:"seed_sample_loads"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
