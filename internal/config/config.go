// Package config centralizes environment-variable loading for all three
// processes, following the teacher's own convention of direct os.Getenv
// reads (cmd/game-server/main.go) rather than a config-file/Viper layer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Mixer holds the mixer process's configuration.
type Mixer struct {
	AuthKey      string
	Port         string
	MetricsPort  string
	AuditLogPath string
	Kafka        KafkaConfig
	ClickHouse   ClickHouseConfig
	Postgres     PostgresConfig
}

// Generator holds the generator process's configuration.
type Generator struct {
	AuthKey      string
	Port         string
	MetricsPort  string
	MixerURL     string
	AuditLogPath string
	Kafka        KafkaConfig
	ClickHouse   ClickHouseConfig
	Postgres     PostgresConfig
}

// Harvester holds the harvester process's configuration.
type Harvester struct {
	AuthKey     string
	Sources     []string
	MixerURL    string
	MetricsPort string
}

// KafkaConfig is nil-equivalent (Enabled=false) unless KAFKA_BROKERS is set.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// ClickHouseConfig is nil-equivalent unless CLICKHOUSE_HOST is set.
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Secure   bool
}

// PostgresConfig is nil-equivalent unless POSTGRES_DSN is set.
type PostgresConfig struct {
	Enabled bool
	DSN     string
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func loadKafka() KafkaConfig {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return KafkaConfig{}
	}
	return KafkaConfig{
		Enabled: true,
		Brokers: strings.Split(brokers, ","),
		Topic:   getEnvDefault("KAFKA_AUDIT_TOPIC", "rng-audit-events"),
	}
}

func loadClickHouse() ClickHouseConfig {
	host := os.Getenv("CLICKHOUSE_HOST")
	if host == "" {
		return ClickHouseConfig{}
	}
	port, _ := strconv.Atoi(getEnvDefault("CLICKHOUSE_PORT", "9000"))
	return ClickHouseConfig{
		Enabled:  true,
		Host:     host,
		Port:     port,
		Database: getEnvDefault("CLICKHOUSE_DATABASE", "default"),
		Username: getEnvDefault("CLICKHOUSE_USERNAME", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Secure:   os.Getenv("CLICKHOUSE_SECURE") == "true",
	}
}

func loadPostgres() PostgresConfig {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		return PostgresConfig{}
	}
	return PostgresConfig{Enabled: true, DSN: dsn}
}

// LoadMixer reads the mixer's configuration from the environment. A
// missing API_AUTH_KEY is a fatal configuration error (spec §7).
func LoadMixer() (Mixer, error) {
	key := os.Getenv("API_AUTH_KEY")
	if key == "" {
		return Mixer{}, fmt.Errorf("config: API_AUTH_KEY is required")
	}
	return Mixer{
		AuthKey:      key,
		Port:         getEnvDefault("MIXER_PORT", "5000"),
		MetricsPort:  os.Getenv("METRICS_PORT"),
		AuditLogPath: getEnvDefault("AUDIT_LOG_PATH", "./logs/mixer-audit.log"),
		Kafka:        loadKafka(),
		ClickHouse:   loadClickHouse(),
		Postgres:     loadPostgres(),
	}, nil
}

// LoadGenerator reads the generator's configuration from the
// environment. A missing API_AUTH_KEY is a fatal configuration error.
func LoadGenerator() (Generator, error) {
	key := os.Getenv("API_AUTH_KEY")
	if key == "" {
		return Generator{}, fmt.Errorf("config: API_AUTH_KEY is required")
	}
	return Generator{
		AuthKey:      key,
		Port:         getEnvDefault("GENERATOR_PORT", "5001"),
		MetricsPort:  os.Getenv("METRICS_PORT"),
		MixerURL:     getEnvDefault("MIXER_URL", "http://mixer:5000"),
		AuditLogPath: getEnvDefault("AUDIT_LOG_PATH", "./logs/generator-audit.log"),
		Kafka:        loadKafka(),
		ClickHouse:   loadClickHouse(),
		Postgres:     loadPostgres(),
	}, nil
}

// LoadHarvester reads the harvester's configuration from the
// environment. A missing API_AUTH_KEY or empty HARVESTER_SOURCES is a
// fatal configuration error.
func LoadHarvester() (Harvester, error) {
	key := os.Getenv("API_AUTH_KEY")
	if key == "" {
		return Harvester{}, fmt.Errorf("config: API_AUTH_KEY is required")
	}
	raw := os.Getenv("HARVESTER_SOURCES")
	var sources []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		return Harvester{}, fmt.Errorf("config: HARVESTER_SOURCES must name at least one source")
	}
	return Harvester{
		AuthKey:     key,
		Sources:     sources,
		MixerURL:    getEnvDefault("MIXER_URL", "http://mixer:5000"),
		MetricsPort: os.Getenv("METRICS_PORT"),
	}, nil
}
