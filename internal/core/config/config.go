// Package config loads process configuration from the environment and the
// layer definitions from a JSON file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type SnowflakeCfg struct {
	Account      string
	Warehouse    string
	User         string
	Password     string
	Database     string
	Schema       string
	Role         string
	LoginTimeout time.Duration
}

type CacheCfg struct {
	Driver    string // none|memory|redis
	TTL       time.Duration
	Size      int
	RedisAddr string
	OpTimeout time.Duration
}

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr         string
	LogLevel     string
	LogConsole   bool
	LogSampleN   int
	LayersFile   string
	Snowflake    SnowflakeCfg
	Cache        CacheCfg
	Invalidation InvalidationCfg
	Metrics      MetricsCfg
}

func FromEnv() Config {
	return Config{
		Addr:       getenv("ADDR", ":8080"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),
		LayersFile: getenv("LAYERS_FILE", "config/layers.json"),
		Snowflake: SnowflakeCfg{
			Account:      getenv("SNOWFLAKE_ACCOUNT", ""),
			Warehouse:    getenv("SNOWFLAKE_WAREHOUSE", ""),
			User:         getenv("SNOWFLAKE_USER", ""),
			Password:     getenv("SNOWFLAKE_PASSWORD", ""),
			Database:     getenv("SNOWFLAKE_DATABASE", ""),
			Schema:       getenv("SNOWFLAKE_SCHEMA", ""),
			Role:         getenv("SNOWFLAKE_ROLE", ""),
			LoginTimeout: getduration("SNOWFLAKE_LOGIN_TIMEOUT", 60*time.Second),
		},
		Cache: CacheCfg{
			Driver:    strings.ToLower(getenv("CACHE_DRIVER", "none")),
			TTL:       getduration("CACHE_TTL", 60*time.Second),
			Size:      getint("CACHE_SIZE", 1024),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			OpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "warehouse-invalidation"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "featureserver-cache"),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// SplitCSV splits "a, b,,c" into [a b c].
func SplitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
