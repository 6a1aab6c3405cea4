package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerHost  string
	ServerPort  int
	MetricsPort int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	RegistryURL     string
	RegistryTimeout time.Duration

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	GRPCServer string
	GRPCMethod string
	ProxyAddr  string

	IdleTimeout  time.Duration
	CloseTimeout time.Duration
	CallTimeout  time.Duration
	MaxInFlight  int64
	ReadBuffer   int

	LogLevel string
	LogFile  string
	FrameLog string
}

// ListenAddr is the device-facing TCP address.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.ServerHost, strconv.Itoa(c.ServerPort))
}

func (c Config) MetricsAddr() string {
	return ":" + strconv.Itoa(c.MetricsPort)
}

func (c Config) InfluxEnabled() bool {
	return c.InfluxURL != ""
}

// env names differ from the keys where deployments already use them.
var envNames = map[string]string{
	"server_host":      "SERVER_URL",
	"server_port":      "SERVER_PORT",
	"metrics_port":     "METRICS_PORT",
	"redis_addr":       "REDIS_ADDR",
	"redis_password":   "REDIS_PASSWORD",
	"redis_db":         "REDIS_DB",
	"session_ttl":      "SESSION_TTL",
	"registry_url":     "BACKEND_URL",
	"registry_timeout": "REGISTRY_TIMEOUT",
	"influx_url":       "INFLUX_URL",
	"influx_token":     "INFLUX_TOKEN",
	"influx_org":       "INFLUX_ORG",
	"influx_bucket":    "INFLUX_BUCKET",
	"grpc_server":      "GRPC_SERVER",
	"grpc_method":      "GRPC_METHOD",
	"proxy_addr":       "PROXY_ADDR",
	"idle_timeout":     "IDLE_TIMEOUT",
	"close_timeout":    "CLOSE_TIMEOUT",
	"call_timeout":     "CALL_TIMEOUT",
	"max_inflight":     "MAX_INFLIGHT",
	"read_buffer":      "READ_BUFFER",
	"log_level":        "LOG_LEVEL",
	"log_file":         "LOG_FILE",
	"frame_log":        "FRAME_LOG",
}

// Load reads defaults, then the optional file at path, then the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8877)
	v.SetDefault("metrics_port", 9000)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("session_ttl", "0s")
	v.SetDefault("registry_timeout", "5s")
	v.SetDefault("grpc_method", "/forwarder.Forwarder/SendMeasurements")
	v.SetDefault("idle_timeout", "10m")
	v.SetDefault("close_timeout", "10s")
	v.SetDefault("call_timeout", "10s")
	v.SetDefault("max_inflight", 64)
	v.SetDefault("read_buffer", 2048)
	v.SetDefault("log_level", "info")

	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		ServerHost:      v.GetString("server_host"),
		ServerPort:      v.GetInt("server_port"),
		MetricsPort:     v.GetInt("metrics_port"),
		RedisAddr:       v.GetString("redis_addr"),
		RedisPassword:   v.GetString("redis_password"),
		RedisDB:         v.GetInt("redis_db"),
		SessionTTL:      v.GetDuration("session_ttl"),
		RegistryURL:     v.GetString("registry_url"),
		RegistryTimeout: v.GetDuration("registry_timeout"),
		InfluxURL:       v.GetString("influx_url"),
		InfluxToken:     v.GetString("influx_token"),
		InfluxOrg:       v.GetString("influx_org"),
		InfluxBucket:    v.GetString("influx_bucket"),
		GRPCServer:      v.GetString("grpc_server"),
		GRPCMethod:      v.GetString("grpc_method"),
		ProxyAddr:       v.GetString("proxy_addr"),
		IdleTimeout:     v.GetDuration("idle_timeout"),
		CloseTimeout:    v.GetDuration("close_timeout"),
		CallTimeout:     v.GetDuration("call_timeout"),
		MaxInFlight:     v.GetInt64("max_inflight"),
		ReadBuffer:      v.GetInt("read_buffer"),
		LogLevel:        v.GetString("log_level"),
		LogFile:         v.GetString("log_file"),
		FrameLog:        v.GetString("frame_log"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if c.RegistryURL == "" {
		errs = append(errs, errors.New("registry_url (BACKEND_URL) is required"))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("server_port %d out of range", c.ServerPort))
	}
	if c.InfluxEnabled() && (c.InfluxOrg == "" || c.InfluxBucket == "") {
		errs = append(errs, errors.New("influx_org and influx_bucket are required with influx_url"))
	}
	if c.ReadBuffer < 64 {
		errs = append(errs, fmt.Errorf("read_buffer %d is too small", c.ReadBuffer))
	}
	return errors.Join(errs...)
}
