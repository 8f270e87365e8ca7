package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config настройки процесса. Без файла работают значения по умолчанию.
type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Storage  Storage  `yaml:"storage"`
	Log      Log      `yaml:"log"`
	RabbitMQ RabbitMQ `yaml:"rabbitmq"`
	Temporal Temporal `yaml:"temporal"`
	Polling  Polling  `yaml:"polling"`
}

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Storage backend: memory, sqlite или postgres
type Storage struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

type Log struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// RabbitMQ пустой URL отключает публикацию событий
type RabbitMQ struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// Temporal пустой HostPort означает ручное подтверждение оплаты
type Temporal struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
	// CardLimit верхняя граница суммы для авторизации карты
	CardLimit string `yaml:"card_limit"`
}

// Polling параметры клиента экранов
type Polling struct {
	BaseURL  string        `yaml:"base_url"`
	Interval time.Duration `yaml:"interval"`
}

func Default() *Config {
	return &Config{
		HTTP:     HTTP{Addr: ":9091", ShutdownTimeout: 5 * time.Second},
		Storage:  Storage{Backend: "memory"},
		Log:      Log{Level: "info", Service: "camarero"},
		RabbitMQ: RabbitMQ{Exchange: "order_status_fanout"},
		Temporal: Temporal{Namespace: "default", TaskQueue: "camarero-settlement", CardLimit: "10000"},
		Polling:  Polling{BaseURL: "http://localhost:9091", Interval: 15 * time.Second},
	}
}

// Load читает YAML поверх значений по умолчанию и применяет CAMARERO_* из окружения
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("config file %s not found", path)
		case err != nil:
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	setString(&c.HTTP.Addr, "CAMARERO_HTTP_ADDR")
	setString(&c.Storage.Backend, "CAMARERO_STORAGE_BACKEND")
	setString(&c.Storage.DSN, "CAMARERO_STORAGE_DSN")
	setString(&c.Log.Level, "CAMARERO_LOG_LEVEL")
	setString(&c.Log.Service, "CAMARERO_LOG_SERVICE")
	setString(&c.RabbitMQ.URL, "CAMARERO_RABBITMQ_URL")
	setString(&c.RabbitMQ.Exchange, "CAMARERO_RABBITMQ_EXCHANGE")
	setString(&c.Temporal.HostPort, "CAMARERO_TEMPORAL_HOST_PORT")
	setString(&c.Temporal.Namespace, "CAMARERO_TEMPORAL_NAMESPACE")
	setString(&c.Temporal.TaskQueue, "CAMARERO_TEMPORAL_TASK_QUEUE")
	setString(&c.Temporal.CardLimit, "CAMARERO_TEMPORAL_CARD_LIMIT")
	setString(&c.Polling.BaseURL, "CAMARERO_POLLING_BASE_URL")
	if err := setDuration(&c.HTTP.ShutdownTimeout, "CAMARERO_HTTP_SHUTDOWN_TIMEOUT"); err != nil {
		return err
	}
	return setDuration(&c.Polling.Interval, "CAMARERO_POLLING_INTERVAL")
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn required for %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Polling.Interval <= 0 {
		return errors.New("polling.interval must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("http.shutdown_timeout must be positive")
	}
	if limit, err := decimal.NewFromString(c.Temporal.CardLimit); err != nil || limit.IsNegative() {
		return fmt.Errorf("temporal.card_limit %q is not a non-negative amount", c.Temporal.CardLimit)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setDuration принимает запись time.ParseDuration: 500ms, 15s, 1m
func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
