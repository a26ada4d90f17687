package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервиса.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Turtle   TurtleConfig   `yaml:"turtle"`
	Mining   MiningConfig   `yaml:"mining"`
	World    WorldConfig    `yaml:"world"`
	EventBus EventBusConfig `yaml:"eventbus"`
	Redis    RedisConfig    `yaml:"redis"`
}

type ServerConfig struct {
	RESTPort int `yaml:"rest_port"`
}

// TurtleConfig описывает подключение к командному серверу туртла.
type TurtleConfig struct {
	BaseURL string `yaml:"base_url"` // Адрес HTTP-сервера команд (Flask-совместимый)
	Label   string `yaml:"label"`    // Метка туртла
	PollMs  int    `yaml:"poll_ms"`  // Интервал опроса статуса
}

// MiningConfig — настройки оркестратора раскопок.
type MiningConfig struct {
	MaxPasses        int     `yaml:"max_passes"`          // Максимум проходов по отложенным вокселям
	ShaftScanLimit   int     `yaml:"shaft_scan_limit"`    // Потолок сканирования вверх при пробивке шахты
	ArrivalTolerance float64 `yaml:"arrival_tolerance"`   // Допуск прибытия (в блоках)
	AckTimeoutSec    int     `yaml:"ack_timeout_seconds"` // Ожидание подтверждения команды; <0 = без лимита
}

type WorldConfig struct {
	DataPath string `yaml:"data_path"` // Директория BadgerDB
	Seed     int64  `yaml:"seed"`      // Сид генератора (sim-режим)
	Sim      bool   `yaml:"sim"`       // true = симулируемый мир и туртл
}

type EventBusConfig struct {
	URL       string `yaml:"url"`    // Пусто = in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // Пусто = in-memory репозиторий прогонов
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "MINER_REST_PORT", 8090)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// GetBaseURL возвращает адрес сервера команд с env-fallback
func (t *TurtleConfig) GetBaseURL() string {
	if t.BaseURL != "" {
		return t.BaseURL
	}
	if env := os.Getenv("MINER_TURTLE_URL"); env != "" {
		return env
	}
	return "http://127.0.0.1:4999"
}

// GetLabel возвращает метку туртла (по умолчанию "turtle_1")
func (t *TurtleConfig) GetLabel() string {
	if t.Label != "" {
		return t.Label
	}
	return "turtle_1"
}

// GetPollInterval возвращает интервал опроса статуса туртла
func (t *TurtleConfig) GetPollInterval() time.Duration {
	if t.PollMs > 0 {
		return time.Duration(t.PollMs) * time.Millisecond
	}
	return 250 * time.Millisecond
}

// GetMaxPasses возвращает максимум проходов (по умолчанию 3)
func (m *MiningConfig) GetMaxPasses() int {
	if m.MaxPasses > 0 {
		return m.MaxPasses
	}
	return 3
}

// GetShaftScanLimit возвращает потолок сканирования шахты (по умолчанию 128)
func (m *MiningConfig) GetShaftScanLimit() int {
	if m.ShaftScanLimit > 0 {
		return m.ShaftScanLimit
	}
	return 128
}

// GetArrivalTolerance возвращает допуск прибытия (по умолчанию 0.5 блока)
func (m *MiningConfig) GetArrivalTolerance() float64 {
	if m.ArrivalTolerance > 0 {
		return m.ArrivalTolerance
	}
	return 0.5
}

// GetDataPath возвращает директорию BadgerDB (по умолчанию ./data/world)
func (w *WorldConfig) GetDataPath() string {
	if w.DataPath != "" {
		return w.DataPath
	}
	return "./data/world"
}

// GetRetention возвращает срок хранения событий в JetStream (по умолчанию 24ч)
func (e *EventBusConfig) GetRetention() time.Duration {
	if e.Retention > 0 {
		return time.Duration(e.Retention) * time.Hour
	}
	return 24 * time.Hour
}

// GetAckTimeout возвращает лимит ожидания подтверждения команды.
// 0 в конфиге означает значение по умолчанию 30s; отрицательное — без лимита.
func (m *MiningConfig) GetAckTimeout() time.Duration {
	if m.AckTimeoutSec < 0 {
		return 0
	}
	if m.AckTimeoutSec == 0 {
		return 30 * time.Second
	}
	return time.Duration(m.AckTimeoutSec) * time.Second
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV MINER_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MINER_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
