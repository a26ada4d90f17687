package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/annel0/turtle-miner/internal/logging"
	"github.com/annel0/turtle-miner/internal/mining"
	"github.com/go-redis/redis/v8"
)

// RedisRunRepo хранит отчеты прогонов в Redis.
// Каждый отчет живет под ключом <prefix><runID>, индекс последних
// прогонов ведется отдельным списком, усекаемым по indexCap.
type RedisRunRepo struct {
	client    *redis.Client
	keyPrefix string
	indexKey  string
	ttl       time.Duration
	indexCap  int64
}

// RedisRunConfig содержит настройки подключения к Redis
type RedisRunConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей отчетов
	TTL       time.Duration // Время жизни отчетов; 0 = бессрочно
	IndexCap  int64         // Сколько последних прогонов держать в индексе
}

// DefaultRedisRunConfig возвращает конфигурацию по умолчанию
func DefaultRedisRunConfig() *RedisRunConfig {
	return &RedisRunConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "miner:run:",
		TTL:       7 * 24 * time.Hour,
		IndexCap:  1000,
	}
}

// NewRedisRunRepo создаёт Redis-репозиторий отчетов и проверяет подключение
func NewRedisRunRepo(config *RedisRunConfig) (*RedisRunRepo, error) {
	if config == nil {
		config = DefaultRedisRunConfig()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "miner:run:"
	}
	if config.IndexCap <= 0 {
		config.IndexCap = 1000
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("подключение к Redis: %w", err)
	}

	logging.Info("🔴 Redis подключен: %s", config.Addr)
	return &RedisRunRepo{
		client:    client,
		keyPrefix: config.KeyPrefix,
		indexKey:  config.KeyPrefix + "index",
		ttl:       config.TTL,
		indexCap:  config.IndexCap,
	}, nil
}

// SaveReport сохраняет отчет и обновляет индекс последних прогонов
func (r *RedisRunRepo) SaveReport(ctx context.Context, report *mining.Report) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("отчет без идентификатора прогона")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("сериализация отчета: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.keyPrefix+report.RunID, data, r.ttl)
	pipe.LPush(ctx, r.indexKey, report.RunID)
	pipe.LTrim(ctx, r.indexKey, 0, r.indexCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("запись отчета в Redis: %w", err)
	}
	return nil
}

// GetReport загружает отчет по RunID
func (r *RedisRunRepo) GetReport(ctx context.Context, runID string) (*mining.Report, bool, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+runID).Result()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("чтение отчета из Redis: %w", err)
	}

	var rep mining.Report
	if err := json.Unmarshal([]byte(data), &rep); err != nil {
		return nil, false, fmt.Errorf("десериализация отчета: %w", err)
	}
	return &rep, true, nil
}

// ListReports возвращает последние отчеты из индекса, от новых к старым
func (r *RedisRunRepo) ListReports(ctx context.Context, limit int) ([]mining.Report, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	ids, err := r.client.LRange(ctx, r.indexKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("чтение индекса прогонов: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Пайплайн вместо N последовательных запросов
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, r.keyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("чтение отчетов из Redis: %w", err)
	}

	out := make([]mining.Report, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err == redis.Nil {
			continue // Отчет истек по TTL, индекс еще помнит
		} else if err != nil {
			logging.Warn("Чтение отчета %s: %v", ids[i], err)
			continue
		}

		var rep mining.Report
		if err := json.Unmarshal([]byte(data), &rep); err != nil {
			logging.Warn("Десериализация отчета %s: %v", ids[i], err)
			continue
		}
		out = append(out, rep)
	}
	return out, nil
}

// Close закрывает соединение с Redis
func (r *RedisRunRepo) Close() error {
	return r.client.Close()
}
