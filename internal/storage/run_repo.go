package storage

import (
	"context"

	"github.com/annel0/turtle-miner/internal/mining"
)

// RunRepo определяет интерфейс для сохранения и выборки отчетов
// горнодобывающих прогонов. Отчеты привязаны к RunID (UUID прогона)
// и переживают перезапуск сервиса в Redis-реализации.
type RunRepo interface {
	// SaveReport сохраняет финальный отчет прогона.
	// Повторное сохранение того же RunID перезаписывает отчет.
	SaveReport(ctx context.Context, report *mining.Report) error

	// GetReport загружает отчет по идентификатору прогона.
	// ok=false, если прогон неизвестен.
	GetReport(ctx context.Context, runID string) (*mining.Report, bool, error)

	// ListReports возвращает последние отчеты, от новых к старым.
	// limit <= 0 означает реализационно-зависимый максимум.
	ListReports(ctx context.Context, limit int) ([]mining.Report, error)

	// Close освобождает ресурсы репозитория
	Close() error
}
